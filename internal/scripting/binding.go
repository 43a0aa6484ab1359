package scripting

import (
	"fmt"
	"sort"

	lua "github.com/yuin/gopher-lua"

	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/access"
	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/ecs"
)

// Scriptable is implemented by pointers to components and resources that
// scripts may see. ToLua builds a fresh table; FromLua copies fields back.
type Scriptable interface {
	ToLua(L *lua.LState) *lua.LTable
	FromLua(t *lua.LTable)
}

// Binding exposes one component store or resource to scripts under a name.
type Binding interface {
	Name() string
	Type() access.Type
	// extract acquires the data through b. The returned view is only used
	// from the system's Run.
	extract(b *ecs.Batch, write bool) view
}

type view interface {
	push(L *lua.LState) lua.LValue
	pull(v lua.LValue)
}

// Component binds the store of T. Scripts see a table keyed by entity id.
func Component[T any, PT interface {
	*T
	Scriptable
}](name string) Binding {
	return &componentBinding[T, PT]{name: name}
}

// Resource binds resource T. Scripts see a single table.
func Resource[T any, PT interface {
	*T
	Scriptable
}](name string) Binding {
	return &resourceBinding[T, PT]{name: name}
}

type componentBinding[T any, PT interface {
	*T
	Scriptable
}] struct {
	name string
}

func (c *componentBinding[T, PT]) Name() string      { return c.name }
func (c *componentBinding[T, PT]) Type() access.Type { return access.ComponentOf[T]() }

func (c *componentBinding[T, PT]) extract(b *ecs.Batch, write bool) view {
	if write {
		g := ecs.WriteComponents[T](b)
		if g == nil {
			return nil
		}
		return &storeView[T, PT]{get: g.Get, write: true}
	}
	g := ecs.ReadComponents[T](b)
	if g == nil {
		return nil
	}
	return &storeView[T, PT]{get: g.Get}
}

type storeView[T any, PT interface {
	*T
	Scriptable
}] struct {
	get   func() *ecs.Store[T]
	write bool
}

// Entity ids are used as numeric keys; they stay exact below 2^53.
func (v *storeView[T, PT]) push(L *lua.LState) lua.LValue {
	tbl := L.NewTable()
	v.get().Each(func(id ecs.EntityID, c *T) {
		tbl.RawSet(lua.LNumber(id), PT(c).ToLua(L))
	})
	return tbl
}

func (v *storeView[T, PT]) pull(lv lua.LValue) {
	tbl, ok := lv.(*lua.LTable)
	if !ok || !v.write {
		return
	}
	v.get().Each(func(id ecs.EntityID, c *T) {
		if ct, ok := tbl.RawGet(lua.LNumber(id)).(*lua.LTable); ok {
			PT(c).FromLua(ct)
		}
	})
}

type resourceBinding[T any, PT interface {
	*T
	Scriptable
}] struct {
	name string
}

func (r *resourceBinding[T, PT]) Name() string      { return r.name }
func (r *resourceBinding[T, PT]) Type() access.Type { return access.ResourceOf[T]() }

func (r *resourceBinding[T, PT]) extract(b *ecs.Batch, write bool) view {
	if write {
		g := ecs.WriteResource[T](b)
		if g == nil {
			return nil
		}
		return &valueView[T, PT]{get: g.Get, write: true}
	}
	g := ecs.ReadResource[T](b)
	if g == nil {
		return nil
	}
	return &valueView[T, PT]{get: g.Get}
}

type valueView[T any, PT interface {
	*T
	Scriptable
}] struct {
	get   func() *T
	write bool
}

func (v *valueView[T, PT]) push(L *lua.LState) lua.LValue {
	return PT(v.get()).ToLua(L)
}

func (v *valueView[T, PT]) pull(lv lua.LValue) {
	if tbl, ok := lv.(*lua.LTable); ok && v.write {
		PT(v.get()).FromLua(tbl)
	}
}

// Bindings is the set of names scripts may declare in reads and writes.
type Bindings struct {
	byName map[string]Binding
}

func NewBindings(bs ...Binding) (*Bindings, error) {
	r := &Bindings{byName: make(map[string]Binding, len(bs))}
	for _, b := range bs {
		if _, dup := r.byName[b.Name()]; dup {
			return nil, fmt.Errorf("binding %s registered twice", b.Name())
		}
		r.byName[b.Name()] = b
	}
	return r, nil
}

func (r *Bindings) Lookup(name string) (Binding, bool) {
	b, ok := r.byName[name]
	return b, ok
}

// Names returns the registered binding names, sorted.
func (r *Bindings) Names() []string {
	out := make([]string, 0, len(r.byName))
	for n := range r.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
