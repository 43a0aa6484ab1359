package access

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Kind says which world collection a Type lives in.
type Kind uint8

const (
	Component Kind = iota
	Resource
)

func (k Kind) String() string {
	switch k {
	case Component:
		return "component"
	case Resource:
		return "resource"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Type identifies what is touched: a (kind, Go type) pair.
// Comparable, so it is used directly as a map key.
type Type struct {
	Kind Kind
	ID   reflect.Type
}

func ComponentOf[T any]() Type { return Type{Kind: Component, ID: reflect.TypeFor[T]()} }
func ResourceOf[T any]() Type  { return Type{Kind: Resource, ID: reflect.TypeFor[T]()} }

func (t Type) String() string {
	if t.ID == nil {
		return t.Kind.String() + "(<nil>)"
	}
	return t.Kind.String() + "(" + t.ID.String() + ")"
}

// Action says how a Type is touched. Values >= 1 are Read(n) with n
// overlapping readers; Write is exclusive.
type Action int32

const Write Action = -1

// Read returns Read(n). n < 1 is clamped to 1.
func Read(n int) Action {
	if n < 1 {
		n = 1
	}
	return Action(n)
}

func (a Action) IsRead() bool  { return a >= 1 }
func (a Action) IsWrite() bool { return a == Write }

// Readers returns n for Read(n) and 0 for Write.
func (a Action) Readers() int {
	if a.IsRead() {
		return int(a)
	}
	return 0
}

// Compatible reports whether a and b may be held at the same time.
func (a Action) Compatible(b Action) bool { return a.IsRead() && b.IsRead() }

func (a Action) String() string {
	if a.IsWrite() {
		return "Write"
	}
	return fmt.Sprintf("Read(%d)", int(a))
}

// ErrConflict is returned when two claims cannot be held together.
var ErrConflict = errors.New("access conflict")

// ConflictError names the first Type on which a combination failed.
// A zero Type means the conflict came from the All sentinel.
type ConflictError struct {
	Type      Type
	Have      Action
	Requested Action
	All       bool
}

func (e *ConflictError) Error() string {
	if e.All {
		return "access conflict: exclusive world access"
	}
	return fmt.Sprintf("access conflict on %s: have %s, requested %s", e.Type, e.Have, e.Requested)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// Access is the set of claims one system makes for one run, or the running
// union of claims held by in-flight systems. The All sentinel touches
// everything and is compatible only with an empty Access.
type Access struct {
	all    bool
	claims map[Type]Action
}

func New() *Access {
	return &Access{claims: make(map[Type]Action)}
}

func All() *Access {
	return &Access{all: true, claims: make(map[Type]Action)}
}

// Single returns an Access holding one claim.
func Single(t Type, act Action) *Access {
	a := New()
	a.claims[t] = act
	return a
}

// Reads returns an Access reading every given Type once.
func Reads(ts ...Type) *Access {
	a := New()
	for _, t := range ts {
		a.claims[t] = Read(a.claims[t].Readers() + 1)
	}
	return a
}

// Writes returns an Access writing the given Types. Duplicates collapse to a
// single Write claim; use Merge to detect a system writing the same Type twice.
func Writes(ts ...Type) *Access {
	a := New()
	for _, t := range ts {
		a.claims[t] = Write
	}
	return a
}

// Merge folds parts into a fresh Access with TryCombine.
func Merge(parts ...*Access) (*Access, error) {
	a := New()
	for _, p := range parts {
		if err := a.TryCombine(p); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// MustMerge is Merge for static declarations; it panics on conflict.
func MustMerge(parts ...*Access) *Access {
	a, err := Merge(parts...)
	if err != nil {
		panic(err)
	}
	return a
}

func (a *Access) IsAll() bool { return a.all }

func (a *Access) IsEmpty() bool { return !a.all && len(a.claims) == 0 }

func (a *Access) Len() int { return len(a.claims) }

func (a *Access) Get(t Type) (Action, bool) {
	act, ok := a.claims[t]
	return act, ok
}

// Each visits claims in unspecified order.
func (a *Access) Each(fn func(Type, Action)) {
	for t, act := range a.claims {
		fn(t, act)
	}
}

// IsCompatible reports whether a and other may be held together.
// It never mutates either side.
func (a *Access) IsCompatible(other *Access) bool {
	return a.conflict(other) == nil
}

func (a *Access) conflict(other *Access) *ConflictError {
	if a.all {
		if other.IsEmpty() {
			return nil
		}
		return &ConflictError{All: true}
	}
	if other.all {
		if a.IsEmpty() {
			return nil
		}
		return &ConflictError{All: true}
	}
	small, large := a.claims, other.claims
	swapped := false
	if len(small) > len(large) {
		small, large = large, small
		swapped = true
	}
	for t, x := range small {
		y, ok := large[t]
		if !ok || x.Compatible(y) {
			continue
		}
		if swapped {
			x, y = y, x
		}
		return &ConflictError{Type: t, Have: x, Requested: y}
	}
	return nil
}

// TryCombine merges other into a. Read(n)+Read(m) becomes Read(n+m).
// On any conflict a is left unchanged and the error wraps ErrConflict.
func (a *Access) TryCombine(other *Access) error {
	if c := a.conflict(other); c != nil {
		return c
	}
	if other.all {
		a.all = true
		return nil
	}
	for t, act := range other.claims {
		if cur, ok := a.claims[t]; ok {
			// Both are reads, conflict() guaranteed it.
			a.claims[t] = Read(cur.Readers() + act.Readers())
			continue
		}
		a.claims[t] = act
	}
	return nil
}

// Remove subtracts a previously combined claim. Absent Types are ignored and
// mismatched kinds of action are left alone.
func (a *Access) Remove(other *Access) {
	if other.all {
		a.all = false
	}
	for t, act := range other.claims {
		cur, ok := a.claims[t]
		if !ok {
			continue
		}
		switch {
		case act.IsWrite() && cur.IsWrite():
			delete(a.claims, t)
		case act.IsRead() && cur.IsRead():
			n := cur.Readers() - act.Readers()
			if n <= 0 {
				delete(a.claims, t)
			} else {
				a.claims[t] = Read(n)
			}
		}
	}
}

// Covers reports whether every claim in other is permitted by a: a Write
// covers anything on its Type, a Read covers only reads.
func (a *Access) Covers(other *Access) bool {
	if a.all {
		return true
	}
	if other.all {
		return false
	}
	for t, act := range other.claims {
		have, ok := a.claims[t]
		if !ok {
			return false
		}
		if act.IsWrite() && !have.IsWrite() {
			return false
		}
	}
	return true
}

// Reset empties a in place so an accumulator can be reused across passes.
func (a *Access) Reset() {
	a.all = false
	clear(a.claims)
}

func (a *Access) Clone() *Access {
	c := &Access{all: a.all, claims: make(map[Type]Action, len(a.claims))}
	for t, act := range a.claims {
		c.claims[t] = act
	}
	return c
}

func (a *Access) Equal(other *Access) bool {
	if a.all != other.all || len(a.claims) != len(other.claims) {
		return false
	}
	for t, act := range a.claims {
		if o, ok := other.claims[t]; !ok || o != act {
			return false
		}
	}
	return true
}

func (a *Access) String() string {
	if a.all {
		return "{All}"
	}
	parts := make([]string, 0, len(a.claims))
	for t, act := range a.claims {
		parts = append(parts, t.String()+":"+act.String())
	}
	sort.Strings(parts)
	return "{" + strings.Join(parts, ", ") + "}"
}
