package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/access"
	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/ecs"
	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/system"
	"github.com/DrMatrix007/MatrixEngine-sub000/internal/data"
)

// libDir holds helper scripts loaded into every state before the system script.
const libDir = "lib"

type bound struct {
	b     Binding
	write bool
}

// ScriptSystem is a system whose body is a Lua function. Each system owns
// its own LState; the scheduler never runs one system twice at once, so
// the state is only touched by one goroutine at a time.
type ScriptSystem struct {
	name  string
	phase system.Phase
	vm    *lua.LState
	fn    *lua.LFunction
	binds []bound
	decl  *access.Access
	log   *zap.Logger

	calls    atomic.Uint64
	failures atomic.Uint64
}

// frame is what Extract hands to Run: one view per binding, in binds order.
type frame struct {
	views []view
}

// New compiles the script for def and resolves its bindings.
func New(def data.SystemDef, dir string, bindings *Bindings, log *zap.Logger) (*ScriptSystem, error) {
	if log == nil {
		log = zap.NewNop()
	}
	phase, err := system.ParsePhase(def.Phase)
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", def.Name, err)
	}

	s := &ScriptSystem{
		name:  def.Name,
		phase: phase,
		log:   log.With(zap.String("system", def.Name)),
	}
	parts := make([]*access.Access, 0, len(def.Reads)+len(def.Writes))
	for _, names := range []struct {
		list  []string
		write bool
	}{{def.Reads, false}, {def.Writes, true}} {
		for _, n := range names.list {
			b, ok := bindings.Lookup(n)
			if !ok {
				return nil, fmt.Errorf("script %s: unknown binding %q", def.Name, n)
			}
			act := access.Read(1)
			if names.write {
				act = access.Write
			}
			s.binds = append(s.binds, bound{b: b, write: names.write})
			parts = append(parts, access.Single(b.Type(), act))
		}
	}
	if s.decl, err = access.Merge(parts...); err != nil {
		return nil, fmt.Errorf("script %s: %w", def.Name, err)
	}

	s.vm = lua.NewState()
	s.vm.SetGlobal("API_VERSION", lua.LNumber(1))
	s.vm.SetGlobal("log", s.vm.NewFunction(s.luaLog))

	if err := s.loadDir(filepath.Join(dir, libDir)); err != nil {
		s.vm.Close()
		return nil, fmt.Errorf("script %s: load lib: %w", def.Name, err)
	}
	path := filepath.Join(dir, def.Script)
	if err := s.vm.DoFile(path); err != nil {
		s.vm.Close()
		return nil, fmt.Errorf("script %s: load %s: %w", def.Name, path, err)
	}
	fn, ok := s.vm.GetGlobal(def.Function).(*lua.LFunction)
	if !ok {
		s.vm.Close()
		return nil, fmt.Errorf("script %s: function %s not found in %s", def.Name, def.Function, path)
	}
	s.fn = fn
	s.log.Debug("loaded lua system",
		zap.String("file", path),
		zap.Stringer("phase", phase),
		zap.Stringer("access", s.decl),
	)
	return s, nil
}

// Load builds every enabled system in the manifest. On error, systems built
// so far are closed.
func Load(m *data.Manifest, dir string, bindings *Bindings, log *zap.Logger) ([]*ScriptSystem, error) {
	var out []*ScriptSystem
	for _, def := range m.Enabled() {
		s, err := New(def, dir, bindings, log)
		if err != nil {
			for _, done := range out {
				_ = done.Close()
			}
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// loadDir loads all .lua files in a directory.
func (s *ScriptSystem) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := s.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

func (s *ScriptSystem) luaLog(L *lua.LState) int {
	s.log.Info(L.CheckString(1))
	return 0
}

// System adapts s for registration with a runner.
func (s *ScriptSystem) System() system.System {
	return system.Wrap[*frame](s)
}

func (s *ScriptSystem) Name() string           { return s.name }
func (s *ScriptSystem) Phase() system.Phase    { return s.phase }
func (s *ScriptSystem) Access() *access.Access { return s.decl.Clone() }
func (s *ScriptSystem) Calls() uint64          { return s.calls.Load() }
func (s *ScriptSystem) Failures() uint64       { return s.failures.Load() }

func (s *ScriptSystem) Extract(b *ecs.Batch) *frame {
	f := &frame{views: make([]view, len(s.binds))}
	for i, bd := range s.binds {
		f.views[i] = bd.b.extract(b, bd.write)
	}
	return f
}

// Run calls the script with a ctx table holding dt (seconds) and one field
// per binding. Write bindings are copied back only when the call succeeds.
func (s *ScriptSystem) Run(f *frame, dt time.Duration) {
	s.calls.Add(1)
	ctx := s.vm.NewTable()
	ctx.RawSetString("dt", lua.LNumber(dt.Seconds()))
	for i, bd := range s.binds {
		ctx.RawSetString(bd.b.Name(), f.views[i].push(s.vm))
	}

	if err := s.vm.CallByParam(lua.P{
		Fn:      s.fn,
		NRet:    0,
		Protect: true,
	}, ctx); err != nil {
		s.failures.Add(1)
		s.log.Error("lua system error", zap.Error(err))
		return
	}

	for i, bd := range s.binds {
		if bd.write {
			f.views[i].pull(ctx.RawGetString(bd.b.Name()))
		}
	}
}

func (s *ScriptSystem) Close() error {
	if s.vm != nil {
		s.vm.Close()
		s.vm = nil
	}
	return nil
}
