package game

import (
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/ecs"
)

type Position struct {
	X, Y float64
}

type Velocity struct {
	X, Y float64
}

// Health tracks hit points. Decay is lost every decay interval; RegenAcc
// counts regen ticks toward the next point.
type Health struct {
	HP       int32
	MaxHP    int32
	Decay    int32
	RegenAcc int32
}

func (h *Health) Dead() bool { return h.HP <= 0 }

// Clock is the engine time resource, advanced once per tick.
type Clock struct {
	Tick    uint64
	Elapsed time.Duration
	Delta   time.Duration
}

// Census is the population summary written in PhaseOutput.
type Census struct {
	Tick   uint64
	Alive  int
	Moving int
	Deaths uint64
}

// Died is emitted by the reaper when an entity is queued for destruction.
type Died struct {
	ID   ecs.EntityID
	Tick uint64
}

func (p *Position) ToLua(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("x", lua.LNumber(p.X))
	t.RawSetString("y", lua.LNumber(p.Y))
	return t
}

func (p *Position) FromLua(t *lua.LTable) {
	p.X = float64(lua.LVAsNumber(t.RawGetString("x")))
	p.Y = float64(lua.LVAsNumber(t.RawGetString("y")))
}

func (v *Velocity) ToLua(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("x", lua.LNumber(v.X))
	t.RawSetString("y", lua.LNumber(v.Y))
	return t
}

func (v *Velocity) FromLua(t *lua.LTable) {
	v.X = float64(lua.LVAsNumber(t.RawGetString("x")))
	v.Y = float64(lua.LVAsNumber(t.RawGetString("y")))
}

func (h *Health) ToLua(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("hp", lua.LNumber(h.HP))
	t.RawSetString("max_hp", lua.LNumber(h.MaxHP))
	t.RawSetString("decay", lua.LNumber(h.Decay))
	return t
}

// FromLua clamps hp to max_hp.
func (h *Health) FromLua(t *lua.LTable) {
	h.MaxHP = int32(lua.LVAsNumber(t.RawGetString("max_hp")))
	h.HP = min(int32(lua.LVAsNumber(t.RawGetString("hp"))), h.MaxHP)
	h.Decay = int32(lua.LVAsNumber(t.RawGetString("decay")))
}

func (c *Clock) ToLua(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("tick", lua.LNumber(c.Tick))
	t.RawSetString("elapsed", lua.LNumber(c.Elapsed.Seconds()))
	t.RawSetString("delta", lua.LNumber(c.Delta.Seconds()))
	return t
}

// FromLua is a no-op; scripts cannot move time.
func (c *Clock) FromLua(*lua.LTable) {}
