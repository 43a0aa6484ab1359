package game

import (
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/ecs"
	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/system"
	"github.com/DrMatrix007/MatrixEngine-sub000/internal/data"
	"github.com/DrMatrix007/MatrixEngine-sub000/internal/scripting"
)

const tick = 100 * time.Millisecond

func newRunner(t *testing.T, sched system.Scheduler) *system.Runner {
	t.Helper()
	r := system.NewRunner(ecs.NewWorld(), sched, nil)
	if _, err := Install(r, Options{DecayEvery: 1}); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func ticks(t *testing.T, r *system.Runner, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := r.Tick(tick); err != nil {
			t.Fatalf("tick %d: %v", i+1, err)
		}
	}
}

func census(t *testing.T, w *ecs.World) Census {
	t.Helper()
	g, err := ecs.ResourceSlot[Census](w.Registry()).Read()
	if err != nil {
		t.Fatal(err)
	}
	defer g.HandBack()
	return *g.Get()
}

func TestMovementAndClock(t *testing.T) {
	r := newRunner(t, system.NewSequential())
	w := r.World()
	id := w.CreateEntity()
	_ = ecs.Insert(w, id, &Position{X: 1, Y: 1})
	_ = ecs.Insert(w, id, &Velocity{X: 10, Y: -5})

	ticks(t, r, 2)

	g, _ := ecs.ComponentSlot[Position](w.Registry()).Read()
	p, _ := g.Get().Get(id)
	if p.X != 3 || p.Y != 0 {
		t.Errorf("unexpected position %+v", *p)
	}
	_ = g.HandBack()

	c, _ := ecs.ResourceSlot[Clock](w.Registry()).Read()
	if c.Get().Tick != 2 || c.Get().Elapsed != 2*tick {
		t.Errorf("unexpected clock %+v", *c.Get())
	}
	_ = c.HandBack()
}

func TestDeathLifecycle(t *testing.T) {
	for _, tt := range []struct {
		name  string
		sched system.Scheduler
	}{
		{"sequential", system.NewSequential()},
		{"parallel", system.NewParallel(4, 0)},
	} {
		t.Run(tt.name, func(t *testing.T) {
			r := newRunner(t, tt.sched)
			w := r.World()
			doomed := w.CreateEntity()
			_ = ecs.Insert(w, doomed, &Health{HP: 3, MaxHP: 100, Decay: 5})
			healthy := w.CreateEntity()
			_ = ecs.Insert(w, healthy, &Health{HP: 100, MaxHP: 100})

			ticks(t, r, 1)
			if w.Alive(doomed) {
				t.Fatal("dead entity survived cleanup")
			}
			if !w.Alive(healthy) || w.Pool().Count() != 1 {
				t.Errorf("unexpected survivors: count=%d", w.Pool().Count())
			}
			if w.Registry().StateOf(tHealth).IsWriting() {
				t.Error("health store left locked")
			}

			// The Died event becomes readable on the next tick.
			if c := census(t, w); c.Deaths != 0 || c.Alive != 1 {
				t.Errorf("after tick 1: %+v", c)
			}
			ticks(t, r, 1)
			if c := census(t, w); c.Deaths != 1 || c.Alive != 1 || c.Tick != 2 {
				t.Errorf("after tick 2: %+v", c)
			}
			ticks(t, r, 1)
			if c := census(t, w); c.Deaths != 1 {
				t.Errorf("death counted twice: %+v", c)
			}
		})
	}
}

func TestRegen(t *testing.T) {
	s := &RegenSystem{Every: 1, Threshold: 2, Amount: 3}
	tests := []struct {
		name   string
		in     Health
		rounds int
		wantHP int32
	}{
		{"below threshold", Health{HP: 10, MaxHP: 100}, 1, 10},
		{"at threshold", Health{HP: 10, MaxHP: 100}, 2, 13},
		{"capped", Health{HP: 99, MaxHP: 100}, 2, 100},
		{"full", Health{HP: 100, MaxHP: 100}, 4, 100},
		{"dead", Health{HP: 0, MaxHP: 100}, 4, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := tt.in
			for i := 0; i < tt.rounds; i++ {
				s.tick(&h)
			}
			if h.HP != tt.wantHP {
				t.Errorf("hp %d, want %d", h.HP, tt.wantHP)
			}
		})
	}
}

func TestSchedulersAgree(t *testing.T) {
	run := func(sched system.Scheduler) (Census, float64) {
		r := newRunner(t, sched)
		if _, err := Spawn(r.World(), 200, rand.New(rand.NewPCG(1, 2))); err != nil {
			t.Fatal(err)
		}
		ticks(t, r, 30)
		var sum float64
		g, _ := ecs.ComponentSlot[Position](r.World().Registry()).Read()
		g.Get().Each(func(_ ecs.EntityID, p *Position) { sum += p.X + p.Y })
		_ = g.HandBack()
		return census(t, r.World()), sum
	}
	seqCensus, seqSum := run(system.NewSequential())
	parCensus, parSum := run(system.NewParallel(4, 0))
	if seqCensus != parCensus {
		t.Errorf("census differs: sequential %+v, parallel %+v", seqCensus, parCensus)
	}
	if math.Abs(seqSum-parSum) > 1e-6 {
		t.Errorf("positions differ: %v vs %v", seqSum, parSum)
	}
	if seqCensus.Alive+int(seqCensus.Deaths) > 200 {
		t.Errorf("census inconsistent: %+v", seqCensus)
	}
}

func TestScriptedSystemWithGameBindings(t *testing.T) {
	dir := t.TempDir()
	src := `
function update(ctx)
  for id, v in pairs(ctx.velocity) do
    v.x = v.x * 2
    v.y = ctx.clock.tick
  end
end`
	if err := os.WriteFile(filepath.Join(dir, "boost.lua"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	bindings, err := Bindings()
	if err != nil {
		t.Fatal(err)
	}
	s, err := scripting.New(data.SystemDef{
		Name: "boost", Phase: "pre_update", Script: "boost.lua", Function: "update",
		Reads: []string{"clock"}, Writes: []string{"velocity"},
	}, dir, bindings, nil)
	if err != nil {
		t.Fatal(err)
	}

	r := newRunner(t, system.NewParallel(2, 0))
	r.Register(s.System())
	w := r.World()
	id := w.CreateEntity()
	_ = ecs.Insert(w, id, &Velocity{X: 1})

	ticks(t, r, 3)
	g, _ := ecs.ComponentSlot[Velocity](w.Registry()).Read()
	v, _ := g.Get().Get(id)
	if v.X != 8 || v.Y != 3 {
		t.Errorf("unexpected velocity %+v", *v)
	}
	_ = g.HandBack()
	if s.Failures() != 0 {
		t.Errorf("script failed %d times", s.Failures())
	}
}
