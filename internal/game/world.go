package game

import (
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/ecs"
	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/event"
	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/system"
	"github.com/DrMatrix007/MatrixEngine-sub000/internal/scripting"
)

type Options struct {
	DecayEvery  uint64 // ticks between decay steps
	CensusEvery uint64 // ticks between census log lines; 0 disables logging
	Log         *zap.Logger
}

// Install creates the game resources in w and registers the built-in
// systems with r.
func Install(r *system.Runner, opts Options) ([]*system.Entry, error) {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	w := r.World()
	if err := ecs.SetResource(w, Clock{}); err != nil {
		return nil, fmt.Errorf("install clock: %w", err)
	}
	if err := ecs.SetResource(w, Census{}); err != nil {
		return nil, fmt.Errorf("install census: %w", err)
	}
	event.Register[Died](w)
	ecs.ComponentSlot[Position](w.Registry())
	ecs.ComponentSlot[Velocity](w.Registry())
	ecs.ComponentSlot[Health](w.Registry())

	systems := []system.System{
		event.SwapSystem[Died](),
		system.Wrap[*ecs.WriteGuard[Clock]](ClockSystem{}),
		system.Wrap[movementData](MovementSystem{}),
		system.Wrap[healthData](&DecaySystem{Interval: opts.DecayEvery}),
		system.Wrap[healthData](NewRegenSystem()),
		system.Wrap[reaperData](ReaperSystem{}),
		system.Wrap[censusData](&CensusSystem{Every: opts.CensusEvery, Log: opts.Log.Named("census")}),
		NewCleanupSystem(opts.Log.Named("cleanup")),
	}
	entries := make([]*system.Entry, 0, len(systems))
	for _, s := range systems {
		entries = append(entries, r.Register(s))
	}
	return entries, nil
}

// Spawn creates n entities with a position, velocity and health. Roughly
// one in ten decays and eventually dies.
func Spawn(w *ecs.World, n int, rng *rand.Rand) ([]ecs.EntityID, error) {
	ids := make([]ecs.EntityID, 0, n)
	for i := 0; i < n; i++ {
		id := w.CreateEntity()
		pos := &Position{X: rng.Float64() * 1000, Y: rng.Float64() * 1000}
		vel := &Velocity{X: rng.Float64()*20 - 10, Y: rng.Float64()*20 - 10}
		hp := int32(50 + rng.IntN(51))
		health := &Health{HP: hp, MaxHP: 100}
		if rng.IntN(10) == 0 {
			health.Decay = int32(1 + rng.IntN(5))
		}
		if err := ecs.Insert(w, id, pos); err != nil {
			return ids, err
		}
		if err := ecs.Insert(w, id, vel); err != nil {
			return ids, err
		}
		if err := ecs.Insert(w, id, health); err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Bindings exposes the game's components and resources to Lua systems.
func Bindings() (*scripting.Bindings, error) {
	return scripting.NewBindings(
		scripting.Component[Position]("position"),
		scripting.Component[Velocity]("velocity"),
		scripting.Component[Health]("health"),
		scripting.Resource[Clock]("clock"),
	)
}
