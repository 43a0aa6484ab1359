package game

import (
	"time"

	"go.uber.org/zap"

	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/access"
	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/ecs"
	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/event"
	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/system"
)

var (
	tPosition = access.ComponentOf[Position]()
	tVelocity = access.ComponentOf[Velocity]()
	tHealth   = access.ComponentOf[Health]()
	tClock    = access.ResourceOf[Clock]()
	tCensus   = access.ResourceOf[Census]()
	tDestroy  = access.ResourceOf[ecs.DestroyQueue]()
	tDied     = access.ResourceOf[event.Queue[Died]]()
)

// ClockSystem advances the Clock resource. Phase 0 (Input).
type ClockSystem struct{}

func (ClockSystem) Name() string           { return "clock" }
func (ClockSystem) Phase() system.Phase    { return system.PhaseInput }
func (ClockSystem) Access() *access.Access { return access.Writes(tClock) }

func (ClockSystem) Extract(b *ecs.Batch) *ecs.WriteGuard[Clock] {
	return ecs.WriteResource[Clock](b)
}

func (ClockSystem) Run(g *ecs.WriteGuard[Clock], dt time.Duration) {
	c := g.Get()
	c.Tick++
	c.Elapsed += dt
	c.Delta = dt
}

type movementData struct {
	vel *ecs.ReadGuard[ecs.Store[Velocity]]
	pos *ecs.WriteGuard[ecs.Store[Position]]
}

// MovementSystem integrates velocity into position. Phase 2 (Update).
type MovementSystem struct{}

func (MovementSystem) Name() string        { return "movement" }
func (MovementSystem) Phase() system.Phase { return system.PhaseUpdate }

func (MovementSystem) Access() *access.Access {
	return access.MustMerge(access.Reads(tVelocity), access.Writes(tPosition))
}

func (MovementSystem) Extract(b *ecs.Batch) movementData {
	return movementData{
		vel: ecs.ReadComponents[Velocity](b),
		pos: ecs.WriteComponents[Position](b),
	}
}

func (MovementSystem) Run(d movementData, dt time.Duration) {
	sec := dt.Seconds()
	ecs.Each2(d.pos.Get(), d.vel.Get(), func(_ ecs.EntityID, p *Position, v *Velocity) {
		p.X += v.X * sec
		p.Y += v.Y * sec
	})
}

type healthData struct {
	clock  *ecs.ReadGuard[Clock]
	health *ecs.WriteGuard[ecs.Store[Health]]
}

func extractHealth(b *ecs.Batch) healthData {
	return healthData{
		clock:  ecs.ReadResource[Clock](b),
		health: ecs.WriteComponents[Health](b),
	}
}

// DecaySystem drains Health.Decay points every interval ticks.
// Phase 2 (Update).
type DecaySystem struct {
	Interval uint64
}

func (s *DecaySystem) Name() string        { return "decay" }
func (s *DecaySystem) Phase() system.Phase { return system.PhaseUpdate }

func (s *DecaySystem) Access() *access.Access {
	return access.MustMerge(access.Reads(tClock), access.Writes(tHealth))
}

func (s *DecaySystem) Extract(b *ecs.Batch) healthData { return extractHealth(b) }

func (s *DecaySystem) Run(d healthData, _ time.Duration) {
	if s.Interval > 1 && d.clock.Get().Tick%s.Interval != 0 {
		return
	}
	d.health.Get().Each(func(_ ecs.EntityID, h *Health) {
		if h.Decay > 0 && !h.Dead() {
			h.HP -= h.Decay
		}
	})
}

type reaperData struct {
	clock   *ecs.ReadGuard[Clock]
	health  *ecs.ReadGuard[ecs.Store[Health]]
	destroy *ecs.WriteGuard[ecs.DestroyQueue]
	died    *ecs.WriteGuard[event.Queue[Died]]
}

// ReaperSystem queues dead entities for destruction and emits Died.
// Phase 3 (PostUpdate); it shares Health with regen, so the two never overlap.
type ReaperSystem struct{}

func (ReaperSystem) Name() string        { return "reaper" }
func (ReaperSystem) Phase() system.Phase { return system.PhasePostUpdate }

func (ReaperSystem) Access() *access.Access {
	return access.MustMerge(
		access.Reads(tClock, tHealth),
		access.Writes(tDestroy, tDied),
	)
}

func (ReaperSystem) Extract(b *ecs.Batch) reaperData {
	return reaperData{
		clock:   ecs.ReadResource[Clock](b),
		health:  ecs.ReadComponents[Health](b),
		destroy: ecs.WriteResource[ecs.DestroyQueue](b),
		died:    ecs.WriteResource[event.Queue[Died]](b),
	}
}

func (ReaperSystem) Run(d reaperData, _ time.Duration) {
	tick := d.clock.Get().Tick
	q := d.destroy.Get()
	d.health.Get().Each(func(id ecs.EntityID, h *Health) {
		if h.Dead() {
			q.Mark(id)
			event.Emit(d.died, Died{ID: id, Tick: tick})
		}
	})
}

type censusData struct {
	clock  *ecs.ReadGuard[Clock]
	health *ecs.ReadGuard[ecs.Store[Health]]
	vel    *ecs.ReadGuard[ecs.Store[Velocity]]
	died   *ecs.ReadGuard[event.Queue[Died]]
	census *ecs.WriteGuard[Census]
}

// CensusSystem summarizes the population into the Census resource and logs
// it every Every ticks. Phase 4 (Output).
type CensusSystem struct {
	Every uint64
	Log   *zap.Logger
}

func (s *CensusSystem) Name() string        { return "census" }
func (s *CensusSystem) Phase() system.Phase { return system.PhaseOutput }

func (s *CensusSystem) Access() *access.Access {
	return access.MustMerge(
		access.Reads(tClock, tHealth, tVelocity, tDied),
		access.Writes(tCensus),
	)
}

func (s *CensusSystem) Extract(b *ecs.Batch) censusData {
	return censusData{
		clock:  ecs.ReadResource[Clock](b),
		health: ecs.ReadComponents[Health](b),
		vel:    ecs.ReadComponents[Velocity](b),
		died:   ecs.ReadResource[event.Queue[Died]](b),
		census: ecs.WriteResource[Census](b),
	}
}

func (s *CensusSystem) Run(d censusData, _ time.Duration) {
	c := d.census.Get()
	c.Tick = d.clock.Get().Tick
	c.Alive = 0
	d.health.Get().Each(func(_ ecs.EntityID, h *Health) {
		if !h.Dead() {
			c.Alive++
		}
	})
	c.Moving = 0
	d.vel.Get().Each(func(_ ecs.EntityID, v *Velocity) {
		if v.X != 0 || v.Y != 0 {
			c.Moving++
		}
	})
	c.Deaths += uint64(d.died.Get().Len())

	if s.Log != nil && s.Every > 0 && c.Tick%s.Every == 0 {
		s.Log.Info("census",
			zap.Uint64("tick", c.Tick),
			zap.Int("alive", c.Alive),
			zap.Int("moving", c.Moving),
			zap.Uint64("deaths", c.Deaths),
		)
	}
}
