package system

import (
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/ecs"
)

// Runner executes systems in phase order each tick. Within a phase the
// scheduler decides what runs together; phases never overlap.
type Runner struct {
	world  *ecs.World
	sched  Scheduler
	phases [phaseCount][]*Entry
	ticks  uint64
	log    *zap.Logger
}

func NewRunner(world *ecs.World, sched Scheduler, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{world: world, sched: sched, log: log}
}

func (r *Runner) World() *ecs.World    { return r.world }
func (r *Runner) Scheduler() Scheduler { return r.sched }
func (r *Runner) Ticks() uint64        { return r.ticks }

// Register adds s to its phase, after the systems already there.
func (r *Runner) Register(s System) *Entry {
	ph := s.Phase()
	if ph < 0 || ph >= phaseCount {
		ph = PhaseUpdate
	}
	e := NewEntry(s)
	r.phases[ph] = append(r.phases[ph], e)
	r.log.Debug("system registered",
		zap.String("system", s.Name()),
		zap.Stringer("phase", ph),
		zap.Stringer("access", s.Access()),
		zap.String("id", e.ID.String()),
	)
	return e
}

// Systems returns every registered entry in phase order.
func (r *Runner) Systems() []*Entry {
	var out []*Entry
	for _, list := range r.phases {
		out = append(out, list...)
	}
	return out
}

// Tick runs one pass per phase. A fatal error stops the tick; later phases
// do not run.
func (r *Runner) Tick(dt time.Duration) error {
	r.ticks++
	for ph := PhaseInput; ph < phaseCount; ph++ {
		if err := r.TickPhase(ph, dt); err != nil {
			return err
		}
	}
	return nil
}

// TickPhase runs only the systems of the given phase.
func (r *Runner) TickPhase(phase Phase, dt time.Duration) error {
	list := r.phases[phase]
	if len(list) == 0 {
		return nil
	}
	next, err := r.sched.RunPass(list, r.world, dt)
	r.phases[phase] = next
	if err != nil {
		return fmt.Errorf("tick %d phase %s: %w", r.ticks, phase, err)
	}
	return nil
}

// Close stops the scheduler and releases resources held by systems.
func (r *Runner) Close() error {
	r.sched.Close()
	var err error
	for _, e := range r.Systems() {
		if cerr := e.sys.close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("close %s: %w", e.Name(), cerr))
		}
	}
	return err
}
