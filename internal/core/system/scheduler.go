package system

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/access"
	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/ecs"
)

// Scheduler runs one pass over a list of systems. The returned list holds
// every input system, completed ones first, and is the input for the next pass.
type Scheduler interface {
	RunPass(systems []*Entry, w *ecs.World, dt time.Duration) ([]*Entry, error)
	Stats() PassStats
	Close()
}

// EventKind is what happened to a system during a pass.
type EventKind int

const (
	EventAdmitted  EventKind = iota // access granted, data extracted
	EventParked                     // blocked, moved to pending
	EventCompleted                  // ran, guards handed back
	EventLeftover                   // still pending when the pass ended
)

func (k EventKind) String() string {
	switch k {
	case EventAdmitted:
		return "admitted"
	case EventParked:
		return "parked"
	case EventCompleted:
		return "completed"
	case EventLeftover:
		return "leftover"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is emitted to the trace hook. Access is the claim granted when
// admitted and the failing claim when parked.
type Event struct {
	Kind   EventKind
	System string
	Access *access.Access
}

// PassStats summarizes the most recent pass.
type PassStats struct {
	Systems      int
	Completed    int
	Parked       int
	Leftover     int
	PeakInFlight int
	Elapsed      time.Duration
}

type options struct {
	log   *zap.Logger
	trace func(Event)
}

// Option configures a scheduler.
type Option func(*options)

func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithTrace installs a hook called on the scheduling goroutine for every
// admission, parking, completion and leftover.
func WithTrace(fn func(Event)) Option {
	return func(o *options) { o.trace = fn }
}

func buildOptions(opts []Option) options {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	return o
}

// pass is the state of one scheduling pass. It never outlives RunPass.
type pass struct {
	world   *ecs.World
	dt      time.Duration
	acc     *access.Access
	pending []*Entry
	done    []*Entry
	opts    *options
	stats   PassStats
	start   time.Time
	// busy reports whether jobs of this pass are still outstanding.
	busy    func() bool
}

func newPass(w *ecs.World, dt time.Duration, acc *access.Access, n int, opts *options) *pass {
	acc.Reset()
	return &pass{
		world:   w,
		dt:      dt,
		acc:     acc,
		pending: make([]*Entry, 0, n),
		done:    make([]*Entry, 0, n),
		opts:    opts,
		stats:   PassStats{Systems: n},
		start:   time.Now(),
	}
}

func (p *pass) emit(kind EventKind, e *Entry, a *access.Access) {
	if p.opts.trace != nil {
		p.opts.trace(Event{Kind: kind, System: e.Name(), Access: a})
	}
}

// errBusy parks an exclusive system while other jobs are outstanding.
// A system with no declared access never enters the accumulator, so the
// All claim alone cannot keep it out.
var errBusy = fmt.Errorf("jobs in flight: %w", access.ErrConflict)

func (p *pass) dispatch(e *Entry) Outcome {
	if e.sys.inline() && p.busy != nil && p.busy() {
		return Outcome{State: Blocked, Failed: e.sys.Access(), Err: fmt.Errorf("dispatch %s: %w", e.Name(), errBusy)}
	}
	return Dispatch(e, p.acc, p.world, p.dt)
}

// admit dispatches e. It returns the job when admitted, nil when e was
// parked, or a fatal error.
func (p *pass) admit(e *Entry) (*Job, error) {
	out := p.dispatch(e)
	if out.State == Dispatched {
		p.emit(EventAdmitted, e, out.Job.access)
		return out.Job, nil
	}
	if IsFatal(out.Err) || !IsRetryable(out.Err) {
		return nil, out.Err
	}
	p.opts.log.Debug("system parked",
		zap.String("system", e.Name()),
		zap.Stringer("claim", out.Failed),
		zap.Error(out.Err),
	)
	p.pending = append(p.pending, e)
	p.stats.Parked++
	p.emit(EventParked, e, out.Failed)
	return nil, nil
}

// complete consumes a result on the scheduling goroutine: the job's access
// leaves the accumulator and its guards go back to their slots.
func (p *pass) complete(r Result) error {
	j := r.Job
	p.acc.Remove(j.access)
	err := r.Consume()
	p.done = append(p.done, j.entry)
	p.stats.Completed++
	p.emit(EventCompleted, j.entry, j.access)
	return err
}

// retry re-attempts every pending system once against the current
// accumulator, handing each admitted job to start.
func (p *pass) retry(start func(*Job) error) error {
	if len(p.pending) == 0 {
		return nil
	}
	waiting := p.pending
	p.pending = make([]*Entry, 0, len(waiting))
	for i, e := range waiting {
		out := p.dispatch(e)
		if out.State != Dispatched {
			if IsFatal(out.Err) || !IsRetryable(out.Err) {
				p.pending = append(p.pending, waiting[i:]...)
				return out.Err
			}
			p.pending = append(p.pending, e)
			continue
		}
		p.emit(EventAdmitted, e, out.Job.access)
		if err := start(out.Job); err != nil {
			p.pending = append(p.pending, waiting[i+1:]...)
			return err
		}
	}
	return nil
}

// finish appends everything not completed after done, so no system is ever dropped.
func (p *pass) finish(rest ...[]*Entry) []*Entry {
	for _, e := range p.pending {
		p.emit(EventLeftover, e, e.sys.Access())
		p.opts.log.Warn("system left pending",
			zap.String("system", e.Name()),
			zap.Stringer("access", e.sys.Access()),
		)
	}
	p.stats.Leftover = len(p.pending)
	out := append(p.done, p.pending...)
	for _, r := range rest {
		out = append(out, r...)
	}
	p.stats.Elapsed = time.Since(p.start)
	return out
}
