package system

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/access"
	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/ecs"
	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/worker"
)

// Phase defines execution ordering within a single tick. Each phase is one
// scheduler pass; a phase starts only after the previous one fully drained.
type Phase int

const (
	PhaseInput      Phase = iota // 0: clocks, external input
	PhasePreUpdate               // 1: process last tick's events
	PhaseUpdate                  // 2: game logic
	PhasePostUpdate              // 3: regen, spawn, visibility
	PhaseOutput                  // 4: summaries, outbound data
	PhaseCleanup                 // 5: destroy queued entities

	phaseCount
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhasePreUpdate:
		return "pre_update"
	case PhaseUpdate:
		return "update"
	case PhasePostUpdate:
		return "post_update"
	case PhaseOutput:
		return "output"
	case PhaseCleanup:
		return "cleanup"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ParsePhase is the inverse of Phase.String.
func ParsePhase(s string) (Phase, error) {
	for p := PhaseInput; p < phaseCount; p++ {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", s)
}

var (
	// ErrUndeclaredAccess means a system acquired data it did not declare.
	ErrUndeclaredAccess = errors.New("undeclared access")

	// ErrSystemFailed wraps an error returned by an exclusive system body.
	ErrSystemFailed = errors.New("system failed")
)

// IsRetryable reports whether a dispatch failure only means "not now".
func IsRetryable(err error) bool {
	return errors.Is(err, access.ErrConflict) || errors.Is(err, ecs.ErrNotAvailable)
}

// IsFatal reports whether err must stop the engine loop.
func IsFatal(err error) bool {
	return errors.Is(err, ecs.ErrGuardMismatch) ||
		errors.Is(err, worker.ErrWorkerPanic) ||
		errors.Is(err, ErrUndeclaredAccess) ||
		errors.Is(err, ErrSystemFailed)
}

// Unit is one system's logic with its concrete extraction type D.
// Access must not touch the world. Extract runs on the scheduling goroutine
// and acquires exactly the declared data through the batch; Run may run on
// any goroutine and sees only what Extract returned.
type Unit[D any] interface {
	Name() string
	Access() *access.Access
	Extract(b *ecs.Batch) D
	Run(data D, dt time.Duration)
}

// Phased is implemented by units that do not run in PhaseUpdate.
type Phased interface {
	Phase() Phase
}

// Closer is implemented by units that own resources outside the world.
type Closer interface {
	Close() error
}

// System is the type-erased form the scheduler stores. Build one with Wrap
// or Exclusive.
type System interface {
	Name() string
	Phase() Phase
	Access() *access.Access
	prepare(w *ecs.World, dt time.Duration) (run func() error, guards ecs.Guards, failed *access.Access, err error)
	inline() bool
	close() error
}

type unit[D any] struct {
	u     Unit[D]
	phase Phase
}

// Wrap adapts a Unit to the scheduler.
func Wrap[D any](u Unit[D]) System {
	ph := PhaseUpdate
	if p, ok := u.(Phased); ok {
		ph = p.Phase()
	}
	return &unit[D]{u: u, phase: ph}
}

func (s *unit[D]) Name() string           { return s.u.Name() }
func (s *unit[D]) Phase() Phase           { return s.phase }
func (s *unit[D]) Access() *access.Access { return s.u.Access() }
func (s *unit[D]) inline() bool           { return false }

func (s *unit[D]) prepare(w *ecs.World, dt time.Duration) (func() error, ecs.Guards, *access.Access, error) {
	b := ecs.NewBatch(w)
	data := s.u.Extract(b)
	guards, err := b.Commit()
	if err != nil {
		return nil, nil, b.Failed(), err
	}
	u := s.u
	return func() error {
		u.Run(data, dt)
		return nil
	}, guards, nil, nil
}

func (s *unit[D]) close() error {
	if c, ok := s.u.(Closer); ok {
		return c.Close()
	}
	return nil
}

type exclusive struct {
	name  string
	phase Phase
	fn    func(w *ecs.World, dt time.Duration) error
}

// Exclusive builds a system that claims the whole world. It is admitted only
// when no other job of the pass is in flight or waiting for a worker, then
// runs inline on the scheduling goroutine and may use the World directly.
func Exclusive(name string, phase Phase, fn func(w *ecs.World, dt time.Duration) error) System {
	return &exclusive{name: name, phase: phase, fn: fn}
}

func (s *exclusive) Name() string           { return s.name }
func (s *exclusive) Phase() Phase           { return s.phase }
func (s *exclusive) Access() *access.Access { return access.All() }
func (s *exclusive) inline() bool           { return true }
func (s *exclusive) close() error           { return nil }

func (s *exclusive) prepare(w *ecs.World, dt time.Duration) (func() error, ecs.Guards, *access.Access, error) {
	fn := s.fn
	return func() error { return fn(w, dt) }, nil, nil, nil
}

// Entry is a registered system plus the identity and statistics that
// persist across passes. Extracted data never does.
type Entry struct {
	ID      uuid.UUID
	sys     System
	Runs    uint64
	LastRun time.Duration
}

func NewEntry(s System) *Entry {
	return &Entry{ID: uuid.New(), sys: s}
}

func (e *Entry) System() System { return e.sys }
func (e *Entry) Name() string   { return e.sys.Name() }
func (e *Entry) Phase() Phase   { return e.sys.Phase() }
