package ecs

import (
	"errors"
	"fmt"

	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/access"
)

var (
	// ErrNotAvailable means the slot is held in a way that excludes the
	// requested guard. Retryable: the caller should try again later.
	ErrNotAvailable = errors.New("slot not available")

	// ErrGuardMismatch means a guard was handed back to a slot that did not
	// issue it, twice, or after its phase ended. This is a protocol violation.
	ErrGuardMismatch = errors.New("guard identity mismatch")
)

// State is the read/write state of a Slot.
type State struct {
	readers int
	writing bool
}

func (s State) IsReady() bool   { return !s.writing && s.readers == 0 }
func (s State) IsWriting() bool { return s.writing }
func (s State) Readers() int    { return s.readers }

func (s State) String() string {
	switch {
	case s.writing:
		return "Write"
	case s.readers > 0:
		return fmt.Sprintf("Read(%d)", s.readers)
	default:
		return "Ready"
	}
}

// Slot owns one payload and hands out explicit read/write guards for it.
// Guards are not released on scope exit: they travel to worker goroutines
// and must be passed back through ConsumeRead / ConsumeWrite.
//
// A Slot has no lock. All state transitions happen on the scheduling
// goroutine; payload access through a guard is ordered by the channel
// hand-off that moves the guard between goroutines.
type Slot[T any] struct {
	value T
	typ   access.Type
	state State

	// epoch advances on every Ready->Read and Ready->Write transition, so
	// guards from an earlier phase never match the current one.
	epoch uint64
}

func newSlot[T any](t access.Type, v T) *Slot[T] {
	return &Slot[T]{value: v, typ: t}
}

func (s *Slot[T]) Type() access.Type { return s.typ }
func (s *Slot[T]) State() State      { return s.state }
func (s *Slot[T]) CanRead() bool     { return !s.state.writing }
func (s *Slot[T]) CanWrite() bool    { return s.state.IsReady() }

// Read issues a shared guard. Fails with ErrNotAvailable while a writer holds the slot.
func (s *Slot[T]) Read() (*ReadGuard[T], error) {
	if s.state.writing {
		return nil, fmt.Errorf("read %s (%s): %w", s.typ, s.state, ErrNotAvailable)
	}
	if s.state.readers == 0 {
		s.epoch++
	}
	s.state.readers++
	return &ReadGuard[T]{slot: s, epoch: s.epoch}, nil
}

// Write issues the exclusive guard. Fails with ErrNotAvailable unless Ready.
func (s *Slot[T]) Write() (*WriteGuard[T], error) {
	if !s.state.IsReady() {
		return nil, fmt.Errorf("write %s (%s): %w", s.typ, s.state, ErrNotAvailable)
	}
	s.epoch++
	s.state.writing = true
	return &WriteGuard[T]{slot: s, epoch: s.epoch}, nil
}

// ConsumeRead takes back a reader guard. Readers from the same phase are
// interchangeable, so they may come back in any order.
func (s *Slot[T]) ConsumeRead(g *ReadGuard[T]) error {
	if g == nil || g.slot != s || g.spent || s.state.writing ||
		s.state.readers == 0 || g.epoch != s.epoch {
		return fmt.Errorf("consume read %s (%s): %w", s.typ, s.state, ErrGuardMismatch)
	}
	g.spent = true
	s.state.readers--
	return nil
}

// ConsumeWrite takes back the outstanding write guard.
func (s *Slot[T]) ConsumeWrite(g *WriteGuard[T]) error {
	if g == nil || g.slot != s || g.spent || !s.state.writing || g.epoch != s.epoch {
		return fmt.Errorf("consume write %s (%s): %w", s.typ, s.state, ErrGuardMismatch)
	}
	g.spent = true
	s.state.writing = false
	return nil
}

// ReadGuard proves shared access to a Slot's payload.
type ReadGuard[T any] struct {
	slot  *Slot[T]
	epoch uint64
	spent bool
}

// Get returns the payload. Callers must not mutate it.
func (g *ReadGuard[T]) Get() *T { return &g.slot.value }

func (g *ReadGuard[T]) Claim() (access.Type, access.Action) { return g.slot.typ, access.Read(1) }
func (g *ReadGuard[T]) HandBack() error                     { return g.slot.ConsumeRead(g) }

// WriteGuard proves exclusive access to a Slot's payload.
type WriteGuard[T any] struct {
	slot  *Slot[T]
	epoch uint64
	spent bool
}

func (g *WriteGuard[T]) Get() *T { return &g.slot.value }

// Replace swaps the payload in place.
func (g *WriteGuard[T]) Replace(v T) { g.slot.value = v }

func (g *WriteGuard[T]) Claim() (access.Type, access.Action) { return g.slot.typ, access.Write }
func (g *WriteGuard[T]) HandBack() error                     { return g.slot.ConsumeWrite(g) }
