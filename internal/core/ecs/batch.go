package ecs

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/access"
)

var errBatchCommitted = errors.New("batch already committed")

// ErrReacquired means a batch asked again for a slot it already holds. The
// slot refuses because of the batch's own guard, so retrying never helps.
var ErrReacquired = errors.New("slot already held by this batch")

// Batch acquires the guards of a compound query all-or-nothing. After the
// first failure nothing else is acquired; Commit then hands back whatever
// was already taken and reports the failure.
type Batch struct {
	reg       *Registry
	guards    Guards
	err       error
	failed    *access.Access
	committed bool
}

func NewBatch(w *World) *Batch {
	return &Batch{reg: w.registry, guards: make(Guards, 0, 4)}
}

// Err returns the first acquisition failure, if any.
func (b *Batch) Err() error { return b.err }

// Failed returns the claim that could not be acquired, or nil.
func (b *Batch) Failed() *access.Access { return b.failed }

func (b *Batch) skip() bool {
	if b.committed && b.err == nil {
		b.err = errBatchCommitted
	}
	return b.err != nil
}

func (b *Batch) fail(t access.Type, act access.Action, err error) {
	if b.holds(t) {
		err = fmt.Errorf("%s: %w", t, ErrReacquired)
	}
	b.err = err
	b.failed = access.Single(t, act)
}

func (b *Batch) holds(t access.Type) bool {
	for _, g := range b.guards {
		if held, _ := g.Claim(); held == t {
			return true
		}
	}
	return false
}

// Commit finishes the batch. On success it returns the held guards; on
// failure every already-acquired guard is handed back first.
func (b *Batch) Commit() (Guards, error) {
	if b.committed {
		return nil, errBatchCommitted
	}
	b.committed = true
	if b.err == nil {
		return b.guards, nil
	}
	err := b.err
	if herr := b.guards.HandBack(); herr != nil {
		err = multierr.Append(err, herr)
	}
	b.guards = nil
	return nil, err
}

func acquireRead[P any](b *Batch, s *Slot[P]) *ReadGuard[P] {
	g, err := s.Read()
	if err != nil {
		b.fail(s.Type(), access.Read(1), err)
		return nil
	}
	b.guards = append(b.guards, g)
	return g
}

func acquireWrite[P any](b *Batch, s *Slot[P]) *WriteGuard[P] {
	g, err := s.Write()
	if err != nil {
		b.fail(s.Type(), access.Write, err)
		return nil
	}
	b.guards = append(b.guards, g)
	return g
}

// ReadComponents adds a shared guard on T's component store to the batch.
// Returns nil once the batch has failed.
func ReadComponents[T any](b *Batch) *ReadGuard[Store[T]] {
	if b.skip() {
		return nil
	}
	return acquireRead(b, ComponentSlot[T](b.reg))
}

// WriteComponents adds the exclusive guard on T's component store.
func WriteComponents[T any](b *Batch) *WriteGuard[Store[T]] {
	if b.skip() {
		return nil
	}
	return acquireWrite(b, ComponentSlot[T](b.reg))
}

func ReadResource[T any](b *Batch) *ReadGuard[T] {
	if b.skip() {
		return nil
	}
	return acquireRead(b, ResourceSlot[T](b.reg))
}

func WriteResource[T any](b *Batch) *WriteGuard[T] {
	if b.skip() {
		return nil
	}
	return acquireWrite(b, ResourceSlot[T](b.reg))
}
