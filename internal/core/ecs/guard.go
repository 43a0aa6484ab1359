package ecs

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/access"
)

// Guard is a type-erased read or write guard.
type Guard interface {
	// Claim reports what the guard holds.
	Claim() (access.Type, access.Action)
	// HandBack returns the guard to its slot. Must be called exactly once,
	// on the scheduling goroutine.
	HandBack() error
}

// Guards is the set of guards one dispatched system holds.
type Guards []Guard

// HandBack returns every guard, even if some fail, and combines the errors.
func (gs Guards) HandBack() error {
	var err error
	for _, g := range gs {
		err = multierr.Append(err, g.HandBack())
	}
	return err
}

// Access describes what the guards hold. Two reader guards on the same
// slot count as Read(2). Read and write guards on one slot can only come
// from a broken slot, and are reported with ErrGuardMismatch.
func (gs Guards) Access() (*access.Access, error) {
	a := access.New()
	for _, g := range gs {
		t, act := g.Claim()
		if err := a.TryCombine(access.Single(t, act)); err != nil {
			return nil, fmt.Errorf("guards overlap on %s: %w: %w", t, ErrGuardMismatch, err)
		}
	}
	return a, nil
}
