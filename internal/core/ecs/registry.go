package ecs

import (
	"fmt"
	"sort"

	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/access"
)

type registered struct {
	slot interface {
		Type() access.Type
		State() State
	}
	// remove is set for component slots only.
	remove func(ids []EntityID) error
}

// Registry is the type-indexed map of Slots for one world. Slots are created
// lazily with their payload's zero value and live as long as the Registry.
//
// Not synchronized: lookups and creation happen on the scheduling goroutine only.
type Registry struct {
	slots map[access.Type]*registered
	order []access.Type
}

func NewRegistry() *Registry {
	return &Registry{
		slots: make(map[access.Type]*registered, 32),
		order: make([]access.Type, 0, 32),
	}
}

func (r *Registry) add(t access.Type, e *registered) {
	r.slots[t] = e
	r.order = append(r.order, t)
}

// Len returns the number of slots created so far.
func (r *Registry) Len() int { return len(r.slots) }

// Has reports whether a slot for t exists, without creating one.
func (r *Registry) Has(t access.Type) bool {
	_, ok := r.slots[t]
	return ok
}

// StateOf returns the state of t's slot, or Ready if it was never created.
func (r *Registry) StateOf(t access.Type) State {
	if e, ok := r.slots[t]; ok {
		return e.slot.State()
	}
	return State{}
}

// Types lists every slot type, sorted by name for stable output.
func (r *Registry) Types() []access.Type {
	out := make([]access.Type, len(r.order))
	copy(out, r.order)
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// ComponentSlot returns the slot holding T's component Store, creating it if absent.
func ComponentSlot[T any](r *Registry) *Slot[Store[T]] {
	t := access.ComponentOf[T]()
	if e, ok := r.slots[t]; ok {
		return e.slot.(*Slot[Store[T]])
	}
	s := newSlot(t, Store[T]{})
	r.add(t, &registered{
		slot: s,
		remove: func(ids []EntityID) error {
			g, err := s.Write()
			if err != nil {
				return err
			}
			st := g.Get()
			for _, id := range ids {
				st.Remove(id)
			}
			return g.HandBack()
		},
	})
	return s
}

// ResourceSlot returns the slot holding resource T, creating it with T's zero value if absent.
func ResourceSlot[T any](r *Registry) *Slot[T] {
	t := access.ResourceOf[T]()
	if e, ok := r.slots[t]; ok {
		return e.slot.(*Slot[T])
	}
	var zero T
	s := newSlot(t, zero)
	r.add(t, &registered{slot: s})
	return s
}

// RemoveAll clears the given entities from every component store. Every
// component slot must be Ready; if one is not, nothing is removed.
func (r *Registry) RemoveAll(ids []EntityID) error {
	if len(ids) == 0 {
		return nil
	}
	for _, t := range r.order {
		e := r.slots[t]
		if e.remove != nil && !e.slot.State().IsReady() {
			return fmt.Errorf("remove entities from %s (%s): %w", t, e.slot.State(), ErrNotAvailable)
		}
	}
	for _, t := range r.order {
		e := r.slots[t]
		if e.remove == nil {
			continue
		}
		if err := e.remove(ids); err != nil {
			return err
		}
	}
	return nil
}
