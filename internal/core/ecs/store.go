package ecs

// Store is the component collection for one component type. It is the
// payload of a component Slot, so its zero value must be ready to use.
// No locking: exclusivity comes from the slot's guards.
type Store[T any] struct {
	data map[EntityID]*T
}

func NewStore[T any]() Store[T] {
	return Store[T]{data: make(map[EntityID]*T, 256)}
}

func (s *Store[T]) Set(id EntityID, c *T) {
	if s.data == nil {
		s.data = make(map[EntityID]*T, 256)
	}
	s.data[id] = c
}

func (s *Store[T]) Get(id EntityID) (*T, bool) {
	c, ok := s.data[id]
	return c, ok
}

func (s *Store[T]) Remove(id EntityID) {
	delete(s.data, id)
}

func (s *Store[T]) Has(id EntityID) bool {
	_, ok := s.data[id]
	return ok
}

func (s *Store[T]) Len() int {
	return len(s.data)
}

func (s *Store[T]) Each(fn func(EntityID, *T)) {
	for id, c := range s.data {
		fn(id, c)
	}
}

// Each2 visits entities present in both stores, ranging over the smaller one.
func Each2[A, B any](sa *Store[A], sb *Store[B], fn func(EntityID, *A, *B)) {
	if sb.Len() < sa.Len() {
		Each2(sb, sa, func(id EntityID, b *B, a *A) { fn(id, a, b) })
		return
	}
	for id, a := range sa.data {
		if b, ok := sb.data[id]; ok {
			fn(id, a, b)
		}
	}
}

// Each3 visits entities present in all three stores. The pair walk is driven
// by the smallest store; the remaining one is probed.
func Each3[A, B, C any](sa *Store[A], sb *Store[B], sc *Store[C], fn func(EntityID, *A, *B, *C)) {
	if sc.Len() < sa.Len() && sc.Len() < sb.Len() {
		Each2(sc, sa, func(id EntityID, c *C, a *A) {
			if b, ok := sb.data[id]; ok {
				fn(id, a, b, c)
			}
		})
		return
	}
	Each2(sa, sb, func(id EntityID, a *A, b *B) {
		if c, ok := sc.data[id]; ok {
			fn(id, a, b, c)
		}
	})
}
