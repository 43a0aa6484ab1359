package event

import (
	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/ecs"
)

// Queue is a double-buffered event queue stored as a world resource.
// Events emitted during tick N become readable after Swap, normally at the
// start of tick N+1. The slot guarding the resource serializes access, so
// the queue itself holds no lock: emitters declare Write, consumers that only
// iterate declare Read.
type Queue[T any] struct {
	front []T
	back  []T
	total uint64
}

// Emit queues an event into the back buffer.
func (q *Queue[T]) Emit(ev T) {
	q.back = append(q.back, ev)
	q.total++
}

// Swap rotates back to front and clears the new back buffer.
func (q *Queue[T]) Swap() {
	q.front, q.back = q.back, q.front[:0]
}

// Each calls fn for every readable event in emission order.
func (q *Queue[T]) Each(fn func(T)) {
	for _, ev := range q.front {
		fn(ev)
	}
}

// Readable returns the events visible this tick. The slice is reused after
// the next Swap.
func (q *Queue[T]) Readable() []T { return q.front }

func (q *Queue[T]) Len() int      { return len(q.front) }
func (q *Queue[T]) Queued() int   { return len(q.back) }
func (q *Queue[T]) Total() uint64 { return q.total }

// Register creates the queue resource for T in w. It is a no-op when the
// resource already exists.
func Register[T any](w *ecs.World) *ecs.Slot[Queue[T]] {
	return ecs.ResourceSlot[Queue[T]](w.Registry())
}

// Emit queues ev through a write guard held by the caller.
func Emit[T any](g *ecs.WriteGuard[Queue[T]], ev T) {
	g.Get().Emit(ev)
}
