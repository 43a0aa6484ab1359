package event

import (
	"fmt"
	"reflect"
	"time"

	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/access"
	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/ecs"
	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/system"
)

// swapper rotates one queue at the start of each tick.
type swapper[T any] struct {
	name string
}

// SwapSystem returns the PhaseInput system that makes last tick's T events
// readable.
func SwapSystem[T any]() system.System {
	return system.Wrap[*ecs.WriteGuard[Queue[T]]](&swapper[T]{
		name: fmt.Sprintf("events.swap(%s)", reflect.TypeFor[T]()),
	})
}

func (s *swapper[T]) Name() string        { return s.name }
func (s *swapper[T]) Phase() system.Phase { return system.PhaseInput }

func (s *swapper[T]) Access() *access.Access {
	return access.Writes(access.ResourceOf[Queue[T]]())
}

func (s *swapper[T]) Extract(b *ecs.Batch) *ecs.WriteGuard[Queue[T]] {
	return ecs.WriteResource[Queue[T]](b)
}

func (s *swapper[T]) Run(g *ecs.WriteGuard[Queue[T]], _ time.Duration) {
	g.Get().Swap()
}
