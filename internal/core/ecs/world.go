package ecs

import "fmt"

// DestroyQueue is the resource systems write to when an entity should be
// destroyed. The queue is flushed between passes by FlushDestroyQueue.
type DestroyQueue struct {
	ids []EntityID
}

func (q *DestroyQueue) Mark(id EntityID) { q.ids = append(q.ids, id) }
func (q *DestroyQueue) Len() int         { return len(q.ids) }

// World is the top-level ECS container. It owns the entity pool and the slot
// registry. Entity creation, slot creation and guard hand-back all happen on
// the scheduling goroutine.
type World struct {
	pool     *EntityPool
	registry *Registry
}

func NewWorld() *World {
	w := &World{
		pool:     NewEntityPool(),
		registry: NewRegistry(),
	}
	ResourceSlot[DestroyQueue](w.registry)
	return w
}

func (w *World) Pool() *EntityPool   { return w.pool }
func (w *World) Registry() *Registry { return w.registry }

func (w *World) CreateEntity() EntityID {
	return w.pool.Create()
}

func (w *World) Alive(id EntityID) bool {
	return w.pool.Alive(id)
}

// Insert attaches component c to entity id. The store must be Ready.
func Insert[T any](w *World, id EntityID, c *T) error {
	g, err := ComponentSlot[T](w.registry).Write()
	if err != nil {
		return fmt.Errorf("insert component: %w", err)
	}
	g.Get().Set(id, c)
	return g.HandBack()
}

// SetResource replaces resource T. The slot must be Ready.
func SetResource[T any](w *World, v T) error {
	g, err := ResourceSlot[T](w.registry).Write()
	if err != nil {
		return fmt.Errorf("set resource: %w", err)
	}
	g.Replace(v)
	return g.HandBack()
}

// MarkForDestruction queues an entity for the next flush. Systems should
// write the DestroyQueue resource instead of calling this during a pass.
func (w *World) MarkForDestruction(id EntityID) error {
	g, err := ResourceSlot[DestroyQueue](w.registry).Write()
	if err != nil {
		return fmt.Errorf("mark for destruction: %w", err)
	}
	g.Get().Mark(id)
	return g.HandBack()
}

// FlushDestroyQueue destroys all queued entities and clears their components.
// It needs every component slot and the queue itself Ready, so it runs
// between passes or from an exclusive system.
func (w *World) FlushDestroyQueue() (int, error) {
	g, err := ResourceSlot[DestroyQueue](w.registry).Write()
	if err != nil {
		return 0, fmt.Errorf("flush destroy queue: %w", err)
	}
	q := g.Get()
	live := q.ids[:0]
	for _, id := range q.ids {
		if w.pool.Alive(id) {
			live = append(live, id)
		}
	}
	if err := w.registry.RemoveAll(live); err != nil {
		q.ids = live
		if herr := g.HandBack(); herr != nil {
			return 0, herr
		}
		return 0, fmt.Errorf("flush destroy queue: %w", err)
	}
	n := 0
	for _, id := range live {
		// The same entity may have been marked twice.
		if w.pool.Destroy(id) {
			n++
		}
	}
	q.ids = q.ids[:0]
	return n, g.HandBack()
}
