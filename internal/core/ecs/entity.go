package ecs

import "fmt"

// EntityID packs a generation (high 32 bits) and a slot index (low 32 bits).
// Destroying an entity bumps its index's generation, so old ids stop matching.
type EntityID uint64

func NewEntityID(index uint32, generation uint32) EntityID {
	return EntityID(uint64(generation)<<32 | uint64(index))
}

func (id EntityID) Index() uint32      { return uint32(id) }
func (id EntityID) Generation() uint32 { return uint32(id >> 32) }

func (id EntityID) String() string {
	return fmt.Sprintf("%d:%d", id.Index(), id.Generation())
}

// EntityPool allocates entity ids. Freed indices are reused most recent first.
type EntityPool struct {
	gens []uint32 // current generation of every index ever handed out
	free []uint32
}

func NewEntityPool() *EntityPool {
	return &EntityPool{gens: make([]uint32, 0, 1024)}
}

func (p *EntityPool) Create() EntityID {
	if n := len(p.free); n > 0 {
		idx := p.free[n-1]
		p.free = p.free[:n-1]
		return NewEntityID(idx, p.gens[idx])
	}
	p.gens = append(p.gens, 0)
	return NewEntityID(uint32(len(p.gens)-1), 0)
}

func (p *EntityPool) Alive(id EntityID) bool {
	idx := int(id.Index())
	return idx < len(p.gens) && p.gens[idx] == id.Generation()
}

// Destroy retires id and reports whether it was alive. Stale ids are ignored.
func (p *EntityPool) Destroy(id EntityID) bool {
	if !p.Alive(id) {
		return false
	}
	idx := id.Index()
	p.gens[idx]++
	p.free = append(p.free, idx)
	return true
}

// Count returns the number of live entities.
func (p *EntityPool) Count() int { return len(p.gens) - len(p.free) }
