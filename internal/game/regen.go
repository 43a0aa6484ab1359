package game

import (
	"time"

	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/access"
	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/ecs"
	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/system"
)

// RegenSystem handles HP regeneration. Phase 3 (PostUpdate); runs every
// tick, the clock gates actual regen.
//
// Every Every ticks each living entity's RegenAcc grows by one. Once it
// reaches Threshold the entity gains Amount HP, capped at MaxHP, and the
// accumulator resets. Dead entities never regenerate; the reaper owns them.
type RegenSystem struct {
	Every     uint64
	Threshold int32
	Amount    int32
}

func NewRegenSystem() *RegenSystem {
	return &RegenSystem{Every: 5, Threshold: 2, Amount: 1}
}

func (s *RegenSystem) Name() string        { return "regen" }
func (s *RegenSystem) Phase() system.Phase { return system.PhasePostUpdate }

func (s *RegenSystem) Access() *access.Access {
	return access.MustMerge(access.Reads(tClock), access.Writes(tHealth))
}

func (s *RegenSystem) Extract(b *ecs.Batch) healthData { return extractHealth(b) }

func (s *RegenSystem) Run(d healthData, _ time.Duration) {
	if s.Every > 1 && d.clock.Get().Tick%s.Every != 0 {
		return
	}
	d.health.Get().Each(func(_ ecs.EntityID, h *Health) {
		s.tick(h)
	})
}

func (s *RegenSystem) tick(h *Health) {
	if h.Dead() || h.HP >= h.MaxHP {
		return
	}
	h.RegenAcc++
	if h.RegenAcc < max(s.Threshold, 1) {
		return
	}
	h.RegenAcc = 0
	h.HP = min(h.HP+s.Amount, h.MaxHP)
}
