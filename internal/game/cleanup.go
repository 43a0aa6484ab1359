package game

import (
	"time"

	"go.uber.org/zap"

	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/ecs"
	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/system"
)

// NewCleanupSystem flushes the deferred entity destruction queue at tick end.
// Phase 5 (Cleanup). It claims the whole world, so it runs alone.
func NewCleanupSystem(log *zap.Logger) system.System {
	if log == nil {
		log = zap.NewNop()
	}
	return system.Exclusive("cleanup", system.PhaseCleanup, func(w *ecs.World, _ time.Duration) error {
		n, err := w.FlushDestroyQueue()
		if err != nil {
			return err
		}
		if n > 0 {
			log.Debug("entities destroyed", zap.Int("count", n), zap.Int("alive", w.Pool().Count()))
		}
		return nil
	})
}
