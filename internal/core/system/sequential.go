package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/access"
	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/ecs"
)

// Sequential runs every system inline on the calling goroutine. It goes
// through the same admission and hand-back steps as Parallel so both
// schedulers observe the same access rules.
type Sequential struct {
	acc   *access.Access
	opts  options
	stats PassStats
}

func NewSequential(opts ...Option) *Sequential {
	return &Sequential{acc: access.New(), opts: buildOptions(opts)}
}

func (s *Sequential) Stats() PassStats { return s.stats }
func (s *Sequential) Close()           {}

func (s *Sequential) RunPass(systems []*Entry, w *ecs.World, dt time.Duration) ([]*Entry, error) {
	p := newPass(w, dt, s.acc, len(systems), &s.opts)
	out, err := s.run(p, systems)
	s.stats = p.stats
	s.opts.log.Debug("pass complete",
		zap.String("scheduler", "sequential"),
		zap.Int("systems", s.stats.Systems),
		zap.Int("completed", s.stats.Completed),
		zap.Int("parked", s.stats.Parked),
		zap.Int("leftover", s.stats.Leftover),
		zap.Duration("elapsed", s.stats.Elapsed),
	)
	return out, err
}

func (s *Sequential) run(p *pass, systems []*Entry) ([]*Entry, error) {
	start := func(j *Job) error {
		p.stats.PeakInFlight = 1
		return p.complete(j.Execute())
	}
	for i, e := range systems {
		job, err := p.admit(e)
		if err != nil {
			return p.finish(systems[i:]), err
		}
		if job == nil {
			continue
		}
		if err := start(job); err != nil {
			return p.finish(systems[i+1:]), err
		}
		if err := p.retry(start); err != nil {
			return p.finish(systems[i+1:]), err
		}
	}
	// Systems parked after the last completion get one more attempt.
	if err := p.retry(start); err != nil {
		return p.finish(), err
	}
	return p.finish(), nil
}
