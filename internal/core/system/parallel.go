package system

import (
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/access"
	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/ecs"
	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/worker"
)

// Parallel runs system bodies on a worker pool. Admission, extraction and
// hand-back stay on the calling goroutine; only Run bodies move to workers.
type Parallel struct {
	pool  *worker.Pool[error]
	acc   *access.Access
	opts  options
	stats PassStats
}

// NewParallel starts a pool of workers (NumCPU when <= 0) accepting up to
// capacity outstanding jobs.
func NewParallel(workers, capacity int, opts ...Option) *Parallel {
	o := buildOptions(opts)
	return &Parallel{
		pool: worker.New[error](workers, capacity, o.log.Named("worker")),
		acc:  access.New(),
		opts: o,
	}
}

func (s *Parallel) Workers() int     { return s.pool.Size() }
func (s *Parallel) Stats() PassStats { return s.stats }
func (s *Parallel) Close()           { s.pool.Close() }

func (s *Parallel) RunPass(systems []*Entry, w *ecs.World, dt time.Duration) ([]*Entry, error) {
	r := &parallelRun{
		s:        s,
		p:        newPass(w, dt, s.acc, len(systems), &s.opts),
		inflight: make(map[uint64]*Job, s.pool.Size()),
	}
	r.p.busy = func() bool { return len(r.inflight) > 0 || len(r.ready) > 0 }
	out, err := r.run(systems)
	s.stats = r.p.stats
	s.opts.log.Debug("pass complete",
		zap.String("scheduler", "parallel"),
		zap.Int("systems", s.stats.Systems),
		zap.Int("completed", s.stats.Completed),
		zap.Int("parked", s.stats.Parked),
		zap.Int("leftover", s.stats.Leftover),
		zap.Int("peak_in_flight", s.stats.PeakInFlight),
		zap.Duration("elapsed", s.stats.Elapsed),
	)
	return out, err
}

type parallelRun struct {
	s        *Parallel
	p        *pass
	inflight map[uint64]*Job
	// ready holds admitted jobs waiting for pool capacity.
	ready []*Job
}

func (r *parallelRun) run(queue []*Entry) ([]*Entry, error) {
	next := 0
	for {
		if next < len(queue) && len(r.ready) == 0 {
			e := queue[next]
			next++
			job, err := r.p.admit(e)
			if err != nil {
				return r.abort(err, queue[next-1:])
			}
			if job != nil {
				if err := r.start(job); err != nil {
					return r.abort(err, queue[next:])
				}
			}
			if o, ok := r.s.pool.TryRecv(); ok {
				if err := r.receive(o); err != nil {
					return r.abort(err, queue[next:])
				}
			}
			continue
		}

		if len(r.inflight) > 0 {
			o, _ := r.s.pool.Recv()
			if err := r.receive(o); err != nil {
				return r.abort(err, queue[next:])
			}
			continue
		}

		if len(r.ready) > 0 {
			if err := r.flush(); err != nil {
				return r.abort(err, queue[next:])
			}
			continue
		}
		if next < len(queue) {
			continue
		}

		// Nothing in flight and nothing un-started. Anything still pending was
		// blocked by a slot held outside this pass; give it one more chance.
		waiting := len(r.p.pending)
		if waiting == 0 {
			break
		}
		if err := r.p.retry(r.start); err != nil {
			return r.abort(err, nil)
		}
		if err := r.flush(); err != nil {
			return r.abort(err, nil)
		}
		if len(r.p.pending) == waiting && len(r.inflight) == 0 && len(r.ready) == 0 {
			break
		}
	}
	return r.p.finish(), nil
}

// start hands an admitted job to the pool, or runs it here when it is exclusive.
func (r *parallelRun) start(j *Job) error {
	if j.inline {
		r.p.stats.PeakInFlight = max(r.p.stats.PeakInFlight, 1)
		return r.p.complete(j.Execute())
	}
	r.ready = append(r.ready, j)
	return r.flush()
}

func (r *parallelRun) flush() error {
	for len(r.ready) > 0 && !r.s.pool.Saturated() {
		j := r.ready[0]
		ticket, err := r.s.pool.Submit(j.body)
		if err != nil {
			return fmt.Errorf("submit %s: %w", j.entry.Name(), err)
		}
		r.ready[0] = nil
		r.ready = r.ready[1:]
		r.inflight[ticket] = j
		if n := len(r.inflight); n > r.p.stats.PeakInFlight {
			r.p.stats.PeakInFlight = n
		}
	}
	return nil
}

func (r *parallelRun) result(o worker.Outcome[error]) Result {
	j := r.inflight[o.Ticket]
	delete(r.inflight, o.Ticket)
	if o.Panic != nil {
		return Result{Job: j, Err: o.Panic}
	}
	return Result{Job: j, Err: o.Value}
}

// receive consumes one finished job and retries every pending system
// against the smaller accumulator.
func (r *parallelRun) receive(o worker.Outcome[error]) error {
	if err := r.p.complete(r.result(o)); err != nil {
		return err
	}
	if err := r.p.retry(r.start); err != nil {
		return err
	}
	return r.flush()
}

// abort drains every outstanding job, releases the guards of jobs that never
// started, and returns all systems so none is lost.
func (r *parallelRun) abort(cause error, rest []*Entry) ([]*Entry, error) {
	err := cause
	for _, o := range r.s.pool.Drain() {
		err = multierr.Append(err, r.p.complete(r.result(o)))
	}
	unstarted := make([]*Entry, 0, len(r.ready)+len(rest))
	for _, j := range r.ready {
		r.p.acc.Remove(j.access)
		err = multierr.Append(err, j.guards.HandBack())
		unstarted = append(unstarted, j.entry)
	}
	r.ready = nil
	unstarted = append(unstarted, rest...)
	r.s.opts.log.Error("pass aborted", zap.Error(err))
	return r.p.finish(unstarted), err
}
