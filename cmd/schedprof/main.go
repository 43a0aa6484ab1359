// schedprof runs a synthetic workload through both schedulers and writes a
// pprof profile of the run.
//
// Profiling:
// go build ./cmd/schedprof
// ./schedprof -profile cpu -systems 32 -passes 500
// go tool pprof -http=":8000" ./schedprof cpu.pprof
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/pkg/profile"
	"go.uber.org/zap"

	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/access"
	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/ecs"
	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/system"
)

type compA struct{ V, W float64 }
type compB struct{ V, W float64 }
type compC struct{ V, W float64 }
type compD struct{ V, W float64 }

type pairData[W, R any] struct {
	w *ecs.WriteGuard[ecs.Store[W]]
	r *ecs.ReadGuard[ecs.Store[R]]
}

// pair writes one component type and reads another, spinning work
// iterations per entity.
type pair[W, R any] struct {
	name  string
	work  int
	value func(*W) *float64
	read  func(*R) float64
}

func (p *pair[W, R]) Name() string { return p.name }

func (p *pair[W, R]) Access() *access.Access {
	return access.MustMerge(
		access.Writes(access.ComponentOf[W]()),
		access.Reads(access.ComponentOf[R]()),
	)
}

func (p *pair[W, R]) Extract(b *ecs.Batch) pairData[W, R] {
	return pairData[W, R]{w: ecs.WriteComponents[W](b), r: ecs.ReadComponents[R](b)}
}

func (p *pair[W, R]) Run(d pairData[W, R], dt time.Duration) {
	ecs.Each2(d.w.Get(), d.r.Get(), func(_ ecs.EntityID, w *W, r *R) {
		v := p.value(w)
		x := p.read(r)
		for i := 0; i < p.work; i++ {
			x = math.Sqrt(x*x + dt.Seconds())
		}
		*v = x
	})
}

func newPair[W, R any](name string, work int, value func(*W) *float64, read func(*R) float64) system.System {
	return system.Wrap[pairData[W, R]](&pair[W, R]{name: name, work: work, value: value, read: read})
}

func buildSystems(n, work int) []system.System {
	out := make([]system.System, 0, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("s%02d", i)
		switch i % 4 {
		case 0:
			out = append(out, newPair(name, work, func(c *compA) *float64 { return &c.V }, func(c *compB) float64 { return c.V }))
		case 1:
			out = append(out, newPair(name, work, func(c *compB) *float64 { return &c.W }, func(c *compC) float64 { return c.V }))
		case 2:
			out = append(out, newPair(name, work, func(c *compC) *float64 { return &c.W }, func(c *compD) float64 { return c.V }))
		default:
			out = append(out, newPair(name, work, func(c *compD) *float64 { return &c.W }, func(c *compA) float64 { return c.W }))
		}
	}
	return out
}

func populate(w *ecs.World, n int) error {
	for i := 0; i < n; i++ {
		id := w.CreateEntity()
		f := float64(i)
		if err := ecs.Insert(w, id, &compA{V: f, W: f}); err != nil {
			return err
		}
		if err := ecs.Insert(w, id, &compB{V: f, W: f}); err != nil {
			return err
		}
		if err := ecs.Insert(w, id, &compC{V: f, W: f}); err != nil {
			return err
		}
		if err := ecs.Insert(w, id, &compD{V: f, W: f}); err != nil {
			return err
		}
	}
	return nil
}

type result struct {
	mode    string
	elapsed time.Duration
	stats   system.PassStats
	parked  int
}

func bench(mode string, sched system.Scheduler, systems, work, passes, entities int) (result, error) {
	defer sched.Close()
	w := ecs.NewWorld()
	if err := populate(w, entities); err != nil {
		return result{}, err
	}
	list := make([]*system.Entry, 0, systems)
	for _, s := range buildSystems(systems, work) {
		list = append(list, system.NewEntry(s))
	}

	res := result{mode: mode}
	start := time.Now()
	for i := 0; i < passes; i++ {
		var err error
		list, err = sched.RunPass(list, w, time.Millisecond)
		if err != nil {
			return res, fmt.Errorf("%s pass %d: %w", mode, i, err)
		}
		res.parked += sched.Stats().Parked
		res.stats.PeakInFlight = max(res.stats.PeakInFlight, sched.Stats().PeakInFlight)
	}
	res.elapsed = time.Since(start)
	res.stats.Completed = sched.Stats().Completed
	return res, nil
}

func main() {
	fs := flag.NewFlagSet("schedprof", flag.ExitOnError)
	systems := fs.Int("systems", 32, "number of synthetic systems")
	passes := fs.Int("passes", 200, "passes per scheduler")
	entities := fs.Int("entities", 2000, "entities per world")
	work := fs.Int("work", 16, "inner iterations per entity")
	workers := fs.Int("workers", 0, "parallel workers (0 = NumCPU)")
	mode := fs.String("profile", "cpu", "profile mode: cpu, mem, block, mutex, trace or none")
	path := fs.String("path", ".", "profile output directory")
	_ = fs.Parse(os.Args[1:])

	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	logCfg.DisableStacktrace = true
	log, err := logCfg.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	var opt func(*profile.Profile)
	switch *mode {
	case "cpu":
		opt = profile.CPUProfile
	case "mem":
		opt = profile.MemProfile
	case "block":
		opt = profile.BlockProfile
	case "mutex":
		opt = profile.MutexProfile
	case "trace":
		opt = profile.TraceProfile
	}
	if opt != nil {
		defer profile.Start(opt, profile.ProfilePath(*path), profile.NoShutdownHook).Stop()
	}

	var results []result
	for _, run := range []struct {
		name  string
		sched system.Scheduler
	}{
		{"sequential", system.NewSequential()},
		{"parallel", system.NewParallel(*workers, 0, system.WithLogger(log.Named("parallel")))},
	} {
		res, err := bench(run.name, run.sched, *systems, *work, *passes, *entities)
		if err != nil {
			log.Error("benchmark failed", zap.Error(err))
			return
		}
		log.Info("benchmark done", zap.String("scheduler", res.mode), zap.Duration("elapsed", res.elapsed))
		results = append(results, res)
	}

	fmt.Printf("%-12s %12s %12s %10s %8s\n", "scheduler", "total", "per pass", "parked", "peak")
	for _, r := range results {
		fmt.Printf("%-12s %12s %12s %10d %8d\n",
			r.mode, r.elapsed.Round(time.Microsecond), (r.elapsed / time.Duration(*passes)).Round(time.Microsecond),
			r.parked, r.stats.PeakInFlight)
	}
}
