package main

import (
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/profile"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/DrMatrix007/MatrixEngine-sub000/internal/config"
	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/ecs"
	"github.com/DrMatrix007/MatrixEngine-sub000/internal/core/system"
	"github.com/DrMatrix007/MatrixEngine-sub000/internal/data"
	"github.com/DrMatrix007/MatrixEngine-sub000/internal/game"
	"github.com/DrMatrix007/MatrixEngine-sub000/internal/scripting"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(name string, mode string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m            MatrixEngine  v0.1.0           \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m        ECS scheduler · Go runtime         \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mengine:\033[0m %s \033[90m(scheduler: %s)\033[0m\n\n", name, mode)
}

func printSection(title string) {
	lineLen := max(46-len(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := max(42-len(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Engine ────────────────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfg, err := config.Load(config.Path("config/matrix.toml"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	if stop := startProfile(cfg.Profile); stop != nil {
		defer stop()
	}

	printBanner(cfg.Engine.Name, cfg.Scheduler.Mode)

	// 3. Scheduler and world
	printSection("scheduler")
	sched := newScheduler(cfg.Scheduler, log)
	if p, ok := sched.(*system.Parallel); ok {
		printStat("workers", p.Workers())
	}
	runner := system.NewRunner(ecs.NewWorld(), sched, log.Named("runner"))
	defer func() {
		if err := runner.Close(); err != nil {
			log.Error("shutdown", zap.Error(err))
		}
	}()
	fmt.Println()

	// 4. Built-in systems and demo entities
	printSection("world")
	builtin, err := game.Install(runner, game.Options{
		DecayEvery:  5,
		CensusEvery: max(uint64(5*time.Second/cfg.Engine.TickRate), 1),
		Log:         log,
	})
	if err != nil {
		return fmt.Errorf("install game: %w", err)
	}
	printStat("built-in systems", len(builtin))
	rng := rand.New(rand.NewPCG(uint64(cfg.Engine.StartTime), 0x6d61747269780a))
	ids, err := game.Spawn(runner.World(), cfg.World.Entities, rng)
	if err != nil {
		return fmt.Errorf("spawn: %w", err)
	}
	printStat("entities", len(ids))
	fmt.Println()

	// 5. Scripted systems
	if cfg.Scripting.Enabled {
		printSection("scripting")
		n, err := loadScripts(runner, cfg.Scripting, log)
		if err != nil {
			return fmt.Errorf("scripting: %w", err)
		}
		printStat("lua systems", n)
		fmt.Println()
	}
	for _, e := range runner.Systems() {
		log.Debug("system",
			zap.String("name", e.Name()),
			zap.Stringer("phase", e.Phase()),
			zap.Stringer("access", e.System().Access()),
		)
	}
	printOK(fmt.Sprintf("%d systems registered", len(runner.Systems())))
	fmt.Println()

	// 6. Start engine loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Engine.TickRate)
	defer ticker.Stop()

	printSection("ready")
	printReady(fmt.Sprintf("engine loop started (tick: %s)", cfg.Engine.TickRate))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			if err := runner.Tick(cfg.Engine.TickRate); err != nil {
				log.Error("tick failed", zap.Uint64("tick", runner.Ticks()), zap.Error(err))
				if system.IsFatal(err) {
					return err
				}
			}
			if cfg.Engine.MaxTicks > 0 && runner.Ticks() >= cfg.Engine.MaxTicks {
				log.Info("tick limit reached", zap.Uint64("ticks", runner.Ticks()))
				return nil
			}
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			log.Info("engine stopped", zap.Uint64("ticks", runner.Ticks()))
			return nil
		}
	}
}

func newScheduler(cfg config.SchedulerConfig, log *zap.Logger) system.Scheduler {
	opts := []system.Option{system.WithLogger(log.Named("scheduler"))}
	if cfg.Mode == config.ModeSequential {
		return system.NewSequential(opts...)
	}
	return system.NewParallel(cfg.Workers, cfg.QueueSize, opts...)
}

// loadScripts registers every enabled system in the manifest.
func loadScripts(runner *system.Runner, cfg config.ScriptingConfig, log *zap.Logger) (int, error) {
	manifest, err := data.LoadManifest(cfg.Manifest)
	if err != nil {
		return 0, err
	}
	bindings, err := game.Bindings()
	if err != nil {
		return 0, err
	}
	systems, err := scripting.Load(manifest, cfg.Dir, bindings, log.Named("lua"))
	if err != nil {
		return 0, err
	}
	for _, s := range systems {
		runner.Register(s.System())
	}
	return len(systems), nil
}

func startProfile(cfg config.ProfileConfig) func() {
	var mode func(*profile.Profile)
	switch cfg.Mode {
	case "cpu":
		mode = profile.CPUProfile
	case "mem":
		mode = profile.MemProfile
	case "block":
		mode = profile.BlockProfile
	case "mutex":
		mode = profile.MutexProfile
	case "trace":
		mode = profile.TraceProfile
	default:
		return nil
	}
	p := profile.Start(mode, profile.ProfilePath(cfg.Path), profile.NoShutdownHook, profile.Quiet)
	return p.Stop
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
