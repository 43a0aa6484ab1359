package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/BurntSushi/toml"
)

// EnvPath names the environment variable that overrides the config path.
const EnvPath = "MATRIX_CONFIG"

type Config struct {
	Engine    EngineConfig    `toml:"engine"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Scripting ScriptingConfig `toml:"scripting"`
	World     WorldConfig     `toml:"world"`
	Logging   LoggingConfig   `toml:"logging"`
	Profile   ProfileConfig   `toml:"profile"`
}

type EngineConfig struct {
	Name      string        `toml:"name"`
	TickRate  time.Duration `toml:"tick_rate"`
	MaxTicks  uint64        `toml:"max_ticks"` // 0 = run until signalled
	StartTime int64         // set at boot, not from config
}

type SchedulerConfig struct {
	Mode      string `toml:"mode"`       // "parallel" or "sequential"
	Workers   int    `toml:"workers"`    // 0 = NumCPU
	QueueSize int    `toml:"queue_size"` // outstanding jobs; 0 = 64 per worker
}

type ScriptingConfig struct {
	Enabled  bool   `toml:"enabled"`
	Manifest string `toml:"manifest"`
	Dir      string `toml:"dir"`
}

type WorldConfig struct {
	Entities int `toml:"entities"` // demo entities spawned at boot
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type ProfileConfig struct {
	Mode string `toml:"mode"` // "", cpu, mem, block, mutex, trace
	Path string `toml:"path"`
}

const (
	ModeParallel   = "parallel"
	ModeSequential = "sequential"
)

// Path returns the config path from the environment, or fallback.
func Path(fallback string) string {
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return fallback
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Engine.StartTime = time.Now().Unix()
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Engine.TickRate <= 0 {
		return fmt.Errorf("engine.tick_rate must be positive, got %s", c.Engine.TickRate)
	}
	switch c.Scheduler.Mode {
	case ModeParallel, ModeSequential:
	default:
		return fmt.Errorf("scheduler.mode: unknown mode %q", c.Scheduler.Mode)
	}
	if c.Scheduler.Workers < 0 || c.Scheduler.QueueSize < 0 {
		return fmt.Errorf("scheduler: workers and queue_size must not be negative")
	}
	switch c.Profile.Mode {
	case "", "cpu", "mem", "block", "mutex", "trace":
	default:
		return fmt.Errorf("profile.mode: unknown mode %q", c.Profile.Mode)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format: unknown format %q", c.Logging.Format)
	}
	if c.Scripting.Enabled && c.Scripting.Manifest == "" {
		return fmt.Errorf("scripting.manifest is required when scripting is enabled")
	}
	return nil
}

func Defaults() *Config {
	return &Config{
		Engine: EngineConfig{
			Name:     "MatrixEngine",
			TickRate: 50 * time.Millisecond,
		},
		Scheduler: SchedulerConfig{
			Mode:    ModeParallel,
			Workers: runtime.NumCPU(),
		},
		Scripting: ScriptingConfig{
			Manifest: "data/systems.yaml",
			Dir:      "scripts",
		},
		World: WorldConfig{
			Entities: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Profile: ProfileConfig{
			Path: ".",
		},
	}
}
