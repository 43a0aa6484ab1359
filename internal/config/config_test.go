package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
[engine]
tick_rate = "20ms"
max_ticks = 100

[scheduler]
mode = "sequential"

[logging]
format = "json"
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Engine.TickRate != 20*time.Millisecond || cfg.Engine.MaxTicks != 100 {
		t.Errorf("engine not decoded: %+v", cfg.Engine)
	}
	if cfg.Scheduler.Mode != ModeSequential || cfg.Logging.Format != "json" {
		t.Errorf("unexpected scheduler/logging: %+v %+v", cfg.Scheduler, cfg.Logging)
	}
	if cfg.Engine.Name != "MatrixEngine" || cfg.World.Entities != 1000 {
		t.Errorf("defaults lost: %+v %+v", cfg.Engine, cfg.World)
	}
	if cfg.Engine.StartTime == 0 {
		t.Error("start time not set")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"zero tick rate", "[engine]\ntick_rate = \"0s\"", "tick_rate"},
		{"unknown scheduler", "[scheduler]\nmode = \"magic\"", "scheduler.mode"},
		{"negative workers", "[scheduler]\nworkers = -1", "negative"},
		{"unknown profile", "[profile]\nmode = \"heap\"", "profile.mode"},
		{"unknown format", "[logging]\nformat = \"xml\"", "logging.format"},
		{"scripting without manifest", "[scripting]\nenabled = true\nmanifest = \"\"", "manifest"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadAndPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "matrix.toml")
	if err := os.WriteFile(path, []byte("[world]\nentities = 5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvPath, path)
	if got := Path("config/matrix.toml"); got != path {
		t.Fatalf("Path ignored %s: %s", EnvPath, got)
	}
	cfg, err := Load(Path("config/matrix.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.World.Entities != 5 {
		t.Errorf("expected 5 entities, got %d", cfg.World.Entities)
	}
	if _, err := Load(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}
