package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Logs.Window != 50 {
		t.Errorf("expected logs window 50, got %d", cfg.Logs.Window)
	}
	if cfg.Metrics.Window != 30 {
		t.Errorf("expected metrics window 30, got %d", cfg.Metrics.Window)
	}
	if cfg.Detect.CPUThreshold != 85 || cfg.Detect.MemoryThreshold != 90 {
		t.Errorf("unexpected thresholds: %+v", cfg.Detect)
	}
	if len(cfg.Detect.Keywords) != 4 {
		t.Errorf("expected 4 keywords, got %v", cfg.Detect.Keywords)
	}
	if cfg.Upstream.AnalysisPolling != 3*time.Second {
		t.Errorf("expected 3s analysis polling, got %s", cfg.Upstream.AnalysisPolling)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	yaml := []byte("logs:\n  source: /var/log/filtered.txt\n  window: 20\n  interval: 2s\nserver:\n  port: \"9000\"\n")
	if err := os.WriteFile(path, yaml, 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LOGAGENT_METRICS_WINDOW", "10")

	cfg, err := Load(viper.New(), path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Logs.Source != "/var/log/filtered.txt" || cfg.Logs.Window != 20 {
		t.Errorf("unexpected logs config: %+v", cfg.Logs)
	}
	if cfg.Logs.Interval != 2*time.Second {
		t.Errorf("expected 2s interval, got %s", cfg.Logs.Interval)
	}
	if cfg.Server.Port != "9000" {
		t.Errorf("expected port 9000, got %q", cfg.Server.Port)
	}
	if cfg.Metrics.Window != 10 {
		t.Errorf("expected env override 10, got %d", cfg.Metrics.Window)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		t.Fatal(err)
	}

	cfg.Logs.Window = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero window")
	}
}
