package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Setenv("CONFIG_ENV", "does-not-exist")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.JoinEarly != 15*time.Minute || cfg.JoinLate != 60*time.Minute {
		t.Fatalf("join window = %v/%v, want 15m/60m", cfg.JoinEarly, cfg.JoinLate)
	}
	if cfg.LeaveDebounce != 6*time.Second {
		t.Fatalf("LeaveDebounce = %v, want 6s", cfg.LeaveDebounce)
	}
	if cfg.NegotiationTimeout != 15*time.Second {
		t.Fatalf("NegotiationTimeout = %v, want 15s", cfg.NegotiationTimeout)
	}
	if cfg.SegmentInterval != 200*time.Millisecond || cfg.RenderInterval != 33*time.Millisecond {
		t.Fatalf("cadences = %v/%v, want 200ms/33ms", cfg.SegmentInterval, cfg.RenderInterval)
	}
}

func TestLoadReadsFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatal(err)
	}
	yaml := []byte("port: 9999\nleave_debounce: 10s\nmode: debug\n")
	if err := os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"), yaml, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)
	t.Setenv("CONFIG_ENV", "test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 9999 {
		t.Fatalf("Port = %d, want 9999", cfg.Port)
	}
	if cfg.LeaveDebounce != 10*time.Second {
		t.Fatalf("LeaveDebounce = %v, want 10s", cfg.LeaveDebounce)
	}
	if cfg.Mode != "debug" {
		t.Fatalf("Mode = %q, want debug", cfg.Mode)
	}
	// Untouched keys keep their defaults.
	if cfg.RoomGrace != 2*time.Minute {
		t.Fatalf("RoomGrace = %v, want 2m", cfg.RoomGrace)
	}
}
