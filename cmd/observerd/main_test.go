package main

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, debug, err := loadConfig(nil)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.ListenAddr != ":8000" {
		t.Fatalf("unexpected default listen addr: %s", cfg.ListenAddr)
	}
	if cfg.ErrorRate != 0.10 {
		t.Fatalf("unexpected default error rate: %g", cfg.ErrorRate)
	}
	if debug {
		t.Fatal("debug should default to false")
	}
}

func TestLoadConfigEnvAndFlags(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9999")
	t.Setenv("ERROR_RATE", "0.5")

	cfg, _, err := loadConfig(nil)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.ListenAddr != ":9999" || cfg.ErrorRate != 0.5 {
		t.Fatalf("env not applied: %+v", cfg)
	}

	// Flags override the environment.
	cfg, _, err = loadConfig([]string{"--listen", ":7777", "--error-rate", "0.2", "--max-delay", "50ms", "--min-delay", "10ms"})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.ListenAddr != ":7777" || cfg.ErrorRate != 0.2 {
		t.Fatalf("flags did not override env: %+v", cfg)
	}
	if cfg.MinDelay != 10*time.Millisecond || cfg.MaxDelay != 50*time.Millisecond {
		t.Fatalf("delay flags not applied: %+v", cfg)
	}
}

func TestLoadConfigBadEnv(t *testing.T) {
	t.Setenv("ERROR_RATE", "lots")
	if _, _, err := loadConfig(nil); err == nil {
		t.Fatal("expected error for unparseable ERROR_RATE")
	}
}
