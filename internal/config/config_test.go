package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.AccessTTL != 15*time.Minute {
		t.Errorf("AccessTTL = %v, want 15m", cfg.AccessTTL)
	}
	if cfg.RefreshTTL != 336*time.Hour {
		t.Errorf("RefreshTTL = %v, want 336h", cfg.RefreshTTL)
	}
	if cfg.LandingPath != "/projects" {
		t.Errorf("LandingPath = %q, want /projects", cfg.LandingPath)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("CREWDECK_ADDR", ":9090")
	t.Setenv("CREWDECK_AUTH_SECRET", "s3cret")
	t.Setenv("CREWDECK_ACCESS_TTL", "5m")
	t.Setenv("CREWDECK_RATE_BURST", "10")
	t.Setenv("CREWDECK_LANDING_PATH", "/home")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.AuthSecret != "s3cret" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.AccessTTL != 5*time.Minute {
		t.Errorf("AccessTTL = %v, want 5m", cfg.AccessTTL)
	}
	if cfg.RateBurst != 10 {
		t.Errorf("RateBurst = %d, want 10", cfg.RateBurst)
	}
	if cfg.LandingPath != "/home" {
		t.Errorf("LandingPath = %q, want /home", cfg.LandingPath)
	}
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	t.Setenv("CREWDECK_ACCESS_TTL", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed duration")
	}
}
