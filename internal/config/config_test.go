package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8090" {
		t.Errorf("Port = %q, want 8090", cfg.Port)
	}
	if cfg.BridgeURL != "http://localhost:3005" {
		t.Errorf("BridgeURL = %q", cfg.BridgeURL)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Errorf("PollInterval = %s, want 5s", cfg.PollInterval)
	}
	if cfg.PrintTimeout != 15*time.Second {
		t.Errorf("PrintTimeout = %s, want 15s", cfg.PrintTimeout)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("RESTAURANT_ID", "rest-1")
	t.Setenv("POLL_INTERVAL", "2s")

	cfg := Load()

	if cfg.Port != "9000" {
		t.Errorf("Port = %q, want 9000", cfg.Port)
	}
	if cfg.RestaurantID != "rest-1" {
		t.Errorf("RestaurantID = %q", cfg.RestaurantID)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Errorf("PollInterval = %s, want 2s", cfg.PollInterval)
	}
}

func TestInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "soon")

	if got := Load().PollInterval; got != 5*time.Second {
		t.Errorf("PollInterval = %s, want the 5s fallback", got)
	}
}
