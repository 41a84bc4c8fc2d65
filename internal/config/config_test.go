package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()
	if cfg.HTTPAddr != defaultHTTPAddr {
		t.Fatalf("expected default addr %q, got %q", defaultHTTPAddr, cfg.HTTPAddr)
	}
	if cfg.HeartbeatInterval != defaultHeartbeatInterval {
		t.Fatalf("expected default heartbeat interval, got %v", cfg.HeartbeatInterval)
	}
	if cfg.Timezone == nil {
		t.Fatalf("expected a timezone, got nil")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("HEARTBEAT_INTERVAL", "10s")
	t.Setenv("TIMEZONE", "UTC")

	cfg := Load()
	if cfg.HTTPAddr != ":9000" {
		t.Fatalf("expected :9000, got %q", cfg.HTTPAddr)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("expected debug level, got %v", cfg.LogLevel)
	}
	if cfg.HeartbeatInterval != 10*time.Second {
		t.Fatalf("expected 10s interval, got %v", cfg.HeartbeatInterval)
	}
	if cfg.Timezone != time.UTC {
		t.Fatalf("expected UTC, got %v", cfg.Timezone)
	}
}

func TestLoad_IgnoresInvalidValues(t *testing.T) {
	t.Setenv("HEARTBEAT_INTERVAL", "soon")
	t.Setenv("TIMEZONE", "Mars/Olympus_Mons")
	t.Setenv("LOG_LEVEL", "shouting")

	cfg := Load()
	if cfg.HeartbeatInterval != defaultHeartbeatInterval {
		t.Fatalf("expected fallback interval, got %v", cfg.HeartbeatInterval)
	}
	if cfg.Timezone != time.Local {
		t.Fatalf("expected local timezone fallback, got %v", cfg.Timezone)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("expected info fallback, got %v", cfg.LogLevel)
	}
}
