package storage

import (
	"context"
	"testing"
	"time"

	"github.com/plugwatch/plugwatch/internal/model"
)

func TestLoadSettings_DefaultsWhenEmpty(t *testing.T) {
	repo := newTestRepo(t)

	settings, err := repo.LoadSettings(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if settings.DebounceWindowMs != model.DefaultDebounceWindowMs {
		t.Fatalf("expected default window %d, got %d", model.DefaultDebounceWindowMs, settings.DebounceWindowMs)
	}
	if !settings.MonitoringEnabled {
		t.Fatalf("expected monitoring enabled by default")
	}
}

func TestSaveAndLoadSettings(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	saved := model.Settings{
		DebounceWindowMs:  1000,
		MonitoringEnabled: false,
		LastState:         "CONNECTED",
		LastExportHash:    "abc123",
	}
	if err := repo.SaveSettings(ctx, saved); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := repo.LoadSettings(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.DebounceWindowMs != 1000 {
		t.Fatalf("expected window 1000, got %d", loaded.DebounceWindowMs)
	}
	if loaded.MonitoringEnabled {
		t.Fatalf("expected monitoring disabled")
	}
	if loaded.LastState != "CONNECTED" || loaded.LastExportHash != "abc123" {
		t.Fatalf("unexpected settings round trip: %+v", loaded)
	}
}

func TestDebounceWindowMs_ReflectsSavedValue(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	ms, err := repo.DebounceWindowMs(ctx)
	if err != nil {
		t.Fatalf("read window: %v", err)
	}
	if ms != model.DefaultDebounceWindowMs {
		t.Fatalf("expected default window, got %d", ms)
	}

	settings := model.DefaultSettings()
	settings.DebounceWindowMs = 2000
	if err := repo.SaveSettings(ctx, settings); err != nil {
		t.Fatalf("save: %v", err)
	}

	ms, err = repo.DebounceWindowMs(ctx)
	if err != nil {
		t.Fatalf("read window: %v", err)
	}
	if ms != 2000 {
		t.Fatalf("expected 2000, got %d", ms)
	}
}

func TestRecordHeartbeat(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	beat, err := repo.LastHeartbeat(ctx)
	if err != nil {
		t.Fatalf("read heartbeat: %v", err)
	}
	if beat != nil {
		t.Fatalf("expected no heartbeat before first beat")
	}

	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	if err := repo.RecordHeartbeat(ctx, at); err != nil {
		t.Fatalf("record: %v", err)
	}

	beat, err = repo.LastHeartbeat(ctx)
	if err != nil {
		t.Fatalf("read heartbeat: %v", err)
	}
	if beat == nil || !beat.Equal(at) {
		t.Fatalf("expected heartbeat %v, got %v", at, beat)
	}
}

func TestRecordExport(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	at := time.Date(2026, 8, 30, 9, 30, 0, 0, time.UTC)
	if err := repo.RecordExport(ctx, at, "deadbeef"); err != nil {
		t.Fatalf("record export: %v", err)
	}

	settings, err := repo.LoadSettings(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if settings.LastExportAt == nil || !settings.LastExportAt.Equal(at) {
		t.Fatalf("expected export timestamp %v, got %v", at, settings.LastExportAt)
	}
	if settings.LastExportHash != "deadbeef" {
		t.Fatalf("expected export hash recorded, got %q", settings.LastExportHash)
	}
}
