package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/plugwatch/plugwatch/internal/storage"
)

// Heartbeat persists a liveness timestamp on a fixed cadence while
// monitoring is enabled. Nothing consumes the result beyond the stored
// timestamp.
type Heartbeat struct {
	repo     *storage.Repository
	interval time.Duration
	kickCh   chan struct{}
	logger   *slog.Logger
}

func NewHeartbeat(repo *storage.Repository, interval time.Duration, logger *slog.Logger) *Heartbeat {
	return &Heartbeat{repo: repo, interval: interval, kickCh: make(chan struct{}, 1), logger: logger}
}

// Kick requests an immediate beat outside the regular cadence.
func (h *Heartbeat) Kick() {
	select {
	case h.kickCh <- struct{}{}:
	default:
	}
}

// Run beats until the context is cancelled.
func (h *Heartbeat) Run(ctx context.Context) {
	for {
		timer := time.NewTimer(h.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-h.kickCh:
			timer.Stop()
		case <-timer.C:
		}
		h.beat(ctx)
	}
}

func (h *Heartbeat) beat(ctx context.Context) {
	settings, err := h.repo.LoadSettings(ctx)
	if err != nil {
		h.logger.Error("heartbeat settings read failed", "err", err)
		return
	}
	if !settings.MonitoringEnabled {
		return
	}
	if err := h.repo.RecordHeartbeat(ctx, time.Now()); err != nil {
		h.logger.Error("heartbeat write failed", "err", err)
	}
}
