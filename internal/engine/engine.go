// Package engine converts debounced power signals into interval store
// mutations. State is never held in memory between signals: each signal is
// resolved against the store's current set of ongoing intervals.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/plugwatch/plugwatch/internal/aggregate"
	"github.com/plugwatch/plugwatch/internal/debounce"
	"github.com/plugwatch/plugwatch/internal/feed"
	"github.com/plugwatch/plugwatch/internal/metrics"
	"github.com/plugwatch/plugwatch/internal/model"
	"github.com/plugwatch/plugwatch/internal/storage"
)

// Engine is the authoritative reconciliation state machine for one
// monitoring session. All write paths are serialized through its mutex so the
// read-ongoing/act/write sequence never races a concurrent delete.
type Engine struct {
	repo   *storage.Repository
	filter *debounce.Filter
	feed   *feed.Broadcaster
	loc    *time.Location
	logger *slog.Logger
	now    func() time.Time

	mu sync.Mutex
}

func New(repo *storage.Repository, filter *debounce.Filter, fd *feed.Broadcaster, loc *time.Location, logger *slog.Logger) *Engine {
	return &Engine{
		repo:   repo,
		filter: filter,
		feed:   fd,
		loc:    loc,
		logger: logger,
		now:    time.Now,
	}
}

// OnRawSignal runs one signal through the debounce filter and, if accepted,
// applies exactly one store write. It returns the id of the inserted or
// updated interval and whether the signal was accepted. A storage failure
// leaves the signal unprocessed; retries are the caller's concern.
func (e *Engine) OnRawSignal(ctx context.Context, sig model.RawSignal) (int64, bool, error) {
	if !sig.Kind.Valid() {
		return 0, false, fmt.Errorf("unknown signal kind %q", sig.Kind)
	}
	metrics.SignalReceived(string(sig.Kind))

	ok, err := e.filter.Accept(ctx, sig)
	if err != nil {
		metrics.StoreError()
		return 0, false, fmt.Errorf("debounce window read: %w", err)
	}
	if !ok {
		metrics.SignalDebounced(string(sig.Kind))
		return 0, false, nil
	}
	metrics.SignalAccepted(string(sig.Kind))

	e.mu.Lock()
	defer e.mu.Unlock()

	var id int64
	switch sig.Kind {
	case model.SignalDisconnected:
		id, err = e.openInterval(ctx, sig.TimestampMs)
	case model.SignalConnected:
		id, err = e.closeOrRecordConnect(ctx, sig.TimestampMs)
	}
	if err != nil {
		metrics.StoreError()
		return 0, false, err
	}

	e.feed.Notify(ctx)
	return id, true, nil
}

// openInterval logs a disconnect. A disconnect always opens a new interval,
// even while another is still ongoing; only the newest one will later be
// closed by a connect.
func (e *Engine) openInterval(ctx context.Context, tsMs int64) (int64, error) {
	id, err := e.repo.Insert(ctx, model.OutageInterval{
		StartTimeMs: tsMs,
		Source:      model.SignalDisconnected,
		CreatedAt:   e.now(),
	})
	if err != nil {
		return 0, fmt.Errorf("insert open interval: %w", err)
	}
	e.logger.Info("outage started", "id", id, "start_ms", tsMs)
	return id, nil
}

// closeOrRecordConnect logs a connect. With an ongoing interval present the
// most recently started one is closed; with none, a zero-duration CONNECTED
// record preserves the event without fabricating an outage.
func (e *Engine) closeOrRecordConnect(ctx context.Context, tsMs int64) (int64, error) {
	ongoing, err := e.repo.FindOngoing(ctx)
	if err != nil {
		return 0, fmt.Errorf("lookup ongoing interval: %w", err)
	}

	if len(ongoing) == 0 {
		id, err := e.repo.Insert(ctx, model.OutageInterval{
			StartTimeMs:     tsMs,
			EndTimeMs:       &tsMs,
			DurationSeconds: new(int64),
			Source:          model.SignalConnected,
			CreatedAt:       e.now(),
		})
		if err != nil {
			return 0, fmt.Errorf("insert connect record: %w", err)
		}
		e.logger.Info("connect without open interval", "id", id, "at_ms", tsMs)
		return id, nil
	}

	current := ongoing[0]
	duration := (tsMs - current.StartTimeMs) / 1000
	if duration < 0 {
		e.logger.Warn("connect earlier than outage start; clamping duration",
			"id", current.ID, "start_ms", current.StartTimeMs, "end_ms", tsMs)
		duration = 0
	}
	current.EndTimeMs = &tsMs
	current.DurationSeconds = &duration
	if err := e.repo.Update(ctx, current); err != nil {
		return 0, fmt.Errorf("close interval %d: %w", current.ID, err)
	}
	e.logger.Info("outage ended", "id", current.ID, "duration_s", duration)
	return current.ID, nil
}

// OnBootResume restores monitoring after a device reboot. No synthetic event
// is fabricated for the time the device was off.
func (e *Engine) OnBootResume(ctx context.Context, wasEnabled bool) error {
	if !wasEnabled {
		return nil
	}
	return e.StartMonitoring(ctx)
}

// StartMonitoring enables the session and clears the debounce cool-down.
func (e *Engine) StartMonitoring(ctx context.Context) error {
	if err := e.repo.SetMonitoringEnabled(ctx, true); err != nil {
		return err
	}
	e.filter.Reset()
	e.logger.Info("monitoring enabled")
	return nil
}

// StopMonitoring disables the session. Any ongoing interval stays open for
// the next connect.
func (e *Engine) StopMonitoring(ctx context.Context) error {
	if err := e.repo.SetMonitoringEnabled(ctx, false); err != nil {
		return err
	}
	e.logger.Info("monitoring disabled")
	return nil
}

// DeleteInterval removes one interval. Deleting an already-removed id is a
// no-op.
func (e *Engine) DeleteInterval(ctx context.Context, id int64) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	removed, err := e.repo.Delete(ctx, id)
	if err != nil {
		metrics.StoreError()
		return 0, err
	}
	if removed > 0 {
		e.feed.Notify(ctx)
	}
	return removed, nil
}

// DeleteAllForToday removes intervals starting on the current local day.
func (e *Engine) DeleteAllForToday(ctx context.Context) (int64, error) {
	startMs, endMs := aggregate.DayBounds(e.now(), e.loc)

	e.mu.Lock()
	defer e.mu.Unlock()

	removed, err := e.repo.DeleteForRange(ctx, startMs, endMs)
	if err != nil {
		metrics.StoreError()
		return 0, err
	}
	if removed > 0 {
		e.feed.Notify(ctx)
	}
	return removed, nil
}

// DeleteAll clears the whole log.
func (e *Engine) DeleteAll(ctx context.Context) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	removed, err := e.repo.DeleteAll(ctx)
	if err != nil {
		metrics.StoreError()
		return 0, err
	}
	if removed > 0 {
		e.feed.Notify(ctx)
	}
	return removed, nil
}
