// Package debounce gates the raw signal stream against mechanical connector
// bounce. The filter keeps a single cool-down shared by both signal kinds: a
// connect landing inside the window of a preceding disconnect is dropped too.
package debounce

import (
	"context"
	"log/slog"
	"sync"

	"github.com/plugwatch/plugwatch/internal/model"
)

// WindowSource supplies the current debounce window. It is consulted on every
// evaluation so a settings change applies from the next signal.
type WindowSource interface {
	DebounceWindowMs(ctx context.Context) (int64, error)
}

// Filter suppresses signals that arrive inside the debounce window of the
// last accepted signal, regardless of kind.
type Filter struct {
	windows WindowSource
	logger  *slog.Logger

	mu         sync.Mutex
	lastShotMs int64
	armed      bool
}

func New(windows WindowSource, logger *slog.Logger) *Filter {
	return &Filter{windows: windows, logger: logger}
}

// Accept reports whether the signal passes the filter. Accepted signals move
// the cool-down forward; rejected ones leave no trace beyond a log line.
func (f *Filter) Accept(ctx context.Context, sig model.RawSignal) (bool, error) {
	window, err := f.windows.DebounceWindowMs(ctx)
	if err != nil {
		return false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.armed && sig.TimestampMs-f.lastShotMs < window {
		f.logger.Debug("signal debounced",
			"kind", sig.Kind,
			"timestamp_ms", sig.TimestampMs,
			"since_last_ms", sig.TimestampMs-f.lastShotMs,
			"window_ms", window,
		)
		return false, nil
	}

	f.lastShotMs = sig.TimestampMs
	f.armed = true
	return true, nil
}

// Reset clears the cool-down, as at the start of a monitoring session.
func (f *Filter) Reset() {
	f.mu.Lock()
	f.armed = false
	f.lastShotMs = 0
	f.mu.Unlock()
}
