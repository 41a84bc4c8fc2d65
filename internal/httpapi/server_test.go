package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/plugwatch/plugwatch/internal/debounce"
	"github.com/plugwatch/plugwatch/internal/engine"
	"github.com/plugwatch/plugwatch/internal/feed"
	"github.com/plugwatch/plugwatch/internal/model"
	"github.com/plugwatch/plugwatch/internal/storage"
)

func newTestAPI(t *testing.T) (*API, http.Handler) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo, err := storage.New(context.Background(), ":memory:", logger)
	if err != nil {
		t.Fatalf("open test repo: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	broadcaster := feed.New(repo, logger)
	eng := engine.New(repo, debounce.New(repo, logger), broadcaster, time.UTC, logger)
	api := New(eng, repo, broadcaster, time.UTC, logger)
	api.now = func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) }
	return api, api.Handler()
}

func jsonInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestPostSignal_DisconnectThenConnect(t *testing.T) {
	_, handler := newTestAPI(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/signals",
		`{"kind":"DISCONNECTED","timestamp_ms":10000}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Accepted bool  `json:"accepted"`
		ID       int64 `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Accepted || resp.ID == 0 {
		t.Fatalf("expected accepted signal with id, got %+v", resp)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/signals",
		`{"kind":"CONNECTED","timestamp_ms":40000}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/intervals", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var list struct {
		Items []model.OutageInterval `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Items) != 1 {
		t.Fatalf("expected 1 interval, got %d", len(list.Items))
	}
	if list.Items[0].DurationSeconds == nil || *list.Items[0].DurationSeconds != 30 {
		t.Fatalf("expected duration 30s, got %v", list.Items[0].DurationSeconds)
	}
}

func TestPostSignal_DebouncedReportsNotAccepted(t *testing.T) {
	_, handler := newTestAPI(t)

	doJSON(t, handler, http.MethodPost, "/api/signals",
		`{"kind":"DISCONNECTED","timestamp_ms":10000}`)
	rec := doJSON(t, handler, http.MethodPost, "/api/signals",
		`{"kind":"CONNECTED","timestamp_ms":10100}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Accepted bool `json:"accepted"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Accepted {
		t.Fatalf("expected debounced signal to report accepted=false")
	}
}

func TestPostSignal_InvalidKind(t *testing.T) {
	_, handler := newTestAPI(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/signals",
		`{"kind":"PLUGGED","timestamp_ms":1}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestPutSettings_RejectsUnknownWindow(t *testing.T) {
	_, handler := newTestAPI(t)

	rec := doJSON(t, handler, http.MethodPut, "/api/settings",
		`{"debounce_window_ms":250}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for window outside the set, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPut, "/api/settings",
		`{"debounce_window_ms":1000}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/settings", "")
	var settings model.Settings
	if err := json.Unmarshal(rec.Body.Bytes(), &settings); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if settings.DebounceWindowMs != 1000 {
		t.Fatalf("expected persisted window 1000, got %d", settings.DebounceWindowMs)
	}
}

func TestDeleteIntervals_InvalidScope(t *testing.T) {
	_, handler := newTestAPI(t)

	rec := doJSON(t, handler, http.MethodDelete, "/api/intervals?scope=everything", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestDeleteIntervals_All(t *testing.T) {
	_, handler := newTestAPI(t)

	doJSON(t, handler, http.MethodPost, "/api/signals",
		`{"kind":"DISCONNECTED","timestamp_ms":10000}`)
	rec := doJSON(t, handler, http.MethodDelete, "/api/intervals?scope=all", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Removed int64 `json:"removed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Removed != 1 {
		t.Fatalf("expected 1 removed, got %d", resp.Removed)
	}
}

func TestExport_EmptyLogStillValidCSV(t *testing.T) {
	_, handler := newTestAPI(t)

	rec := doJSON(t, handler, http.MethodGet, "/api/export?scope=all", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/csv" {
		t.Fatalf("expected text/csv, got %q", got)
	}
	if !strings.HasPrefix(rec.Body.String(), "date,start_time,end_time,duration_seconds,duration_hms") {
		t.Fatalf("expected header-only CSV, got %q", rec.Body.String())
	}
}

func TestExport_OngoingRendersPlaceholder(t *testing.T) {
	_, handler := newTestAPI(t)

	// Disconnect during the test's fixed "today".
	startMs := time.Date(2026, 8, 30, 11, 0, 0, 0, time.UTC).UnixMilli()
	doJSON(t, handler, http.MethodPost, "/api/signals",
		`{"kind":"DISCONNECTED","timestamp_ms":`+jsonInt(startMs)+`}`)

	rec := doJSON(t, handler, http.MethodGet, "/api/export?scope=today", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	if !strings.Contains(lines[1], ",?,") {
		t.Fatalf("expected ongoing placeholder in row, got %q", lines[1])
	}
}

func TestExport_BadScope(t *testing.T) {
	_, handler := newTestAPI(t)

	rec := doJSON(t, handler, http.MethodGet, "/api/export?scope=fortnight", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListIntervals_SpanningView(t *testing.T) {
	_, handler := newTestAPI(t)

	// Outage opens on the 29th and is still ongoing on the 30th.
	startMs := time.Date(2026, 8, 29, 23, 0, 0, 0, time.UTC).UnixMilli()
	doJSON(t, handler, http.MethodPost, "/api/signals",
		`{"kind":"DISCONNECTED","timestamp_ms":`+jsonInt(startMs)+`}`)

	rec := doJSON(t, handler, http.MethodGet, "/api/intervals?date=2026-08-30", "")
	var strict struct {
		Items []model.OutageInterval `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &strict); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(strict.Items) != 0 {
		t.Fatalf("expected strict day view to exclude the spanner, got %d", len(strict.Items))
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/intervals?date=2026-08-30&view=spanning", "")
	var spanning struct {
		Items []model.OutageInterval `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &spanning); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(spanning.Items) != 1 {
		t.Fatalf("expected spanning view to include the open interval, got %d", len(spanning.Items))
	}
}

func TestToday(t *testing.T) {
	_, handler := newTestAPI(t)

	startMs := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC).UnixMilli()
	endMs := startMs + 30_000
	doJSON(t, handler, http.MethodPost, "/api/signals",
		`{"kind":"DISCONNECTED","timestamp_ms":`+jsonInt(startMs)+`}`)
	doJSON(t, handler, http.MethodPost, "/api/signals",
		`{"kind":"CONNECTED","timestamp_ms":`+jsonInt(endMs)+`}`)

	rec := doJSON(t, handler, http.MethodGet, "/api/today", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var totals model.TodayTotals
	if err := json.Unmarshal(rec.Body.Bytes(), &totals); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if totals.EventCount != 1 || totals.TotalDurationSeconds != 30 {
		t.Fatalf("expected count=1 total=30, got %+v", totals)
	}
	if totals.FormattedDuration != "30s" {
		t.Fatalf("expected formatted 30s, got %q", totals.FormattedDuration)
	}
}
