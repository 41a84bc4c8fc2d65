package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/plugwatch/plugwatch/internal/aggregate"
	"github.com/plugwatch/plugwatch/internal/engine"
	"github.com/plugwatch/plugwatch/internal/export"
	"github.com/plugwatch/plugwatch/internal/feed"
	"github.com/plugwatch/plugwatch/internal/metrics"
	"github.com/plugwatch/plugwatch/internal/model"
	"github.com/plugwatch/plugwatch/internal/storage"
)

// API groups the HTTP surface exposed to the signal-delivery, settings and
// export/UI collaborators.
type API struct {
	engine *engine.Engine
	repo   *storage.Repository
	feed   *feed.Broadcaster
	loc    *time.Location
	logger *slog.Logger
	now    func() time.Time
}

func New(eng *engine.Engine, repo *storage.Repository, fd *feed.Broadcaster, loc *time.Location, logger *slog.Logger) *API {
	return &API{engine: eng, repo: repo, feed: fd, loc: loc, logger: logger, now: time.Now}
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.health)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/api", func(api chi.Router) {
		// The live feed must outlive the request timeout applied to the
		// rest of the API.
		api.Get("/ws", a.stream)

		api.Group(func(g chi.Router) {
			g.Use(middleware.Timeout(20 * time.Second))
			g.Post("/signals", a.postSignal)
			g.Post("/boot", a.postBoot)
			g.Get("/intervals", a.listIntervals)
			g.Delete("/intervals", a.deleteIntervals)
			g.Delete("/intervals/{id}", a.deleteInterval)
			g.Get("/days", a.listDays)
			g.Get("/today", a.today)
			g.Get("/settings", a.getSettings)
			g.Put("/settings", a.putSettings)
			g.Get("/export", a.export)
		})
	})
	return r
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	settings, err := a.repo.LoadSettings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "settings_failed", err.Error())
		return
	}
	heartbeat, err := a.repo.LastHeartbeat(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "heartbeat_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "ok",
		"monitoring_enabled": settings.MonitoringEnabled,
		"last_heartbeat_at":  heartbeat,
	})
}

func (a *API) postSignal(w http.ResponseWriter, r *http.Request) {
	var sig model.RawSignal
	if err := json.NewDecoder(r.Body).Decode(&sig); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid JSON payload")
		return
	}
	if !sig.Kind.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_kind", "kind must be CONNECTED or DISCONNECTED")
		return
	}
	id, accepted, err := a.engine.OnRawSignal(r.Context(), sig)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "signal_failed", err.Error())
		return
	}
	if !accepted {
		writeJSON(w, http.StatusOK, map[string]any{"accepted": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": true, "id": id})
}

func (a *API) postBoot(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		WasEnabled bool `json:"was_enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid JSON payload")
		return
	}
	if err := a.engine.OnBootResume(r.Context(), payload.WasEnabled); err != nil {
		writeError(w, http.StatusInternalServerError, "boot_resume_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

// listIntervals returns the full log, or a single local day when ?date= is
// given. The default day view filters on interval start; view=spanning also
// includes outages that overlap the day from an earlier start.
func (a *API) listIntervals(w http.ResponseWriter, r *http.Request) {
	var (
		items []model.OutageInterval
		err   error
	)
	if date := strings.TrimSpace(r.URL.Query().Get("date")); date != "" {
		day, parseErr := time.ParseInLocation("2006-01-02", date, a.loc)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		startMs, endMs := aggregate.DayBounds(day, a.loc)
		if r.URL.Query().Get("view") == "spanning" {
			items, err = a.repo.FindSpanning(r.Context(), startMs, endMs)
		} else {
			items, err = a.repo.FindForRange(r.Context(), startMs, endMs)
		}
	} else {
		items, err = a.repo.ListAll(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) deleteInterval(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "id must be an integer")
		return
	}
	removed, err := a.engine.DeleteInterval(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "delete_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

func (a *API) deleteIntervals(w http.ResponseWriter, r *http.Request) {
	var (
		removed int64
		err     error
	)
	switch scope := strings.TrimSpace(r.URL.Query().Get("scope")); scope {
	case "today":
		removed, err = a.engine.DeleteAllForToday(r.Context())
	case "all":
		removed, err = a.engine.DeleteAll(r.Context())
	default:
		writeError(w, http.StatusBadRequest, "invalid_scope", "scope must be today or all")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "delete_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

func (a *API) listDays(w http.ResponseWriter, r *http.Request) {
	intervals, err := a.repo.ListAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": aggregate.GroupByDay(intervals, a.loc)})
}

func (a *API) today(w http.ResponseWriter, r *http.Request) {
	intervals, err := a.repo.ListAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, aggregate.TodayTotals(intervals, a.now(), a.loc))
}

func (a *API) getSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := a.repo.LoadSettings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "settings_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (a *API) putSettings(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		DebounceWindowMs  *int64  `json:"debounce_window_ms"`
		MonitoringEnabled *bool   `json:"monitoring_enabled"`
		LastState         *string `json:"last_state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid JSON payload")
		return
	}
	if payload.DebounceWindowMs != nil && !model.ValidDebounceWindow(*payload.DebounceWindowMs) {
		writeError(w, http.StatusBadRequest, "invalid_debounce_window",
			"debounce_window_ms must be one of 100, 300, 500, 1000, 2000")
		return
	}

	settings, err := a.repo.LoadSettings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "settings_failed", err.Error())
		return
	}
	if payload.DebounceWindowMs != nil {
		settings.DebounceWindowMs = *payload.DebounceWindowMs
	}
	if payload.MonitoringEnabled != nil {
		settings.MonitoringEnabled = *payload.MonitoringEnabled
	}
	if payload.LastState != nil {
		settings.LastState = *payload.LastState
	}
	if err := a.repo.SaveSettings(r.Context(), settings); err != nil {
		writeError(w, http.StatusInternalServerError, "settings_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (a *API) export(w http.ResponseWriter, r *http.Request) {
	intervals, scope, err := a.exportIntervals(r)
	if errors.Is(err, errBadExportScope) {
		writeError(w, http.StatusBadRequest, "invalid_scope", err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "export_failed", err.Error())
		return
	}

	doc, err := export.BuildCSV(intervals, a.loc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "export_failed", err.Error())
		return
	}
	now := a.now()
	if err := a.repo.RecordExport(r.Context(), now, export.ContentHash(doc)); err != nil {
		a.logger.Warn("export metadata write failed", "err", err)
	}
	metrics.ExportBuilt(string(scope))

	name := export.FileName(scope, now, a.loc)
	if strings.TrimSpace(r.URL.Query().Get("format")) == "zip" {
		archive, err := export.BuildArchive(intervals, a.loc)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "export_failed", err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`.zip"`)
		_, _ = w.Write(archive)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`.csv"`)
	_, _ = w.Write([]byte(doc))
}

var errBadExportScope = errors.New("scope must be today, last or all")

// exportIntervals resolves the export scope to an interval snapshot. The
// "today" and "last" scopes filter on interval start, matching the
// aggregation rule that attributes a spanning outage to its start day.
func (a *API) exportIntervals(r *http.Request) ([]model.OutageInterval, model.ExportScope, error) {
	ctx := r.Context()
	switch scope := strings.TrimSpace(r.URL.Query().Get("scope")); scope {
	case "", string(model.ExportAll):
		items, err := a.repo.ListAll(ctx)
		return items, model.ExportAll, err
	case string(model.ExportToday):
		startMs, endMs := aggregate.DayBounds(a.now(), a.loc)
		items, err := a.repo.FindForRange(ctx, startMs, endMs)
		return items, model.ExportToday, err
	case string(model.ExportLastDays):
		days, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("days")))
		if err != nil || days < 1 {
			return nil, "", errBadExportScope
		}
		firstDayStartMs, _ := aggregate.DayBounds(a.now().AddDate(0, 0, -(days-1)).In(a.loc), a.loc)
		_, todayEndMs := aggregate.DayBounds(a.now(), a.loc)
		items, err := a.repo.FindForRange(ctx, firstDayStartMs, todayEndMs)
		return items, model.ExportLastDays, err
	default:
		return nil, "", errBadExportScope
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}

// RunServer starts and gracefully stops the HTTP server with context
// cancellation.
func RunServer(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil {
			logger.Error("http server failed", "err", err)
			return err
		}
		return nil
	}
}
