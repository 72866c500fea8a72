// Package handler holds the HTTP handlers of the operations API.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/chuikova-e/nutritioner-bot/internal/apperror"
	"github.com/chuikova-e/nutritioner-bot/internal/auth"
	"github.com/chuikova-e/nutritioner-bot/internal/service"
)

type Reports interface {
	Today(ctx context.Context, handle string) (*service.DayReport, error)
	Weight(ctx context.Context, handle string, limit int) (*service.WeightReport, error)
	Goals(ctx context.Context, handle string) (*service.GoalsReport, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type OpsHandler struct {
	reports Reports
	db      Pinger
	logger  *slog.Logger
}

func NewOpsHandler(reports Reports, db Pinger, logger *slog.Logger) *OpsHandler {
	return &OpsHandler{reports: reports, db: db, logger: logger}
}

// HandleHealth answers 200 when the ledger responds within two seconds.
func (h *OpsHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("health check failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleToday handles GET /api/users/{handle}/today.
func (h *OpsHandler) HandleToday(w http.ResponseWriter, r *http.Request) {
	rep, err := h.reports.Today(r.Context(), chi.URLParam(r, "handle"))
	if err != nil {
		h.fail(w, r, "today", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// HandleWeight handles GET /api/users/{handle}/weight?limit=N.
func (h *OpsHandler) HandleWeight(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, apperror.ValidationFailed("limit", "limit must be a positive integer"))
			return
		}
		limit = n
	}

	rep, err := h.reports.Weight(r.Context(), chi.URLParam(r, "handle"), limit)
	if err != nil {
		h.fail(w, r, "weight", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// HandleGoals handles GET /api/users/{handle}/goals.
func (h *OpsHandler) HandleGoals(w http.ResponseWriter, r *http.Request) {
	rep, err := h.reports.Goals(r.Context(), chi.URLParam(r, "handle"))
	if err != nil {
		h.fail(w, r, "goals", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *OpsHandler) fail(w http.ResponseWriter, r *http.Request, report string, err error) {
	operator, _ := auth.OperatorFromContext(r.Context())
	h.logger.Warn("report failed",
		slog.String("report", report),
		slog.String("operator", operator),
		slog.String("error", err.Error()),
	)
	writeError(w, err)
}
