package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/morita/kabuto/internal/contracts"
	"github.com/morita/kabuto/internal/digest"
	"github.com/morita/kabuto/pkg/logger"
)

// runTimeout bounds a manually triggered digest run
const runTimeout = 30 * time.Minute

// DigestHandler serves stored digests and manual runs
// ⭐ SSOT: ダイジェストAPIハンドラーはこの構造体だけ
type DigestHandler struct {
	repo         contracts.ReportRepository
	orchestrator *digest.Orchestrator
	logger       *logger.Logger
}

// NewDigestHandler creates a new digest handler. orchestrator may be
// nil when the API runs read-only next to a separate scheduler daemon.
func NewDigestHandler(repo contracts.ReportRepository, orchestrator *digest.Orchestrator, log *logger.Logger) *DigestHandler {
	return &DigestHandler{
		repo:         repo,
		orchestrator: orchestrator,
		logger:       log,
	}
}

// ListRecent returns summaries of recent reports
// GET /api/digest?limit=N
func (h *DigestHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			respondError(w, http.StatusBadRequest, "limit must be an integer between 1 and 100")
			return
		}
		limit = parsed
	}

	summaries, err := h.repo.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list reports")
		respondError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}

	if summaries == nil {
		summaries = []contracts.ReportSummary{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"reports": summaries,
		"count":   len(summaries),
	})
}

// GetLatest returns the most recent stored report
// GET /api/digest/latest
func (h *DigestHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	report, err := h.repo.GetLatest(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to load latest report")
		respondError(w, http.StatusInternalServerError, "failed to load report")
		return
	}
	if report == nil {
		respondError(w, http.StatusNotFound, "no reports stored")
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// GetByDate returns the report for one day
// GET /api/digest/{date} with date as YYYY-MM-DD
func (h *DigestHandler) GetByDate(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["date"]
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "date must be formatted YYYY-MM-DD")
		return
	}

	report, err := h.repo.GetByDate(r.Context(), date)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load report")
		respondError(w, http.StatusInternalServerError, "failed to load report")
		return
	}
	if report == nil {
		respondError(w, http.StatusNotFound, "no report for "+raw)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// Run triggers a digest run in the background
// POST /api/digest/run?date=YYYY-MM-DD (date defaults to today)
func (h *DigestHandler) Run(w http.ResponseWriter, r *http.Request) {
	if h.orchestrator == nil {
		respondError(w, http.StatusServiceUnavailable, "digest pipeline is not wired on this instance")
		return
	}

	date := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "date must be formatted YYYY-MM-DD")
			return
		}
		date = parsed
	}
	date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()

		if _, err := h.orchestrator.Run(ctx, date); err != nil {
			h.logger.WithError(err).Error("Manually triggered digest run failed")
		}
	}()

	respondJSON(w, http.StatusAccepted, map[string]string{
		"status":      "started",
		"report_date": date.Format("2006-01-02"),
	})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
