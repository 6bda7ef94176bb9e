package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ledgerline/expense-ingest/internal/api/middleware"
	"github.com/ledgerline/expense-ingest/internal/insights"
	"github.com/ledgerline/expense-ingest/internal/store"
)

// InsightsHandler exposes AI spending analysis over the stored expenses.
type InsightsHandler struct {
	service *insights.Service
	store   *store.Store
	log     zerolog.Logger
}

// NewInsightsHandler creates a new insights handler.
func NewInsightsHandler(service *insights.Service, s *store.Store, log zerolog.Logger) *InsightsHandler {
	return &InsightsHandler{service: service, store: s, log: log}
}

// GetSuggestions handles GET /api/insights/suggestions.
func (h *InsightsHandler) GetSuggestions(w http.ResponseWriter, r *http.Request) {
	expenses, err := h.store.LoadExpenses(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load expenses")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load expenses")
		return
	}

	suggestions, err := h.service.SavingsSuggestions(r.Context(), expenses)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to generate suggestions")
		middleware.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"suggestions": suggestions})
}

// CreateReport handles POST /api/insights/report: a period-over-period
// comparison of two calendar months.
func (h *InsightsHandler) CreateReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Current  string `json:"current"`
		Previous string `json:"previous"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	current, err := time.Parse("2006-01", req.Current)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid current month, want YYYY-MM")
		return
	}
	previous, err := time.Parse("2006-01", req.Previous)
	if err != nil {
		// Default to the month before the current one.
		previous = current.AddDate(0, -1, 0)
	}

	expenses, err := h.store.LoadExpenses(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load expenses")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load expenses")
		return
	}

	report, err := h.service.Report(r.Context(), filterMonth(expenses, current), filterMonth(expenses, previous))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build report")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to build report")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, report)
}
