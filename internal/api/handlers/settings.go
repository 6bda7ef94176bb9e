package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/expense-ingest/internal/api/middleware"
	"github.com/ledgerline/expense-ingest/internal/settings"
)

// SettingsHandler exposes user preferences and monthly budgets.
type SettingsHandler struct {
	service *settings.Service
	log     zerolog.Logger
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(service *settings.Service, log zerolog.Logger) *SettingsHandler {
	return &SettingsHandler{service: service, log: log}
}

// GetSettings handles GET /api/settings.
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.Load(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load settings")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, s)
}

// PutSettings handles PUT /api/settings.
func (h *SettingsHandler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var s settings.Settings
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.Save(r.Context(), s); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, s)
}

// GetBudget handles GET /api/budgets/{month}.
func (h *SettingsHandler) GetBudget(w http.ResponseWriter, r *http.Request) {
	month, ok := parseMonth(w, r)
	if !ok {
		return
	}

	budget, err := h.service.BudgetForMonth(r.Context(), month)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load budget")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load budget")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"month":  month.Format("2006-01"),
		"budget": budget,
	})
}

// PutBudget handles PUT /api/budgets/{month}.
func (h *SettingsHandler) PutBudget(w http.ResponseWriter, r *http.Request) {
	month, ok := parseMonth(w, r)
	if !ok {
		return
	}

	var req struct {
		Budget decimal.Decimal `json:"budget"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.SetBudgetForMonth(r.Context(), month, req.Budget); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"month":  month.Format("2006-01"),
		"budget": req.Budget,
	})
}

func parseMonth(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	month, err := time.Parse("2006-01", mux.Vars(r)["month"])
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid month format, want YYYY-MM")
		return time.Time{}, false
	}
	return month, true
}
