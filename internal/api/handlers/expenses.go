package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/expense-ingest/internal/api/middleware"
	"github.com/ledgerline/expense-ingest/internal/expense"
	"github.com/ledgerline/expense-ingest/internal/store"
)

// ExpensesHandler exposes the persisted expense collection.
type ExpensesHandler struct {
	store *store.Store
	log   zerolog.Logger
}

// NewExpensesHandler creates a new expenses handler.
func NewExpensesHandler(s *store.Store, log zerolog.Logger) *ExpensesHandler {
	return &ExpensesHandler{store: s, log: log}
}

// expenseRequest is the manual add/update payload.
type expenseRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Category      string          `json:"category"`
	Date          string          `json:"date"`
	Merchant      string          `json:"merchant"`
	Notes         string          `json:"notes"`
	UTR           string          `json:"utr"`
	PaymentMethod string          `json:"paymentMethod"`
	ReceiptImage  string          `json:"receiptImage"`
}

// ListExpenses handles GET /api/expenses, optionally filtered to one
// calendar month with ?month=YYYY-MM.
func (h *ExpensesHandler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := h.store.LoadExpenses(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load expenses")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load expenses")
		return
	}

	if monthStr := r.URL.Query().Get("month"); monthStr != "" {
		month, err := time.Parse("2006-01", monthStr)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid month format, want YYYY-MM")
			return
		}
		expenses = filterMonth(expenses, month)
	}

	middleware.WriteJSON(w, http.StatusOK, expenses)
}

// CreateExpense handles POST /api/expenses.
func (h *ExpensesHandler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	record, ok := h.decodeExpense(w, r)
	if !ok {
		return
	}

	if err := h.store.Append(r.Context(), record); err != nil {
		h.log.Error().Err(err).Msg("Failed to save expense")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save expense")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, record)
}

// UpdateExpense handles PUT /api/expenses/{id}.
func (h *ExpensesHandler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	record, ok := h.decodeExpense(w, r)
	if !ok {
		return
	}
	record.ID = mux.Vars(r)["id"]

	if err := h.store.Update(r.Context(), record); err != nil {
		middleware.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, record)
}

// DeleteExpense handles DELETE /api/expenses/{id}.
func (h *ExpensesHandler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.log.Error().Err(err).Msg("Failed to delete expense")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete expense")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportExpenses handles GET /api/expenses/export: the whole collection as a
// downloadable JSON document.
func (h *ExpensesHandler) ExportExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := h.store.LoadExpenses(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load expenses")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to export expenses")
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="expenses.json"`)
	middleware.WriteJSON(w, http.StatusOK, expenses)
}

func (h *ExpensesHandler) decodeExpense(w http.ResponseWriter, r *http.Request) (expense.Expense, bool) {
	var req expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return expense.Expense{}, false
	}

	day, err := expense.ParseDate(req.Date)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid or missing date")
		return expense.Expense{}, false
	}
	merchant := strings.TrimSpace(req.Merchant)
	if merchant == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Merchant is required")
		return expense.Expense{}, false
	}

	record, err := expense.New(req.Amount, expense.CategoryOrOther(req.Category), day, merchant, strings.TrimSpace(req.Notes))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return expense.Expense{}, false
	}
	record.UTR = strings.TrimSpace(req.UTR)
	record.PaymentMethod = strings.TrimSpace(req.PaymentMethod)
	record.ReceiptImage = req.ReceiptImage
	return record, true
}

func filterMonth(expenses []expense.Expense, month time.Time) []expense.Expense {
	filtered := make([]expense.Expense, 0, len(expenses))
	for _, e := range expenses {
		if e.Date.Year() == month.Year() && e.Date.Month() == month.Month() {
			filtered = append(filtered, e)
		}
	}
	return filtered
}
