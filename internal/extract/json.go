package extract

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/expense-ingest/internal/expense"
)

// jsonExpense mirrors the exported expense layout. Amount tolerates both JSON
// numbers and quoted decimals so exports round-trip.
type jsonExpense struct {
	Amount        *decimal.Decimal `json:"amount"`
	Category      string           `json:"category"`
	Date          string           `json:"date"`
	Merchant      string           `json:"merchant"`
	Notes         string           `json:"notes"`
	UTR           string           `json:"utr"`
	PaymentMethod string           `json:"paymentMethod"`
}

// ParseJSON parses a JSON export into candidate expenses. The top-level value
// must be an array of expense objects; anything else is a FormatError. Fields
// are copied directly; the category is validated against the fixed set and
// replaced with Other when invalid or missing; dates that fail to parse are
// left absent.
func ParseJSON(data []byte) ([]expense.Candidate, error) {
	var probe any
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, &FormatError{Reason: "failed to parse JSON file", Err: err}
	}
	if _, ok := probe.([]any); !ok {
		return nil, &FormatError{Reason: "JSON file is not an array of expense objects"}
	}

	var items []jsonExpense
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, &FormatError{Reason: "failed to parse JSON file", Err: err}
	}

	candidates := make([]expense.Candidate, 0, len(items))
	for _, item := range items {
		c := expense.Candidate{
			Amount:        item.Amount,
			Category:      expense.CategoryOrOther(item.Category),
			Merchant:      strings.TrimSpace(item.Merchant),
			Notes:         item.Notes,
			UTR:           strings.TrimSpace(item.UTR),
			PaymentMethod: strings.TrimSpace(item.PaymentMethod),
		}
		if item.Date != "" {
			if t, err := expense.ParseDate(item.Date); err == nil {
				c.Date = &t
			}
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}
