package extract

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/expense-ingest/internal/expense"
)

// Row is one spreadsheet row: raw header -> cell value. Cell values are
// string, float64 (numeric cells, including date serials), or time.Time.
type Row map[string]any

// headerAliases maps each candidate field to the recognized spreadsheet
// headers, already normalized (lowercase, alphanumeric only).
var headerAliases = map[string][]string{
	"date":          {"date", "transactiondate"},
	"amount":        {"amount", "value", "price", "debit"},
	"merchant":      {"merchant", "description", "payee", "name"},
	"category":      {"category", "type"},
	"notes":         {"notes", "memo"},
	"paymentMethod": {"paymentmethod", "paymentmode"},
	"utr":           {"utr", "transactionid", "id"},
}

// normalizeHeader lowercases a raw header and strips everything that is not a
// letter or digit, so "Transaction Date", "transaction_date" and
// "TransactionDate" all match the same alias.
func normalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MapRow converts one raw spreadsheet row into a candidate expense. It never
// fails: unmatched headers are ignored and malformed cells leave the target
// field absent, so the result may be arbitrarily sparse. Validity is judged
// downstream.
//
// Headers are visited in sorted order so that "first matching alias wins" is
// deterministic regardless of map iteration order.
func MapRow(row Row) expense.Candidate {
	headers := make([]string, 0, len(row))
	for h := range row {
		headers = append(headers, h)
	}
	sort.Strings(headers)

	var c expense.Candidate
	for _, raw := range headers {
		field, ok := resolveHeader(raw)
		if !ok {
			continue
		}
		value := row[raw]
		switch field {
		case "date":
			if c.Date == nil {
				c.Date = coerceDate(value)
			}
		case "amount":
			if c.Amount == nil {
				c.Amount = coerceAmount(value)
			}
		case "merchant":
			if c.Merchant == "" {
				c.Merchant = cellString(value)
			}
		case "category":
			// Unmatched values are deliberately left as provided; the
			// importer substitutes Other only when persisting.
			if c.Category == "" {
				c.Category = expense.Category(cellString(value))
			}
		case "notes":
			if c.Notes == "" {
				c.Notes = cellString(value)
			}
		case "paymentMethod":
			if c.PaymentMethod == "" {
				c.PaymentMethod = cellString(value)
			}
		case "utr":
			if c.UTR == "" {
				c.UTR = cellString(value)
			}
		}
	}
	return c
}

// resolveHeader matches a raw header against the alias table.
func resolveHeader(raw string) (string, bool) {
	normalized := normalizeHeader(raw)
	for field, aliases := range headerAliases {
		for _, alias := range aliases {
			if alias == normalized {
				return field, true
			}
		}
	}
	return "", false
}

// coerceAmount turns a cell into a decimal amount. Textual values are
// stripped of everything but digits, minus signs, and decimal points before
// parsing ("$1,234.56" -> 1234.56). Unparseable values yield nil, never zero.
func coerceAmount(v any) *decimal.Decimal {
	switch val := v.(type) {
	case float64:
		d := decimal.NewFromFloat(val)
		return &d
	case string:
		var b strings.Builder
		for _, r := range val {
			if (r >= '0' && r <= '9') || r == '-' || r == '.' {
				b.WriteRune(r)
			}
		}
		d, err := decimal.NewFromString(b.String())
		if err != nil {
			return nil
		}
		return &d
	}
	return nil
}

// coerceDate turns a cell into a canonical midday-UTC date. Numeric cells are
// interpreted as 1900-based spreadsheet serials; textual cells go through the
// flexible date parser. Unparseable values yield nil rather than a default.
func coerceDate(v any) *time.Time {
	switch val := v.(type) {
	case float64:
		t := expense.FromSerial(val)
		return &t
	case time.Time:
		t := expense.MiddayUTC(val)
		return &t
	case string:
		t, err := expense.ParseDate(strings.TrimSpace(val))
		if err != nil {
			return nil
		}
		return &t
	}
	return nil
}

func cellString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		// Numeric cells can still be meaningful text fields, e.g. an "ID"
		// column of bare transaction numbers.
		return decimal.NewFromFloat(val).String()
	}
	return ""
}
