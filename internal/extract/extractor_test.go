package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/expense-ingest/internal/expense"
)

// mockAI implements AI with function fields.
type mockAI struct {
	receiptFn func(ctx context.Context, image []byte, mimeType string) (expense.Candidate, error)
	docFn     func(ctx context.Context, file []byte, mimeType string) ([]expense.Candidate, error)
}

func (m *mockAI) ExtractReceiptFields(ctx context.Context, image []byte, mimeType string) (expense.Candidate, error) {
	return m.receiptFn(ctx, image, mimeType)
}

func (m *mockAI) ExtractDocumentTransactions(ctx context.Context, file []byte, mimeType string) ([]expense.Candidate, error) {
	return m.docFn(ctx, file, mimeType)
}

func TestProcessFileDispatch(t *testing.T) {
	amount := decimal.NewFromInt(10)
	ai := &mockAI{
		docFn: func(ctx context.Context, file []byte, mimeType string) ([]expense.Candidate, error) {
			if mimeType != "application/pdf" {
				t.Errorf("mimeType = %q, want application/pdf", mimeType)
			}
			return []expense.Candidate{{Amount: &amount, Merchant: "Bank"}}, nil
		},
	}
	e := NewExtractor(ai, zerolog.Nop())

	tests := []struct {
		name      string
		file      string
		data      []byte
		wantCount int
	}{
		{"json", "export.json", []byte(`[{"amount": 5, "merchant": "Cafe"}]`), 1},
		{"csv", "bank.csv", []byte("Amount,Merchant\n5,Cafe\n"), 1},
		{"pdf uppercase ext", "statement.PDF", []byte("%PDF"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidates, err := e.ProcessFile(context.Background(), tt.file, tt.data)
			if err != nil {
				t.Fatalf("ProcessFile(%s) returned error: %v", tt.file, err)
			}
			if len(candidates) != tt.wantCount {
				t.Errorf("Expected %d candidates, got %d", tt.wantCount, len(candidates))
			}
		})
	}
}

func TestProcessFileUnsupportedFormat(t *testing.T) {
	e := NewExtractor(nil, zerolog.Nop())

	var unsupported *UnsupportedFormatError
	_, err := e.ProcessFile(context.Background(), "notes.txt", []byte("hello"))
	if !errors.As(err, &unsupported) {
		t.Fatalf("Expected UnsupportedFormatError, got %v", err)
	}
	if unsupported.Ext != "txt" {
		t.Errorf("Ext = %q, want txt", unsupported.Ext)
	}
}

func TestProcessFilePDFWithoutAI(t *testing.T) {
	e := NewExtractor(nil, zerolog.Nop())

	var extraction *ExtractionError
	_, err := e.ProcessFile(context.Background(), "statement.pdf", []byte("%PDF"))
	if !errors.As(err, &extraction) {
		t.Fatalf("Expected ExtractionError when AI is not configured, got %v", err)
	}
}

func TestProcessFilePropagatesAIError(t *testing.T) {
	ai := &mockAI{
		docFn: func(ctx context.Context, file []byte, mimeType string) ([]expense.Candidate, error) {
			return nil, &ExtractionError{Reason: "rate limit exceeded", RateLimited: true}
		},
	}
	e := NewExtractor(ai, zerolog.Nop())

	var extraction *ExtractionError
	_, err := e.ProcessFile(context.Background(), "statement.pdf", []byte("%PDF"))
	if !errors.As(err, &extraction) || !extraction.RateLimited {
		t.Fatalf("Expected rate-limited ExtractionError, got %v", err)
	}
}
