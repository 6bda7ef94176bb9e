package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"google.golang.org/genai"

	"github.com/ledgerline/expense-ingest/internal/expense"
)

// DefaultModelName is the Gemini model used for receipt and document
// extraction.
const DefaultModelName = "gemini-2.5-flash"

// AI is the remote extraction capability consumed by the pipeline: structured
// fields from a receipt image, or a list of expense transactions from a
// document. Both fail with *ExtractionError on transport, rate-limit, or
// schema problems. The interface enables mocking in pipeline tests.
type AI interface {
	ExtractReceiptFields(ctx context.Context, image []byte, mimeType string) (expense.Candidate, error)
	ExtractDocumentTransactions(ctx context.Context, file []byte, mimeType string) ([]expense.Candidate, error)
}

// Gemini implements AI against the Gemini API with strict JSON-schema
// constrained responses.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini-backed extractor. The API key is read from the
// environment by the genai client. An empty model selects DefaultModelName.
func NewGemini(ctx context.Context, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if model == "" {
		model = DefaultModelName
	}
	return &Gemini{client: client, model: model}, nil
}

// receiptFields is the schema-constrained response for a single receipt scan.
type receiptFields struct {
	IsReceipt     bool     `json:"isReceipt"`
	Reason        string   `json:"reason"`
	Amount        *float64 `json:"amount"`
	Merchant      string   `json:"merchant"`
	Date          string   `json:"date"`
	Category      string   `json:"category"`
	UTR           string   `json:"utr"`
	PaymentMethod string   `json:"paymentMethod"`
}

// ExtractReceiptFields sends one receipt image to the model and returns the
// extracted candidate. Images the model classifies as not-a-receipt, and
// dates the model returns unreadable, both surface as *ExtractionError.
func (g *Gemini) ExtractReceiptFields(ctx context.Context, image []byte, mimeType string) (expense.Candidate, error) {
	prompt := "First, determine if this image is a transaction receipt.\n" +
		"If it is not, set 'isReceipt' to false and provide a reason.\n" +
		"If it IS a receipt, set 'isReceipt' to true and extract the following details:\n" +
		"1. Total amount.\n" +
		"2. Merchant name.\n" +
		"3. Date in YYYY-MM-DD format.\n" +
		"4. A suggested category from this list: " + strings.Join(expense.CategoryNames(), ", ") + ".\n" +
		"5. The UTR (Unique Transaction Reference) or Transaction ID, if available.\n" +
		"6. The payment method or app used (e.g., Google Pay, Credit Card, UPI), if visible.\n" +
		"Return the result as a valid JSON object that adheres to the provided schema."

	schema := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"isReceipt":     {Type: genai.TypeBoolean, Description: "True if the image is a transaction receipt."},
			"reason":        {Type: genai.TypeString, Description: "Reason why it is not a receipt, if applicable."},
			"amount":        {Type: genai.TypeNumber, Description: "The total amount on the receipt."},
			"merchant":      {Type: genai.TypeString, Description: "The name of the store or merchant."},
			"date":          {Type: genai.TypeString, Description: "The date of the transaction in YYYY-MM-DD format."},
			"category":      {Type: genai.TypeString, Enum: expense.CategoryNames(), Description: "A suggested category for the expense."},
			"utr":           {Type: genai.TypeString, Description: "The Unique Transaction Reference (UTR) or transaction ID."},
			"paymentMethod": {Type: genai.TypeString, Description: "The payment app or mode of transaction."},
		},
		Required: []string{"isReceipt"},
	}

	raw, err := g.generateJSON(ctx, prompt, image, mimeType, schema)
	if err != nil {
		return expense.Candidate{}, err
	}

	var fields receiptFields
	if err := json.Unmarshal(raw, &fields); err != nil {
		return expense.Candidate{}, &ExtractionError{Reason: "model response did not match the receipt schema", Err: err}
	}
	if !fields.IsReceipt {
		reason := fields.Reason
		if reason == "" {
			reason = "no transaction details found"
		}
		return expense.Candidate{}, &ExtractionError{Reason: "the image does not appear to be a valid receipt (" + reason + ")"}
	}

	date, err := expense.ParseDate(fields.Date)
	if err != nil {
		return expense.Candidate{}, &ExtractionError{Reason: fmt.Sprintf("model returned an unreadable date %q", fields.Date)}
	}

	c := expense.Candidate{
		Category:      expense.CategoryOrOther(fields.Category),
		Date:          &date,
		Merchant:      strings.TrimSpace(fields.Merchant),
		UTR:           strings.TrimSpace(fields.UTR),
		PaymentMethod: strings.TrimSpace(fields.PaymentMethod),
	}
	if fields.Amount != nil {
		amount := decimal.NewFromFloat(*fields.Amount)
		c.Amount = &amount
	}
	return c, nil
}

// docTransaction is one element of the schema-constrained document response.
type docTransaction struct {
	Date     string  `json:"date"`
	Merchant string  `json:"merchant"`
	Amount   float64 `json:"amount"`
	Category string  `json:"category"`
}

// ExtractDocumentTransactions asks the model for every debit/expense
// transaction in a statement-like document, excluding credits and deposits.
// Items whose date fails to parse are dropped.
func (g *Gemini) ExtractDocumentTransactions(ctx context.Context, file []byte, mimeType string) ([]expense.Candidate, error) {
	prompt := "Analyze this financial statement. Extract all individual expense transactions " +
		"(debits/payments), ignoring any credits or deposits. For each expense, provide:\n" +
		"1. date: The transaction date in YYYY-MM-DD format.\n" +
		"2. merchant: The merchant name or a concise transaction description.\n" +
		"3. amount: The transaction amount as a positive number.\n" +
		"4. category: A suggested category from this list: " + strings.Join(expense.CategoryNames(), ", ") + ". Default to 'Other' if unsure.\n" +
		"Return a single valid JSON array of objects. If the document has no expenses, return an empty array []."

	schema := &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"date":     {Type: genai.TypeString, Description: "Transaction date (YYYY-MM-DD)"},
				"merchant": {Type: genai.TypeString, Description: "Merchant name or description"},
				"amount":   {Type: genai.TypeNumber, Description: "Transaction amount (positive number)"},
				"category": {Type: genai.TypeString, Enum: expense.CategoryNames(), Description: "Suggested category"},
			},
			Required: []string{"date", "merchant", "amount"},
		},
	}

	raw, err := g.generateJSON(ctx, prompt, file, mimeType, schema)
	if err != nil {
		return nil, err
	}

	var items []docTransaction
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &ExtractionError{Reason: "model response did not match the transaction schema", Err: err}
	}

	candidates := make([]expense.Candidate, 0, len(items))
	for _, item := range items {
		date, err := expense.ParseDate(item.Date)
		if err != nil {
			continue
		}
		amount := decimal.NewFromFloat(item.Amount)
		candidates = append(candidates, expense.Candidate{
			Amount:   &amount,
			Category: expense.CategoryOrOther(item.Category),
			Date:     &date,
			Merchant: strings.TrimSpace(item.Merchant),
		})
	}
	return candidates, nil
}

// GenerateText runs one plain-text generation, used by the insight
// components. Rate-limit classification applies the same way as for
// extraction calls.
func (g *Gemini) GenerateText(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: prompt}}},
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", classifyAIError(err)
	}
	text := resp.Text()
	if text == "" {
		return "", &ExtractionError{Reason: "empty response from model"}
	}
	return text, nil
}

// generateJSON runs one schema-constrained generation with an inline binary
// part and returns the cleaned JSON payload.
func (g *Gemini) generateJSON(ctx context.Context, prompt string, blob []byte, mimeType string, schema *genai.Schema) ([]byte, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{InlineData: &genai.Blob{MIMEType: mimeType, Data: blob}},
				{Text: prompt},
			},
		},
	}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return nil, classifyAIError(err)
	}
	text := resp.Text()
	if text == "" {
		return nil, &ExtractionError{Reason: "empty response from model"}
	}
	return []byte(cleanModelJSON(text)), nil
}

// classifyAIError wraps a genai failure, marking rate-limit and quota errors
// so the caller can suggest waiting before retrying.
func classifyAIError(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "429") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED") ||
		strings.Contains(msg, "quota") {
		return &ExtractionError{
			Reason:      "rate limit exceeded; wait a moment before uploading more files",
			RateLimited: true,
			Err:         err,
		}
	}
	return &ExtractionError{Reason: "model request failed", Err: err}
}

// cleanModelJSON strips Markdown fences and surrounding junk if the model
// ignored the strict-JSON instruction.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	// Keep only the outermost JSON value if stray text surrounds it. The
	// earlier of '[' and '{' decides whether the payload is an array or an
	// object.
	objStart := strings.Index(s, "{")
	arrStart := strings.Index(s, "[")
	opener, closer := "{", "}"
	if arrStart != -1 && (objStart == -1 || arrStart < objStart) {
		opener, closer = "[", "]"
	}
	start := strings.Index(s, opener)
	end := strings.LastIndex(s, closer)
	if start != -1 && end > start {
		return strings.TrimSpace(s[start : end+1])
	}
	return s
}
