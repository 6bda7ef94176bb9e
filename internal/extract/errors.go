package extract

import "fmt"

// The extractor surfaces a small, closed taxonomy of failures. Callers match
// with errors.As and translate each into a per-item status; none of these
// should ever abort a sibling file in a batch.

// UnsupportedFormatError reports a file extension no parser handles.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file type %q: upload JSON, CSV, Excel, or PDF", e.Ext)
}

// FormatError reports a recognized format whose content does not parse, such
// as a JSON file whose root is not an array or a corrupt workbook.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *FormatError) Unwrap() error { return e.Err }

// ExtractionError reports a failed remote AI extraction: transport errors,
// rate limits, schema violations, or an explicit not-a-receipt classification.
// RateLimited is set when the upstream signalled throttling so the caller can
// suggest waiting.
type ExtractionError struct {
	Reason      string
	RateLimited bool
	Err         error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *ExtractionError) Unwrap() error { return e.Err }
