package extract

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ledgerline/expense-ingest/internal/expense"
)

// Extractor turns one uploaded file into a sequence of candidate expenses,
// dispatching on the filename extension. It either returns a full sequence or
// a failure; it never partially mutates caller state.
type Extractor struct {
	csv  WorkbookReader
	xlsx WorkbookReader
	ai   AI
	log  zerolog.Logger
}

// NewExtractor wires the format parsers. ai may be nil, in which case PDF
// extraction fails with an ExtractionError instead of calling out.
func NewExtractor(ai AI, log zerolog.Logger) *Extractor {
	return &Extractor{
		csv:  CSVReader{},
		xlsx: XLSXReader{},
		ai:   ai,
		log:  log,
	}
}

// ProcessFile parses name's content into candidates. Supported extensions:
// json, csv, xlsx, xls, pdf (case-insensitive). Anything else fails with
// *UnsupportedFormatError.
func (e *Extractor) ProcessFile(ctx context.Context, name string, data []byte) ([]expense.Candidate, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))

	e.log.Debug().Str("file", name).Str("ext", ext).Int("bytes", len(data)).Msg("extracting file")

	switch ext {
	case "json":
		return ParseJSON(data)
	case "csv":
		return e.mapRows(e.csv, data)
	case "xlsx", "xls":
		return e.mapRows(e.xlsx, data)
	case "pdf":
		if e.ai == nil {
			return nil, &ExtractionError{Reason: "document extraction requires the AI capability, which is not configured"}
		}
		return e.ai.ExtractDocumentTransactions(ctx, data, "application/pdf")
	default:
		return nil, &UnsupportedFormatError{Ext: ext}
	}
}

func (e *Extractor) mapRows(reader WorkbookReader, data []byte) ([]expense.Candidate, error) {
	rows, err := reader.ReadRows(data)
	if err != nil {
		return nil, err
	}
	candidates := make([]expense.Candidate, 0, len(rows))
	for _, row := range rows {
		candidates = append(candidates, MapRow(row))
	}
	return candidates, nil
}
