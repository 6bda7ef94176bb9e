package extract

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// WorkbookReader decodes tabular file content into rows of header -> cell
// value. Only the first sheet of multi-sheet workbooks is read.
type WorkbookReader interface {
	ReadRows(data []byte) ([]Row, error)
}

// CSVReader reads comma-separated files. The first record supplies the
// headers.
type CSVReader struct{}

func (CSVReader) ReadRows(data []byte) ([]Row, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1 // ragged rows are tolerated; short rows map fewer cells
	records, err := r.ReadAll()
	if err != nil {
		return nil, &FormatError{Reason: "failed to parse the spreadsheet", Err: err}
	}
	if len(records) == 0 {
		return nil, nil
	}
	return recordsToRows(records), nil
}

// XLSXReader reads Excel workbooks through excelize.
type XLSXReader struct{}

func (XLSXReader) ReadRows(data []byte) ([]Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &FormatError{Reason: "failed to parse the spreadsheet", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &FormatError{Reason: "failed to parse the spreadsheet", Err: err}
	}
	if len(records) == 0 {
		return nil, nil
	}
	return recordsToRows(records), nil
}

// recordsToRows pairs each data record with the header record, typing cells
// on the way: values that parse as numbers become float64 (spreadsheet date
// serials and amounts arrive this way), everything else stays a string.
func recordsToRows(records [][]string) []Row {
	headers := records[0]
	rows := make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(Row, len(headers))
		empty := true
		for i, header := range headers {
			if header == "" || i >= len(record) {
				continue
			}
			cell := strings.TrimSpace(record[i])
			if cell == "" {
				continue
			}
			empty = false
			row[header] = typedCell(cell)
		}
		if !empty {
			rows = append(rows, row)
		}
	}
	return rows
}

func typedCell(s string) any {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
