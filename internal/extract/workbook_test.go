package extract

import (
	"bytes"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestCSVReaderReadRows(t *testing.T) {
	data := []byte("Date,Amount,Merchant\n2024-03-01,45.00,Cafe\n2024-03-02,,Kiosk\n,,\n")

	rows, err := CSVReader{}.ReadRows(data)
	if err != nil {
		t.Fatalf("ReadRows returned error: %v", err)
	}
	// The all-empty record is dropped.
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}

	if rows[0]["Date"] != "2024-03-01" {
		t.Errorf("Date cell = %v", rows[0]["Date"])
	}
	if amount, ok := rows[0]["Amount"].(float64); !ok || amount != 45.00 {
		t.Errorf("Numeric cell should be float64, got %T %v", rows[0]["Amount"], rows[0]["Amount"])
	}
	if _, present := rows[1]["Amount"]; present {
		t.Error("Empty cell should be absent from the row")
	}
}

func TestCSVReaderRaggedRows(t *testing.T) {
	data := []byte("Date,Amount,Merchant\n2024-03-01,45.00\n")

	rows, err := CSVReader{}.ReadRows(data)
	if err != nil {
		t.Fatalf("ReadRows returned error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(rows))
	}
	if _, present := rows[0]["Merchant"]; present {
		t.Error("Short record should leave trailing cells absent")
	}
}

func TestXLSXReaderReadRows(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	f.SetCellValue(sheet, "A1", "Date")
	f.SetCellValue(sheet, "B1", "Amount")
	f.SetCellValue(sheet, "C1", "Merchant")
	f.SetCellValue(sheet, "A2", "2024-03-01")
	f.SetCellValue(sheet, "B2", 45.5)
	f.SetCellValue(sheet, "C2", "Cafe")

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("Failed to build workbook: %v", err)
	}

	rows, err := XLSXReader{}.ReadRows(buf.Bytes())
	if err != nil {
		t.Fatalf("ReadRows returned error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(rows))
	}
	if rows[0]["Merchant"] != "Cafe" {
		t.Errorf("Merchant cell = %v", rows[0]["Merchant"])
	}
	if amount, ok := rows[0]["Amount"].(float64); !ok || amount != 45.5 {
		t.Errorf("Numeric cell should be float64, got %T %v", rows[0]["Amount"], rows[0]["Amount"])
	}
}

func TestXLSXReaderRejectsGarbage(t *testing.T) {
	var formatErr *FormatError

	_, err := XLSXReader{}.ReadRows([]byte("definitely not a workbook"))
	if !errors.As(err, &formatErr) {
		t.Fatalf("Expected FormatError, got %v", err)
	}
}
