package tabular

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"palletdesk/internal"
)

func mkXLSX(rows [][]any) []byte {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	buf := bytes.NewBuffer(nil)
	_, _ = f.WriteTo(buf)
	return buf.Bytes()
}

func TestImportXLSX(t *testing.T) {
	blob := mkXLSX([][]any{
		{"Position", "Weight", "Unit", "QTY", "Pallet Number", "Work Number"},
		{"1", 250, "kg", 2, "P1", "W-1"},
		{"2", 100, "kg", 1, "", "W-2"},
	})

	rows, rowErrs, err := ImportXLSX(blob)
	if err != nil {
		t.Fatal(err)
	}
	if len(rowErrs) != 0 {
		t.Fatalf("row errors: %v", rowErrs)
	}
	if len(rows) != 2 {
		t.Fatalf("len=%d", len(rows))
	}
	if rows[0].LineWeightKg != 500 || rows[0].PalletNumber != "P1" {
		t.Fatalf("row 0: %+v", rows[0])
	}
	if rows[1].RowPalletID() != "" {
		t.Fatalf("row 1 must be unassigned")
	}
}

func TestImportXLSXUnreadable(t *testing.T) {
	if _, _, err := ImportXLSX([]byte("not a workbook")); !errors.Is(err, ErrUnreadable) {
		t.Fatalf("err=%v", err)
	}
}

func TestExportOrdersXLSX(t *testing.T) {
	out := filepath.Join(t.TempDir(), "orders.xlsx")

	orders := []internal.Order{
		{OrderID: "X1", Customer: "Acme", Status: internal.OrderPending, WeightKg: 12.5},
	}
	if err := ExportOrdersXLSX(orders, out); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenFile(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	sheet := f.GetSheetName(0)
	if v, _ := f.GetCellValue(sheet, "A2"); v != "X1" {
		t.Fatalf("A2=%q", v)
	}
	if v, _ := f.GetCellValue(sheet, "B2"); v != "Acme" {
		t.Fatalf("B2=%q", v)
	}
}

func TestExportSummariesXLSX(t *testing.T) {
	tmp := t.TempDir()
	out := filepath.Join(tmp, "summary.xlsx")

	blob := mkXLSX([][]any{
		{"Position", "Weight", "QTY", "Pallet Number"},
		{"1", 400, 1, "P1"},
	})
	rows, _, err := ImportXLSX(blob)
	if err != nil {
		t.Fatal(err)
	}
	if err := ExportLineItemsXLSX(rows, out); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatal(err)
	}

	// The export keeps the import column layout, so it reads back in.
	blob2, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	back, _, err := ImportXLSX(blob2)
	if err != nil {
		t.Fatal(err)
	}
	if len(back) != 1 || back[0].LineWeightKg != 400 || back[0].PalletNumber != "P1" {
		t.Fatalf("round trip: %+v", back)
	}
}
