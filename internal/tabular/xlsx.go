package tabular

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"palletdesk/internal"
)

// ImportXLSX reads the first sheet of a workbook into canonical line-items.
// A workbook without sheets or rows is a fatal structural error.
func ImportXLSX(content []byte) ([]internal.LineItem, []internal.RowError, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("%w: workbook has no sheets", ErrUnreadable)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("%w: sheet %s has no rows", ErrUnreadable, sheets[0])
	}

	return RowsFromMatrix(rows)
}

// ExportSummariesXLSX writes pallet summaries to a workbook, one row per
// pallet in the summaries' order.
func ExportSummariesXLSX(summaries []internal.PalletSummary, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{"pallet", "status", "lines", "weight_kg", "max_weight_kg", "warn", "updated_at"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, s := range summaries {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}
		set(1, s.PalletID)
		set(2, string(s.Status))
		set(3, s.Lines)
		set(4, s.WeightKg)
		set(5, s.MaxWeightKg)
		set(6, s.Warn)
		set(7, s.UpdatedAt)
	}

	return f.SaveAs(outputPath)
}

// ExportOrdersXLSX writes orders to a workbook in the same column layout as
// the CSV contract, deleted orders included.
func ExportOrdersXLSX(orders []internal.Order, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{"orderId", "customer", "status", "transporter", "parcelNo", "deliveryDate", "weightKg", "deletedAt"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, o := range orders {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}
		set(1, o.OrderID)
		set(2, o.Customer)
		set(3, string(o.Status))
		set(4, deref(o.Transporter))
		set(5, deref(o.ParcelNo))
		set(6, deref(o.DeliveryDate))
		set(7, o.WeightKg)
		set(8, deref(o.DeletedAt))
	}

	return f.SaveAs(outputPath)
}

// ExportLineItemsXLSX writes line-items back out in the import column layout,
// so a round trip through the tool keeps the operator's file shape.
func ExportLineItemsXLSX(rows []internal.LineItem, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{
		"Position", "Position ident", "BarCodeNumber", "Position Detail", "IdentNumber",
		"Detail", "Type", "Weight", "Unit", "QTY",
		"Pallet Number", "Work Number", "Seal Number", "Container Number", "Order ID",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}
		set(1, row.Position)
		set(2, row.PositionIdent)
		set(3, row.BarCodeNumber)
		set(4, row.PositionDetail)
		set(5, row.IdentNumber)
		set(6, row.Detail)
		set(7, row.Type)
		set(8, row.Weight)
		set(9, row.Unit)
		set(10, row.QTY)
		set(11, row.PalletNumber)
		set(12, row.WorkNumber)
		set(13, row.SealNumber)
		set(14, row.ContainerNumber)
		set(15, row.OrderID)
	}

	return f.SaveAs(outputPath)
}
