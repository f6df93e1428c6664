package tabular

import (
	"errors"
	"fmt"
	"strings"

	"palletdesk/internal"
	"palletdesk/internal/util"
)

// ErrUnreadable is the fatal structural error: the source has no usable
// sheet, header or rows at all. Per-row defects never produce it.
var ErrUnreadable = errors.New("table is unreadable")

// columnIndex maps each logical column to its position in the header row,
// -1 when the source has no matching header.
type columnIndex struct {
	Position        int
	PositionIdent   int
	BarCodeNumber   int
	PositionDetail  int
	IdentNumber     int
	Detail          int
	Type            int
	Weight          int
	Unit            int
	QTY             int
	PalletNumber    int
	WorkNumber      int
	SealNumber      int
	ContainerNumber int
	OrderID         int
}

// resolveColumns matches logical columns against known header spellings,
// case-insensitively; the first matching alias wins. Unmatched columns stay
// -1 and default per row instead of failing the import.
func resolveColumns(header []string) columnIndex {
	lower := make([]string, len(header))
	for i, h := range header {
		lower[i] = strings.ToLower(strings.TrimSpace(h))
	}

	findAny := func(choices ...string) int {
		for _, c := range choices {
			for i, h := range lower {
				if h == c {
					return i
				}
			}
		}
		return -1
	}

	return columnIndex{
		Position:        findAny("position", "pos", "line", "line no"),
		PositionIdent:   findAny("position ident", "position_ident"),
		BarCodeNumber:   findAny("barcodenumber", "barcode", "bar code"),
		PositionDetail:  findAny("position detail", "positiondetail"),
		IdentNumber:     findAny("identnumber", "ident number", "ident"),
		Detail:          findAny("detail", "description", "item"),
		Type:            findAny("type", "item type"),
		Weight:          findAny("weight", "weightkg", "weight (kg)"),
		Unit:            findAny("unit", "uom", "unit of measure"),
		QTY:             findAny("qty", "quantity"),
		PalletNumber:    findAny("pallet number", "palletnumber", "pallet no", "pallet", "pallet id"),
		WorkNumber:      findAny("work number", "worknumber"),
		SealNumber:      findAny("seal number", "sealnumber"),
		ContainerNumber: findAny("container number", "containernumber", "container"),
		OrderID:         findAny("order id", "orderid", "order"),
	}
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// RowsFromMatrix converts a header-plus-data matrix into canonical line-items.
// Missing logical columns default (weight 0, qty 1, unit Kg); defective cells
// are collected as advisory errors, not failures. Returns ErrUnreadable only
// when the matrix carries no header row at all.
func RowsFromMatrix(matrix [][]string) ([]internal.LineItem, []internal.RowError, error) {
	if len(matrix) == 0 {
		return nil, nil, ErrUnreadable
	}

	cols := resolveColumns(matrix[0])
	out := make([]internal.LineItem, 0, len(matrix)-1)
	rowErrs := []internal.RowError{}

	for i, row := range matrix[1:] {
		weight := 0.0
		if cols.Weight >= 0 {
			cell := cellAt(row, cols.Weight)
			if n, ok := util.ParseNumberLoose(cell); ok {
				weight = util.Clamp0(n)
			} else if cell != "" {
				rowErrs = append(rowErrs, internal.RowError{Index: i, Reason: fmt.Sprintf("Weight invalid: %s", cell)})
			}
		}

		qty := 1.0
		if cols.QTY >= 0 {
			cell := cellAt(row, cols.QTY)
			if n, ok := util.ParseNumberLoose(cell); ok {
				qty = util.Clamp0(n)
			} else {
				qty = 0
				if cell != "" {
					rowErrs = append(rowErrs, internal.RowError{Index: i, Reason: fmt.Sprintf("Qty invalid: %s", cell)})
				}
			}
		}

		unit := util.CanonicalUnit
		if cols.Unit >= 0 {
			if u := util.NormalizeUnit(cellAt(row, cols.Unit)); u != "" {
				unit = u
			}
		}

		out = append(out, internal.LineItem{
			Position:        cellAt(row, cols.Position),
			PositionIdent:   cellAt(row, cols.PositionIdent),
			BarCodeNumber:   cellAt(row, cols.BarCodeNumber),
			PositionDetail:  cellAt(row, cols.PositionDetail),
			IdentNumber:     cellAt(row, cols.IdentNumber),
			Detail:          cellAt(row, cols.Detail),
			Type:            cellAt(row, cols.Type),
			Weight:          weight,
			Unit:            unit,
			QTY:             qty,
			PalletNumber:    cellAt(row, cols.PalletNumber),
			WorkNumber:      cellAt(row, cols.WorkNumber),
			SealNumber:      cellAt(row, cols.SealNumber),
			ContainerNumber: cellAt(row, cols.ContainerNumber),
			OrderID:         cellAt(row, cols.OrderID),
			LineWeightKg:    util.ComputeLineWeight(weight, qty),
		})
	}

	return out, rowErrs, nil
}

// ImportCSV parses CSV text into canonical line-items.
func ImportCSV(text string) ([]internal.LineItem, []internal.RowError, error) {
	return RowsFromMatrix(ParseMatrix(text))
}
