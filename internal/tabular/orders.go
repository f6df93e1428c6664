package tabular

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"palletdesk/internal"
	"palletdesk/internal/util"
)

// requiredOrderCols are the mandatory logical columns of the strict
// order-import form. A header missing any of them fails the whole import.
var requiredOrderCols = []string{"Order ID", "SKU", "Qty", "Weight"}

// ParseOrderLines runs the strict order-import form over a header-plus-data
// matrix. Missing required columns are fatal; missing or invalid required
// values in a data row skip that row and collect an advisory error.
func ParseOrderLines(matrix [][]string) ([]internal.OrderLine, []internal.RowError, error) {
	if len(matrix) == 0 {
		return nil, nil, fmt.Errorf("%w: empty file", ErrUnreadable)
	}

	idx := map[string]int{}
	for i, h := range matrix[0] {
		key := strings.ToLower(strings.TrimSpace(h))
		if key != "" {
			if _, seen := idx[key]; !seen {
				idx[key] = i
			}
		}
	}

	missing := []string{}
	for _, col := range requiredOrderCols {
		if _, ok := idx[strings.ToLower(col)]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, nil, fmt.Errorf("%w: missing required column(s): %s", ErrUnreadable, strings.Join(missing, ", "))
	}

	col := func(name string) int { return idx[strings.ToLower(name)] }

	ok := []internal.OrderLine{}
	rowErrs := []internal.RowError{}
	for i, row := range matrix[1:] {
		orderID := cellAt(row, col("Order ID"))
		sku := cellAt(row, col("SKU"))
		qty, qtyOK := util.ParseNumberLoose(cellAt(row, col("Qty")))
		weight, weightOK := util.ParseNumberLoose(cellAt(row, col("Weight")))

		bad := false
		if orderID == "" {
			rowErrs = append(rowErrs, internal.RowError{Index: i, Reason: "Order ID is required"})
			bad = true
		}
		if sku == "" {
			rowErrs = append(rowErrs, internal.RowError{Index: i, Reason: "SKU is required"})
			bad = true
		}
		if !qtyOK || qty <= 0 {
			rowErrs = append(rowErrs, internal.RowError{Index: i, Reason: "Qty invalid"})
			bad = true
		}
		if !weightOK || weight < 0 {
			rowErrs = append(rowErrs, internal.RowError{Index: i, Reason: "Weight invalid"})
			bad = true
		}
		if bad {
			continue
		}

		ok = append(ok, internal.OrderLine{OrderID: orderID, SKU: sku, Qty: qty, Weight: weight})
	}

	return ok, rowErrs, nil
}

// OrdersFromCSV parses an order-entity CSV (orderId, customer, status, ...)
// into registry records. Only orderId is mandatory; other columns default.
// Rows without an order id are collected as advisory errors.
func OrdersFromCSV(text string) ([]internal.Order, []internal.RowError, error) {
	matrix := ParseMatrix(text)
	if len(matrix) == 0 {
		return nil, nil, fmt.Errorf("%w: empty file", ErrUnreadable)
	}

	lower := make([]string, len(matrix[0]))
	for i, h := range matrix[0] {
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

	idCol := findAny("orderid", "order id", "order")
	if idCol < 0 {
		return nil, nil, fmt.Errorf("%w: missing required column(s): orderId", ErrUnreadable)
	}
	customerCol := findAny("customer", "customer name")
	statusCol := findAny("status")
	transporterCol := findAny("transporter", "carrier")
	parcelCol := findAny("parcelno", "parcel no", "parcel")
	deliveryCol := findAny("deliverydate", "delivery date", "delivered on")
	weightCol := findAny("weightkg", "weight", "weight (kg)")
	deletedCol := findAny("deletedat", "deleted at")

	out := []internal.Order{}
	rowErrs := []internal.RowError{}
	for i, row := range matrix[1:] {
		id := cellAt(row, idCol)
		if id == "" {
			rowErrs = append(rowErrs, internal.RowError{Index: i, Reason: "Order ID is required"})
			continue
		}

		status := internal.OrderStatus(cellAt(row, statusCol))
		if status == "" {
			status = internal.OrderPending
		}

		o := internal.Order{
			OrderID:  id,
			Customer: cellAt(row, customerCol),
			Status:   status,
			WeightKg: util.ClampNonNegative(cellAt(row, weightCol)),
		}
		if v := cellAt(row, transporterCol); v != "" {
			o.Transporter = internal.StringPtr(v)
		}
		if v := cellAt(row, parcelCol); v != "" {
			o.ParcelNo = internal.StringPtr(v)
		}
		if v := cellAt(row, deliveryCol); v != "" {
			o.DeliveryDate = internal.StringPtr(v)
		}
		if v := cellAt(row, deletedCol); v != "" {
			o.DeletedAt = internal.StringPtr(v)
		}
		out = append(out, o)
	}

	return out, rowErrs, nil
}

// OrdersToCSV serializes orders in the column layout OrdersFromCSV reads, so
// the pair round-trips a registry snapshot.
func OrdersToCSV(orders []internal.Order) string {
	matrix := [][]string{{"orderId", "customer", "status", "transporter", "parcelNo", "deliveryDate", "weightKg", "deletedAt"}}
	for _, o := range orders {
		matrix = append(matrix, []string{
			o.OrderID,
			o.Customer,
			string(o.Status),
			deref(o.Transporter),
			deref(o.ParcelNo),
			deref(o.DeliveryDate),
			formatWeight(o.WeightKg),
			deref(o.DeletedAt),
		})
	}
	return WriteMatrix(matrix)
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func formatWeight(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
