package internal

import "strings"

type OrderStatus string

const (
	OrderPending   OrderStatus = "Pending"
	OrderPacked    OrderStatus = "Packed"
	OrderShipped   OrderStatus = "Shipped"
	OrderCancelled OrderStatus = "Cancelled"
)

type PalletStatus string

const (
	PalletOpen    PalletStatus = "Open"
	PalletPacked  PalletStatus = "Packed"
	PalletShipped PalletStatus = "Shipped"
)

// Order is the authoritative entity per orderId. DeletedAt is the soft-delete
// marker; nil means active.
type Order struct {
	OrderID      string      `json:"orderId"`
	Customer     string      `json:"customer"`
	Status       OrderStatus `json:"status"`
	Transporter  *string     `json:"transporter,omitempty"`
	ParcelNo     *string     `json:"parcelNo,omitempty"`
	DeliveryDate *string     `json:"deliveryDate,omitempty"`
	WeightKg     float64     `json:"weightKg"`
	DeletedAt    *string     `json:"deletedAt"`
}

// LineItem is one imported cargo row. PalletNumber empty means unassigned.
// LineWeightKg is Weight x QTY and is recomputed whenever either changes.
type LineItem struct {
	Position        string  `json:"position"`
	PositionIdent   string  `json:"positionIdent"`
	BarCodeNumber   string  `json:"barCodeNumber"`
	PositionDetail  string  `json:"positionDetail"`
	IdentNumber     string  `json:"identNumber"`
	Detail          string  `json:"detail"`
	Type            string  `json:"type"`
	Weight          float64 `json:"weight"`
	Unit            string  `json:"unit"`
	QTY             float64 `json:"qty"`
	PalletNumber    string  `json:"palletNumber"`
	WorkNumber      string  `json:"workNumber"`
	SealNumber      string  `json:"sealNumber"`
	ContainerNumber string  `json:"containerNumber"`
	OrderID         string  `json:"orderId"`
	LineWeightKg    float64 `json:"lineWeightKg"`
}

// RowOrderID derives the join key toward the order registry. Priority:
// explicit order id, work number, barcode, ident number, then the position
// value as a plain string. First non-empty trimmed value wins.
func (r LineItem) RowOrderID() string {
	for _, v := range []string{r.OrderID, r.WorkNumber, r.BarCodeNumber, r.IdentNumber} {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return strings.TrimSpace(r.Position)
}

// RowPalletID returns the assigned pallet id, or "" when unassigned.
func (r LineItem) RowPalletID() string {
	return strings.TrimSpace(r.PalletNumber)
}

// PalletMeta is the runtime metadata layer of a pallet; the line-item layer is
// derived from LineItem.PalletNumber. MaxWeightKg nil falls back to the
// registry-wide default.
type PalletMeta struct {
	Status      PalletStatus `json:"status"`
	Transporter *string      `json:"transporter,omitempty"`
	CreatedAt   string       `json:"createdAt"`
	UpdatedAt   string       `json:"updatedAt"`
	MaxWeightKg *float64     `json:"maxWeightKg,omitempty"`
}

// Pallet is the composed view of one pallet: metadata plus the derived
// line-item grouping.
type Pallet struct {
	ID          string       `json:"id"`
	Status      PalletStatus `json:"status"`
	Transporter *string      `json:"transporter,omitempty"`
	CreatedAt   string       `json:"createdAt"`
	UpdatedAt   string       `json:"updatedAt"`
	OrderIDs    []string     `json:"orderIds"`
	MaxWeightKg float64      `json:"maxWeightKg"`
}

type PalletSummary struct {
	PalletID    string       `json:"pallet"`
	Status      PalletStatus `json:"status"`
	Lines       int          `json:"lines"`
	WeightKg    float64      `json:"weightKg"`
	MaxWeightKg float64      `json:"maxWeightKg"`
	Warn        bool         `json:"warn"`
	UpdatedAt   string       `json:"updatedAt"`
}

// RowError is a non-fatal per-row defect, advisory only.
type RowError struct {
	Index  int    `json:"idx"`
	Reason string `json:"reason"`
}

// OrderLine is one row of the strict order-import form.
type OrderLine struct {
	OrderID string  `json:"orderId"`
	SKU     string  `json:"sku"`
	Qty     float64 `json:"qty"`
	Weight  float64 `json:"weight"`
}

// Snapshot is the plain serializable session state consumed by the
// persistence layer. No callables, no cycles.
type Snapshot struct {
	Orders []Order               `json:"orders"`
	Rows   []LineItem            `json:"rows"`
	Meta   map[string]PalletMeta `json:"metaByPallet"`
}

func StringPtr(v string) *string { return &v }

func FloatPtr(v float64) *float64 { return &v }
