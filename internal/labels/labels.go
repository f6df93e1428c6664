package labels

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/jung-kurt/gofpdf/v2"

	"palletdesk/internal"
)

// qrPayload is the machine-readable block scanned at the dock.
type qrPayload struct {
	Pallet   string  `json:"pallet"`
	WeightKg float64 `json:"weightKg"`
}

const (
	topY        = 10.0
	blockHeight = 48.0
	maxY        = 260.0
)

// Render writes one label block per pallet to an A4 PDF: pallet id, total
// weight and a QR code encoding both. A new page starts when the next block
// would not fit. The summaries are consumed as a finished snapshot; nothing
// here mutates registry state.
func Render(pallets []internal.PalletSummary, outputPath string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	if len(pallets) == 0 {
		pdf.SetFont("Arial", "", 14)
		pdf.Text(10, 15, "No pallets to print.")
		return pdf.OutputFileAndClose(outputPath)
	}

	y := topY
	for i, p := range pallets {
		payload, err := json.Marshal(qrPayload{Pallet: p.PalletID, WeightKg: p.WeightKg})
		if err != nil {
			return err
		}
		img, err := qrPNG(string(payload))
		if err != nil {
			return fmt.Errorf("qr for pallet %s: %w", p.PalletID, err)
		}

		name := fmt.Sprintf("qr-%d", i)
		pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(img))

		pdf.SetFont("Arial", "", 14)
		pdf.Text(10, y, fmt.Sprintf("Pallet: %s", p.PalletID))
		pdf.Text(10, y+7, fmt.Sprintf("Weight (kg): %.2f", p.WeightKg))
		pdf.ImageOptions(name, 150, y-5, 40, 40, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")

		y += blockHeight
		if y > maxY && i < len(pallets)-1 {
			pdf.AddPage()
			y = topY
		}
	}

	return pdf.OutputFileAndClose(outputPath)
}

func qrPNG(payload string) ([]byte, error) {
	code, err := qr.Encode(payload, qr.M, qr.Auto)
	if err != nil {
		return nil, err
	}
	code, err = barcode.Scale(code, 200, 200)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, code); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
