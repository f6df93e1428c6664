package labels

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"palletdesk/internal"
)

func TestRender(t *testing.T) {
	out := filepath.Join(t.TempDir(), "labels.pdf")

	pallets := []internal.PalletSummary{
		{PalletID: "P1", Status: internal.PalletPacked, Lines: 3, WeightKg: 812.5, MaxWeightKg: 1000},
		{PalletID: "P2", Status: internal.PalletOpen, Lines: 1, WeightKg: 40, MaxWeightKg: 1000},
	}

	if err := Render(pallets, out); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(out)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() == 0 {
		t.Fatal("empty pdf")
	}
}

func TestRenderEmpty(t *testing.T) {
	out := filepath.Join(t.TempDir(), "empty.pdf")
	if err := Render(nil, out); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatal(err)
	}
}

func TestRenderManyPages(t *testing.T) {
	out := filepath.Join(t.TempDir(), "many.pdf")

	pallets := make([]internal.PalletSummary, 12)
	for i := range pallets {
		pallets[i] = internal.PalletSummary{
			PalletID: fmt.Sprintf("P%d", i+1),
			Status:   internal.PalletOpen,
			WeightKg: float64(i) * 10,
		}
	}

	if err := Render(pallets, out); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatal(err)
	}
}
