package registry

import (
	"math"
	"testing"

	"palletdesk/internal"
)

func lookupFrom(weights map[string]float64) WeightLookup {
	return func(id string) (float64, bool) {
		w, ok := weights[id]
		return w, ok
	}
}

func line(orderID, pallet string, weight, qty float64) internal.LineItem {
	return internal.LineItem{
		OrderID:      orderID,
		PalletNumber: pallet,
		Weight:       weight,
		Unit:         "Kg",
		QTY:          qty,
		LineWeightKg: weight * qty,
	}
}

func TestEnsureMetaIdempotent(t *testing.T) {
	s := NewPallets(1000, nil)
	first := s.EnsureMeta("P1")
	if first.Status != internal.PalletOpen || first.CreatedAt == "" {
		t.Fatalf("meta: %+v", first)
	}

	s.SetTransporter("P1", "DHL")
	second := s.EnsureMeta("P1")
	if second.CreatedAt != first.CreatedAt {
		t.Fatalf("second EnsureMeta must not recreate: %+v vs %+v", first, second)
	}
	if second.Transporter == nil || *second.Transporter != "DHL" {
		t.Fatalf("meta: %+v", second)
	}
}

func TestAddThenRemoveOrders(t *testing.T) {
	s := NewPallets(1000, lookupFrom(map[string]float64{"A": 10, "B": 20}))

	if n := s.AddOrders("P1", []string{"A", "B"}); n != 2 {
		t.Fatalf("added=%d", n)
	}
	if n := s.RemoveOrders("P1", []string{"A"}); n != 1 {
		t.Fatalf("removed=%d", n)
	}

	p, ok := s.ByID("P1")
	if !ok {
		t.Fatal("missing pallet")
	}
	if len(p.OrderIDs) != 1 || p.OrderIDs[0] != "B" {
		t.Fatalf("orderIds=%v", p.OrderIDs)
	}

	// A's line stays in the session, just unassigned.
	unassigned := 0
	for _, r := range s.Rows() {
		if r.RowPalletID() == "" {
			unassigned++
		}
	}
	if unassigned != 1 {
		t.Fatalf("unassigned=%d", unassigned)
	}
}

func TestAddOrdersSynthesizesAndMoves(t *testing.T) {
	s := NewPallets(1000, lookupFrom(map[string]float64{"A": 10, "B": 20}))
	s.ReplaceAll([]internal.LineItem{line("A", "P1", 1, 1)})

	// A exists on P1 with a stale weight; B is unknown to the session.
	if n := s.AddOrders("P2", []string{"A", "B"}); n != 2 {
		t.Fatalf("n=%d", n)
	}

	rows := s.Rows()
	if len(rows) != 2 {
		t.Fatalf("len=%d", len(rows))
	}
	if rows[0].RowPalletID() != "P2" || rows[0].Weight != 10 {
		t.Fatalf("moved row must refresh weight: %+v", rows[0])
	}
	if rows[1].RowOrderID() != "B" || rows[1].Weight != 20 || rows[1].QTY != 1 {
		t.Fatalf("synthesized row: %+v", rows[1])
	}
}

func TestAddOrdersReopensPacked(t *testing.T) {
	s := NewPallets(1000, lookupFrom(map[string]float64{"A": 10, "B": 5}))
	s.AddOrders("P1", []string{"A"})
	if !s.Pack("P1") {
		t.Fatal("pack")
	}
	s.AddOrders("P1", []string{"B"})
	if got := s.EnsureMeta("P1").Status; got != internal.PalletOpen {
		t.Fatalf("status=%s", got)
	}
}

func TestPackRequiresLines(t *testing.T) {
	s := NewPallets(1000, nil)
	s.EnsureMeta("P1")
	if s.Pack("P1") {
		t.Fatal("pack of empty pallet must fail")
	}
}

func TestMarkShippedStrict(t *testing.T) {
	s := NewPallets(1000, lookupFrom(map[string]float64{"A": 600, "B": 600}))

	if s.MarkShipped("P0") {
		t.Fatal("empty pallet must not ship")
	}

	s.AddOrders("P1", []string{"A", "B"})
	if s.MarkShipped("P1") {
		t.Fatal("overweight pallet must not ship")
	}

	s.RemoveOrders("P1", []string{"B"})
	if !s.MarkShipped("P1") {
		t.Fatal("ship")
	}
	if got := s.EnsureMeta("P1").Status; got != internal.PalletShipped {
		t.Fatalf("status=%s", got)
	}
}

func TestShippedLock(t *testing.T) {
	s := NewPallets(1000, lookupFrom(map[string]float64{"A": 100, "B": 50}))
	s.AddOrders("P1", []string{"A"})
	if !s.MarkShipped("P1") {
		t.Fatal("ship")
	}

	if s.SetTransporter("P1", "DHL") {
		t.Fatal("transporter change on shipped pallet")
	}
	if s.SetMaxWeight("P1", 500) {
		t.Fatal("cap change on shipped pallet")
	}
	if n := s.AddOrders("P1", []string{"B"}); n != 0 {
		t.Fatalf("addOrders on shipped pallet: %d", n)
	}
	if n := s.RemoveOrders("P1", []string{"A"}); n != 0 {
		t.Fatalf("removeOrders on shipped pallet: %d", n)
	}
	if n := s.SplitOverMax("P1"); n != 0 {
		t.Fatalf("split on shipped pallet: %d", n)
	}

	// Weight sync bypasses the lock: shipped figures track reality.
	affected := s.OnOrderWeightChanged("A", 120)
	if len(affected) != 1 || affected[0] != "P1" {
		t.Fatalf("affected=%v", affected)
	}
	if got := s.Rows()[0].Weight; got != 120 {
		t.Fatalf("weight=%v", got)
	}

	// Reopen is the escape hatch, even from Shipped.
	s.Reopen("P1")
	if !s.SetTransporter("P1", "DHL") {
		t.Fatal("transporter after reopen")
	}
}

func TestSplitOverMax(t *testing.T) {
	s := NewPallets(1000, nil)
	s.ReplaceAll([]internal.LineItem{
		line("A", "P1", 400, 1),
		line("B", "P1", 400, 1),
		line("C", "P1", 400, 1),
	})

	moved := s.SplitOverMax("P1")
	if moved != 1 {
		t.Fatalf("moved=%d", moved)
	}

	byPallet := map[string]float64{}
	for _, r := range s.Rows() {
		byPallet[r.RowPalletID()] += r.LineWeightKg
	}
	if byPallet["P1"] != 800 {
		t.Fatalf("P1=%v", byPallet["P1"])
	}
	if byPallet["P1-S1"] != 400 {
		t.Fatalf("P1-S1=%v", byPallet["P1-S1"])
	}

	total := 0.0
	for _, w := range byPallet {
		total += w
	}
	if total != 1200 {
		t.Fatalf("weight not conserved: %v", total)
	}

	// The last-inserted line is the one peeled off.
	if s.Rows()[2].RowPalletID() != "P1-S1" {
		t.Fatalf("rows: %+v", s.Rows())
	}
}

func TestSplitOverMaxMultipleBuckets(t *testing.T) {
	s := NewPallets(1000, nil)
	s.ReplaceAll([]internal.LineItem{
		line("A", "P1", 900, 1),
		line("B", "P1", 900, 1),
		line("C", "P1", 900, 1),
	})

	moved := s.SplitOverMax("P1")
	if moved != 2 {
		t.Fatalf("moved=%d", moved)
	}

	byPallet := map[string]float64{}
	for _, r := range s.Rows() {
		byPallet[r.RowPalletID()] += r.LineWeightKg
	}
	// C fills S1 (900), B does not fit next to it, so B opens S2.
	if byPallet["P1"] != 900 || byPallet["P1-S1"] != 900 || byPallet["P1-S2"] != 900 {
		t.Fatalf("byPallet=%v", byPallet)
	}
}

func TestSplitInheritsMeta(t *testing.T) {
	s := NewPallets(1000, nil)
	s.ReplaceAll([]internal.LineItem{
		line("A", "P1", 300, 1),
		line("B", "P1", 300, 1),
	})
	s.SetTransporter("P1", "DHL")
	s.SetMaxWeight("P1", 500)

	if moved := s.SplitOverMax("P1"); moved != 1 {
		t.Fatalf("moved=%d", moved)
	}

	m := s.EnsureMeta("P1-S1")
	if m.Status != internal.PalletOpen {
		t.Fatalf("status=%s", m.Status)
	}
	if m.Transporter == nil || *m.Transporter != "DHL" {
		t.Fatalf("transporter=%v", m.Transporter)
	}
	if m.MaxWeightKg == nil || *m.MaxWeightKg != 500 {
		t.Fatalf("maxWeightKg=%v", m.MaxWeightKg)
	}
}

func TestSplitNoOpUnderCap(t *testing.T) {
	s := NewPallets(1000, nil)
	s.ReplaceAll([]internal.LineItem{line("A", "P1", 400, 1)})
	if moved := s.SplitOverMax("P1"); moved != 0 {
		t.Fatalf("moved=%d", moved)
	}
}

func TestOnOrderWeightChangedAcrossPallets(t *testing.T) {
	s := NewPallets(1000, nil)
	s.ReplaceAll([]internal.LineItem{
		line("A", "P1", 10, 2),
		line("A", "P2", 10, 1),
		line("B", "P1", 5, 1),
		line("A", "", 10, 1),
	})

	affected := s.OnOrderWeightChanged("A", 20)
	if len(affected) != 2 || affected[0] != "P1" || affected[1] != "P2" {
		t.Fatalf("affected=%v", affected)
	}

	rows := s.Rows()
	if rows[0].Weight != 20 || rows[0].LineWeightKg != 40 {
		t.Fatalf("row 0: %+v", rows[0])
	}
	if rows[1].LineWeightKg != 20 {
		t.Fatalf("row 1: %+v", rows[1])
	}
	if rows[2].Weight != 5 {
		t.Fatalf("other order touched: %+v", rows[2])
	}
	if rows[3].Weight != 20 {
		t.Fatalf("unassigned line must sync too: %+v", rows[3])
	}
}

func TestSummariesSortAndWarn(t *testing.T) {
	s := NewPallets(1000, nil)
	s.ReplaceAll([]internal.LineItem{
		line("A", "P1", 500, 1),
		line("B", "P2", 1200, 1),
		line("C", "P3", 700, 1),
	})
	s.EnsureMeta("P4") // metadata only, no lines yet

	sums := s.Summaries()
	if len(sums) != 4 {
		t.Fatalf("len=%d", len(sums))
	}
	if sums[0].PalletID != "P2" || !sums[0].Warn {
		t.Fatalf("overweight first: %+v", sums[0])
	}
	if sums[1].PalletID != "P3" || sums[2].PalletID != "P1" {
		t.Fatalf("descending by weight: %+v", sums)
	}
	if sums[3].PalletID != "P4" || sums[3].Lines != 0 || sums[3].WeightKg != 0 {
		t.Fatalf("meta-only pallet: %+v", sums[3])
	}
}

func TestSummariesRounding(t *testing.T) {
	s := NewPallets(1000, nil)
	s.ReplaceAll([]internal.LineItem{
		line("A", "P1", 0.1, 1),
		line("B", "P1", 0.2, 1),
	})
	sums := s.Summaries()
	if sums[0].WeightKg != 0.3 {
		t.Fatalf("weight=%v", sums[0].WeightKg)
	}
}

func TestQualityErrors(t *testing.T) {
	s := NewPallets(1000, lookupFrom(map[string]float64{"A": 1}))
	rows := []internal.LineItem{
		line("A", "P1", 10, 1),
		line("ZZZ", "P1", 5, 1),
	}
	rows[1].Unit = "lbs"
	s.ReplaceAll(rows)

	errs := s.QualityErrors()
	// Row 1: unit not Kg, and no order resolves the ZZZ join key.
	if len(errs) != 2 {
		t.Fatalf("errs=%v", errs)
	}
	for _, e := range errs {
		if e.Index != 1 {
			t.Fatalf("errs=%v", errs)
		}
	}
}

func TestReplaceAllNormalizes(t *testing.T) {
	s := NewPallets(1000, nil)
	s.ReplaceAll([]internal.LineItem{
		{OrderID: "A", PalletNumber: "P1", Weight: -5, QTY: 2, Unit: "kg."},
		{OrderID: "B", PalletNumber: "P1", Weight: math.NaN(), QTY: 1, Unit: ""},
	})

	rows := s.Rows()
	if rows[0].Weight != 0 || rows[0].LineWeightKg != 0 || rows[0].Unit != "Kg" {
		t.Fatalf("row 0: %+v", rows[0])
	}
	if rows[1].Weight != 0 || rows[1].Unit != "Kg" {
		t.Fatalf("row 1: %+v", rows[1])
	}
}

func TestPurgeEmptyMeta(t *testing.T) {
	s := NewPallets(1000, lookupFrom(map[string]float64{"A": 10}))
	s.EnsureMeta("P1")
	s.AddOrders("P2", []string{"A"})
	if !s.MarkShipped("P2") {
		t.Fatal("ship")
	}
	s.EnsureMeta("P3")

	if n := s.PurgeEmptyMeta(); n != 2 {
		t.Fatalf("purged=%d", n)
	}
	if _, ok := s.ByID("P2"); !ok {
		t.Fatal("pallet with lines must survive purge")
	}
}

func TestContainerWeights(t *testing.T) {
	s := NewPallets(1000, nil)
	rows := []internal.LineItem{
		line("A", "P1", 100, 1),
		line("B", "P2", 50, 2),
		line("C", "P3", 7, 1),
	}
	rows[0].ContainerNumber = "C-1"
	rows[1].ContainerNumber = "C-1"
	rows[2].ContainerNumber = ""
	s.ReplaceAll(rows)

	got := s.ContainerWeights()
	if len(got) != 1 || got["C-1"] != 200 {
		t.Fatalf("containers=%v", got)
	}
}

func TestEffectiveMaxFallback(t *testing.T) {
	s := NewPallets(800, nil)
	if s.EffectiveMax("P1") != 800 {
		t.Fatalf("default=%v", s.EffectiveMax("P1"))
	}
	s.SetMaxWeight("P1", 600)
	if s.EffectiveMax("P1") != 600 {
		t.Fatalf("override=%v", s.EffectiveMax("P1"))
	}
	s.SetMaxWeight("P1", 0) // clears back to default
	if s.EffectiveMax("P1") != 800 {
		t.Fatalf("cleared=%v", s.EffectiveMax("P1"))
	}
}
