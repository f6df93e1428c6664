package registry

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"palletdesk/internal"
	"palletdesk/internal/util"
)

// WeightLookup resolves an order's current weight; ok=false when the order
// registry does not know the id.
type WeightLookup func(orderID string) (float64, bool)

// Pallets derives pallet groupings from line-items and tracks per-pallet
// lifecycle metadata. Structural mutation is locked once a pallet is Shipped;
// weight sync from the order registry stays open even then.
type Pallets struct {
	rows         []internal.LineItem
	meta         map[string]*internal.PalletMeta
	defaultMaxKg float64
	weightOf     WeightLookup
}

// NewPallets builds a registry with the given default weight cap and a
// read-only weight lookup into the order registry. The lookup may be nil;
// unknown weights then default to 0.
func NewPallets(defaultMaxKg float64, lookup WeightLookup) *Pallets {
	if defaultMaxKg <= 0 || math.IsNaN(defaultMaxKg) || math.IsInf(defaultMaxKg, 0) {
		defaultMaxKg = 1000
	}
	return &Pallets{
		meta:         map[string]*internal.PalletMeta{},
		defaultMaxKg: defaultMaxKg,
		weightOf:     lookup,
	}
}

func (s *Pallets) lookupWeight(orderID string) float64 {
	if s.weightOf == nil {
		return 0
	}
	w, ok := s.weightOf(orderID)
	if !ok {
		return 0
	}
	return util.Clamp0(w)
}

// ReplaceAll bulk-loads raw line-items, normalizing unit, weight and qty and
// recomputing line weights.
func (s *Pallets) ReplaceAll(rows []internal.LineItem) {
	s.rows = make([]internal.LineItem, len(rows))
	copy(s.rows, rows)
	s.normalizeRows()
}

// RestoreMeta bulk-loads pallet metadata from a snapshot.
func (s *Pallets) RestoreMeta(meta map[string]internal.PalletMeta) {
	s.meta = map[string]*internal.PalletMeta{}
	for id, m := range meta {
		cp := m
		s.meta[id] = &cp
	}
}

func (s *Pallets) normalizeRows() {
	for i := range s.rows {
		unit := util.NormalizeUnit(s.rows[i].Unit)
		if unit == "" {
			unit = util.CanonicalUnit
		}
		s.rows[i].Unit = unit
		s.rows[i].Weight = util.Clamp0(s.rows[i].Weight)
		s.rows[i].QTY = util.Clamp0(s.rows[i].QTY)
		s.rows[i].LineWeightKg = util.ComputeLineWeight(s.rows[i].Weight, s.rows[i].QTY)
	}
}

// EnsureMeta idempotently creates default metadata for a pallet id and
// returns the current record.
func (s *Pallets) EnsureMeta(id string) internal.PalletMeta {
	m := s.ensureMeta(id)
	return *m
}

func (s *Pallets) ensureMeta(id string) *internal.PalletMeta {
	if m, ok := s.meta[id]; ok {
		return m
	}
	now := nowStamp()
	m := &internal.PalletMeta{Status: internal.PalletOpen, CreatedAt: now, UpdatedAt: now}
	s.meta[id] = m
	return m
}

func (s *Pallets) touch(id string) {
	s.ensureMeta(id).UpdatedAt = nowStamp()
}

func (s *Pallets) isShipped(id string) bool {
	m, ok := s.meta[id]
	return ok && m.Status == internal.PalletShipped
}

// rowIndexesByPallet returns indexes of rows assigned to the pallet, in
// insertion order.
func (s *Pallets) rowIndexesByPallet(id string) []int {
	out := []int{}
	for i := range s.rows {
		if s.rows[i].RowPalletID() == id {
			out = append(out, i)
		}
	}
	return out
}

// AddOrders assigns the given order ids to a pallet. Ids already present as
// line-items anywhere are reassigned and their weight refreshed from the
// order registry; unseen ids get a synthesized line-item carrying the order's
// current weight (0 if unknown). No-op when the pallet is Shipped. Returns
// the count of lines created plus moved.
func (s *Pallets) AddOrders(id string, orderIDs []string) int {
	if id == "" || s.isShipped(id) {
		return 0
	}

	requested := map[string]struct{}{}
	for _, oid := range orderIDs {
		if oid != "" {
			requested[oid] = struct{}{}
		}
	}

	changed := 0
	seen := map[string]struct{}{}
	for i := range s.rows {
		oid := s.rows[i].RowOrderID()
		if _, want := requested[oid]; !want {
			continue
		}
		seen[oid] = struct{}{}
		w := s.lookupWeight(oid)
		s.rows[i].PalletNumber = id
		s.rows[i].Weight = w
		if s.rows[i].QTY <= 0 {
			s.rows[i].QTY = 1
		}
		s.rows[i].LineWeightKg = util.ComputeLineWeight(s.rows[i].Weight, s.rows[i].QTY)
		changed++
	}

	for _, oid := range orderIDs {
		if oid == "" {
			continue
		}
		if _, ok := seen[oid]; ok {
			continue
		}
		seen[oid] = struct{}{}
		w := s.lookupWeight(oid)
		s.rows = append(s.rows, internal.LineItem{
			OrderID:      oid,
			Weight:       w,
			Unit:         util.CanonicalUnit,
			QTY:          1,
			PalletNumber: id,
			LineWeightKg: util.ComputeLineWeight(w, 1),
		})
		changed++
	}

	if changed > 0 {
		m := s.ensureMeta(id)
		m.Status = internal.PalletOpen
		m.UpdatedAt = nowStamp()
	}
	return changed
}

// RemoveOrders unassigns matching line-items from the pallet (they stay in
// the session, unassigned). No-op when Shipped. The pallet drops back to
// Open, even when now empty.
func (s *Pallets) RemoveOrders(id string, orderIDs []string) int {
	if id == "" || s.isShipped(id) {
		return 0
	}

	set := map[string]struct{}{}
	for _, oid := range orderIDs {
		set[oid] = struct{}{}
	}

	removed := 0
	for i := range s.rows {
		if s.rows[i].RowPalletID() != id {
			continue
		}
		if _, ok := set[s.rows[i].RowOrderID()]; ok {
			s.rows[i].PalletNumber = ""
			removed++
		}
	}

	if removed > 0 {
		m := s.ensureMeta(id)
		m.Status = internal.PalletOpen
		m.UpdatedAt = nowStamp()
	}
	return removed
}

// Pack transitions Open -> Packed; requires at least one line-item and a
// pallet that is not Shipped.
func (s *Pallets) Pack(id string) bool {
	if s.isShipped(id) {
		return false
	}
	if len(s.rowIndexesByPallet(id)) == 0 {
		return false
	}
	m := s.ensureMeta(id)
	m.Status = internal.PalletPacked
	m.UpdatedAt = nowStamp()
	return true
}

// MarkShipped transitions a pallet to Shipped. Strict policy: the pallet
// must hold at least one line-item and its total weight must not exceed the
// effective cap. Returns false without transition otherwise.
func (s *Pallets) MarkShipped(id string) bool {
	if s.isShipped(id) {
		return false
	}
	idx := s.rowIndexesByPallet(id)
	if len(idx) == 0 {
		return false
	}
	if s.totalWeight(idx) > s.EffectiveMax(id) {
		return false
	}
	m := s.ensureMeta(id)
	m.Status = internal.PalletShipped
	m.UpdatedAt = nowStamp()
	return true
}

// Reopen forces the pallet back to Open from any state, Shipped included.
// Escape hatch for corrections.
func (s *Pallets) Reopen(id string) {
	m := s.ensureMeta(id)
	m.Status = internal.PalletOpen
	m.UpdatedAt = nowStamp()
}

// SetTransporter sets or clears (empty value) the transporter. No-op when
// Shipped.
func (s *Pallets) SetTransporter(id, transporter string) bool {
	if s.isShipped(id) {
		return false
	}
	m := s.ensureMeta(id)
	t := trimOrNil(transporter)
	m.Transporter = t
	m.UpdatedAt = nowStamp()
	return true
}

// SetMaxWeight overrides the pallet's weight cap. Non-finite or non-positive
// values clear the override back to the registry default. No-op when Shipped.
func (s *Pallets) SetMaxWeight(id string, kg float64) bool {
	if s.isShipped(id) {
		return false
	}
	m := s.ensureMeta(id)
	if kg > 0 && !math.IsNaN(kg) && !math.IsInf(kg, 0) {
		m.MaxWeightKg = internal.FloatPtr(kg)
	} else {
		m.MaxWeightKg = nil
	}
	m.UpdatedAt = nowStamp()
	return true
}

// EffectiveMax is the pallet's cap override when set, else the default.
func (s *Pallets) EffectiveMax(id string) float64 {
	if m, ok := s.meta[id]; ok && m.MaxWeightKg != nil {
		return *m.MaxWeightKg
	}
	return s.defaultMaxKg
}

func (s *Pallets) totalWeight(idx []int) float64 {
	total := 0.0
	for _, i := range idx {
		total += s.rows[i].LineWeightKg
	}
	return total
}

// SplitOverMax peels line-items off the tail of an overweight pallet into
// numbered overflow pallets ({id}-S1, {id}-S2, ...) until the original drops
// to its cap. Single greedy pass in reverse insertion order; deterministic,
// not optimal. Overflow pallets inherit transporter and cap override and
// start Open. No-op when the pallet is Shipped or within its cap. Returns
// the number of lines moved.
func (s *Pallets) SplitOverMax(id string) int {
	if id == "" || s.isShipped(id) {
		return 0
	}

	idx := s.rowIndexesByPallet(id)
	max := s.EffectiveMax(id)
	total := s.totalWeight(idx)
	if total <= max {
		return 0
	}

	src := s.meta[id]
	suffix := 1
	cur := 0.0
	overflow := fmt.Sprintf("%s-S%d", id, suffix)
	created := map[string]struct{}{}
	moved := 0

	for k := len(idx) - 1; k >= 0; k-- {
		if total <= max {
			break
		}
		i := idx[k]
		w := s.rows[i].LineWeightKg
		if cur+w > max {
			suffix++
			cur = 0
			overflow = fmt.Sprintf("%s-S%d", id, suffix)
		}
		s.rows[i].PalletNumber = overflow
		created[overflow] = struct{}{}
		cur += w
		total -= w
		moved++
	}

	for p := range created {
		m := s.ensureMeta(p)
		m.Status = internal.PalletOpen
		if src != nil {
			m.Transporter = src.Transporter
			m.MaxWeightKg = src.MaxWeightKg
		}
		m.UpdatedAt = nowStamp()
	}
	if moved > 0 {
		s.touch(id)
	}
	return moved
}

// OnOrderWeightChanged overwrites the weight of every line-item joined to the
// order and recomputes its line weight, touching each affected pallet.
// Shipped pallets are updated too: shipped weight figures must track reality;
// only structural changes are locked. Returns the distinct affected pallet
// ids.
func (s *Pallets) OnOrderWeightChanged(orderID string, newWeight float64) []string {
	if orderID == "" {
		return nil
	}
	w := util.Clamp0(newWeight)

	affected := []string{}
	seen := map[string]struct{}{}
	for i := range s.rows {
		if s.rows[i].RowOrderID() != orderID {
			continue
		}
		s.rows[i].Weight = w
		s.rows[i].LineWeightKg = util.ComputeLineWeight(w, s.rows[i].QTY)
		p := s.rows[i].RowPalletID()
		if p == "" {
			continue
		}
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			affected = append(affected, p)
		}
	}

	for _, p := range affected {
		s.touch(p)
	}
	return affected
}

// ByID composes the pallet view from metadata plus assigned rows. Returns
// ok=false when the id has neither metadata nor rows.
func (s *Pallets) ByID(id string) (internal.Pallet, bool) {
	meta, hasMeta := s.meta[id]
	idx := s.rowIndexesByPallet(id)
	if !hasMeta && len(idx) == 0 {
		return internal.Pallet{}, false
	}

	orderIDs := make([]string, 0, len(idx))
	for _, i := range idx {
		orderIDs = append(orderIDs, s.rows[i].RowOrderID())
	}

	p := internal.Pallet{
		ID:          id,
		Status:      derivedStatus(meta, len(idx)),
		OrderIDs:    orderIDs,
		MaxWeightKg: s.EffectiveMax(id),
	}
	if hasMeta {
		p.Transporter = meta.Transporter
		p.CreatedAt = meta.CreatedAt
		p.UpdatedAt = meta.UpdatedAt
	}
	return p, true
}

func derivedStatus(meta *internal.PalletMeta, lines int) internal.PalletStatus {
	if meta != nil {
		return meta.Status
	}
	if lines > 0 {
		return internal.PalletPacked
	}
	return internal.PalletOpen
}

// Summaries returns one row per pallet (metadata-only pallets included),
// overweight pallets first, then descending by weight.
func (s *Pallets) Summaries() []internal.PalletSummary {
	type group struct {
		lines  int
		weight float64
	}
	groups := map[string]*group{}
	order := []string{}
	for i := range s.rows {
		p := s.rows[i].RowPalletID()
		if p == "" {
			continue
		}
		g, ok := groups[p]
		if !ok {
			g = &group{}
			groups[p] = g
			order = append(order, p)
		}
		g.lines++
		g.weight += s.rows[i].LineWeightKg
	}
	for id := range s.meta {
		if _, ok := groups[id]; !ok {
			groups[id] = &group{}
			order = append(order, id)
		}
	}

	out := make([]internal.PalletSummary, 0, len(order))
	for _, id := range order {
		g := groups[id]
		max := s.EffectiveMax(id)
		sum := internal.PalletSummary{
			PalletID:    id,
			Status:      derivedStatus(s.meta[id], g.lines),
			Lines:       g.lines,
			WeightKg:    util.Round2(g.weight),
			MaxWeightKg: max,
			Warn:        g.weight > max,
		}
		if m, ok := s.meta[id]; ok {
			sum.UpdatedAt = m.UpdatedAt
		}
		out = append(out, sum)
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Warn != out[b].Warn {
			return out[a].Warn
		}
		return out[a].WeightKg > out[b].WeightKg
	})
	return out
}

// ContainerWeights sums line weights per container number. Rows without a
// container are skipped.
func (s *Pallets) ContainerWeights() map[string]float64 {
	out := map[string]float64{}
	for i := range s.rows {
		c := strings.TrimSpace(s.rows[i].ContainerNumber)
		if c == "" {
			continue
		}
		out[c] += s.rows[i].LineWeightKg
	}
	return out
}

// QualityErrors flags rows with non-finite weight/qty, a non-canonical unit,
// or a join key no order resolves to. Advisory only; never blocks operations.
func (s *Pallets) QualityErrors() []internal.RowError {
	out := []internal.RowError{}
	for i := range s.rows {
		r := s.rows[i]
		if math.IsNaN(r.Weight) || math.IsInf(r.Weight, 0) || math.IsNaN(r.QTY) || math.IsInf(r.QTY, 0) {
			out = append(out, internal.RowError{Index: i, Reason: "Missing weight/qty"})
		}
		if r.Unit != "" && r.Unit != util.CanonicalUnit {
			out = append(out, internal.RowError{Index: i, Reason: fmt.Sprintf("Unit not %s: %s", util.CanonicalUnit, r.Unit)})
		}
		if s.weightOf != nil {
			if _, ok := s.weightOf(r.RowOrderID()); !ok {
				out = append(out, internal.RowError{Index: i, Reason: fmt.Sprintf("Unknown order: %s", r.RowOrderID())})
			}
		}
	}
	return out
}

// PurgeEmptyMeta drops metadata of pallets that have no line-items and are
// not Shipped. Optional maintenance action; pallets are otherwise never
// deleted, only emptied.
func (s *Pallets) PurgeEmptyMeta() int {
	purged := 0
	for id, m := range s.meta {
		if m.Status == internal.PalletShipped {
			continue
		}
		if len(s.rowIndexesByPallet(id)) == 0 {
			delete(s.meta, id)
			purged++
		}
	}
	return purged
}

// Rows returns a copy of all line-items, assigned or not.
func (s *Pallets) Rows() []internal.LineItem {
	out := make([]internal.LineItem, len(s.rows))
	copy(out, s.rows)
	return out
}

// MetaSnapshot returns a plain copy of all pallet metadata.
func (s *Pallets) MetaSnapshot() map[string]internal.PalletMeta {
	out := make(map[string]internal.PalletMeta, len(s.meta))
	for id, m := range s.meta {
		out[id] = *m
	}
	return out
}

func trimOrNil(v string) *string {
	t := strings.TrimSpace(v)
	if t == "" {
		return nil
	}
	return internal.StringPtr(t)
}
