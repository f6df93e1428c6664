package registry

import (
	"sort"
	"time"

	"palletdesk/internal"
	"palletdesk/internal/util"
)

// WeightListener receives order weight changes so pallet line-items can be
// kept in sync. The call is fire-and-forget from the order side: a nil or
// failing listener never surfaces to the order mutation.
type WeightListener func(orderID string, weightKg float64)

// Orders is the authoritative registry of order entities, one per orderId.
type Orders struct {
	orders      []internal.Order
	index       map[string]int
	lastRemoved []string
	onWeight    WeightListener
}

func NewOrders() *Orders {
	return &Orders{index: map[string]int{}}
}

// SetWeightListener wires the pallet-side propagation. May be left unset in
// initialization orders where the pallet registry does not exist yet.
func (s *Orders) SetWeightListener(fn WeightListener) {
	s.onWeight = fn
}

func nowStamp() string {
	return time.Now().Format(time.RFC3339)
}

// ReplaceAll bulk-loads the registry, clamping weights and defaulting the
// soft-delete marker to active unless the row carries one.
func (s *Orders) ReplaceAll(rows []internal.Order) {
	s.orders = make([]internal.Order, 0, len(rows))
	s.index = map[string]int{}
	s.lastRemoved = nil
	for _, r := range rows {
		if _, seen := s.index[r.OrderID]; seen {
			continue
		}
		r.WeightKg = util.Clamp0(r.WeightKg)
		s.index[r.OrderID] = len(s.orders)
		s.orders = append(s.orders, r)
	}
}

// OrderUpdate is an upsert payload; nil fields leave the existing value
// untouched. DeletedAt is only applied when explicitly provided, so an
// upsert never resurrects or re-deletes an order by accident.
type OrderUpdate struct {
	OrderID      string
	Customer     *string
	Status       *internal.OrderStatus
	Transporter  *string
	ParcelNo     *string
	DeliveryDate *string
	WeightKg     *float64
	DeletedAt    *string
}

// Upsert inserts or merges one order and notifies the weight listener when
// the weight changed.
func (s *Orders) Upsert(u OrderUpdate) {
	if u.OrderID == "" {
		return
	}

	i, exists := s.index[u.OrderID]
	if !exists {
		o := internal.Order{OrderID: u.OrderID, Status: internal.OrderPending}
		applyUpdate(&o, u)
		s.index[u.OrderID] = len(s.orders)
		s.orders = append(s.orders, o)
		if u.WeightKg != nil && s.onWeight != nil {
			s.onWeight(o.OrderID, o.WeightKg)
		}
		return
	}

	applyUpdate(&s.orders[i], u)
	if u.WeightKg != nil && s.onWeight != nil {
		s.onWeight(u.OrderID, s.orders[i].WeightKg)
	}
}

func applyUpdate(o *internal.Order, u OrderUpdate) {
	if u.Customer != nil {
		o.Customer = *u.Customer
	}
	if u.Status != nil {
		o.Status = *u.Status
	}
	if u.Transporter != nil {
		o.Transporter = u.Transporter
	}
	if u.ParcelNo != nil {
		o.ParcelNo = u.ParcelNo
	}
	if u.DeliveryDate != nil {
		o.DeliveryDate = u.DeliveryDate
	}
	if u.WeightKg != nil {
		o.WeightKg = util.Clamp0(*u.WeightKg)
	}
	if u.DeletedAt != nil {
		if *u.DeletedAt == "" {
			o.DeletedAt = nil
		} else {
			o.DeletedAt = u.DeletedAt
		}
	}
}

// MarkAsShipped transitions the given orders to Shipped; the delivery date is
// set only where not already present.
func (s *Orders) MarkAsShipped(ids []string, deliveredOn string) int {
	set := map[string]struct{}{}
	for _, id := range ids {
		set[id] = struct{}{}
	}
	changed := 0
	for i := range s.orders {
		if _, ok := set[s.orders[i].OrderID]; !ok {
			continue
		}
		s.orders[i].Status = internal.OrderShipped
		if s.orders[i].DeliveryDate == nil && deliveredOn != "" {
			s.orders[i].DeliveryDate = internal.StringPtr(deliveredOn)
		}
		changed++
	}
	return changed
}

// SoftDelete marks one order deleted; reversible via Restore or UndoDelete.
func (s *Orders) SoftDelete(id string) bool {
	i, ok := s.index[id]
	if !ok || s.orders[i].DeletedAt != nil {
		return false
	}
	s.orders[i].DeletedAt = internal.StringPtr(nowStamp())
	s.lastRemoved = []string{id}
	return true
}

// SoftDeleteMany marks a batch deleted and remembers it for UndoDelete.
func (s *Orders) SoftDeleteMany(ids []string) int {
	removed := []string{}
	for _, id := range ids {
		i, ok := s.index[id]
		if !ok || s.orders[i].DeletedAt != nil {
			continue
		}
		s.orders[i].DeletedAt = internal.StringPtr(nowStamp())
		removed = append(removed, id)
	}
	if len(removed) > 0 {
		s.lastRemoved = removed
	}
	return len(removed)
}

// Restore clears the soft-delete marker of one order.
func (s *Orders) Restore(id string) bool {
	i, ok := s.index[id]
	if !ok || s.orders[i].DeletedAt == nil {
		return false
	}
	s.orders[i].DeletedAt = nil
	return true
}

// UndoDelete restores the last soft-delete batch.
func (s *Orders) UndoDelete() int {
	restored := 0
	for _, id := range s.lastRemoved {
		if s.Restore(id) {
			restored++
		}
	}
	s.lastRemoved = nil
	return restored
}

// HardDeleteByIDs removes orders permanently. Pallet line-items keeping the
// join key are left as-is; the pallet quality check reports them.
func (s *Orders) HardDeleteByIDs(ids []string) int {
	set := map[string]struct{}{}
	for _, id := range ids {
		set[id] = struct{}{}
	}
	kept := s.orders[:0]
	removed := 0
	for _, o := range s.orders {
		if _, ok := set[o.OrderID]; ok {
			removed++
			continue
		}
		kept = append(kept, o)
	}
	s.orders = kept
	s.index = map[string]int{}
	for i, o := range s.orders {
		s.index[o.OrderID] = i
	}
	s.lastRemoved = nil
	return removed
}

func (s *Orders) Get(id string) (internal.Order, bool) {
	i, ok := s.index[id]
	if !ok {
		return internal.Order{}, false
	}
	return s.orders[i], true
}

// WeightOf is the read-only lookup capability handed to the pallet registry.
func (s *Orders) WeightOf(id string) (float64, bool) {
	i, ok := s.index[id]
	if !ok {
		return 0, false
	}
	return s.orders[i].WeightKg, true
}

// Active returns the non-deleted subset in insertion order.
func (s *Orders) Active() []internal.Order {
	out := []internal.Order{}
	for _, o := range s.orders {
		if o.DeletedAt == nil {
			out = append(out, o)
		}
	}
	return out
}

// Deleted returns the soft-deleted subset.
func (s *Orders) Deleted() []internal.Order {
	out := []internal.Order{}
	for _, o := range s.orders {
		if o.DeletedAt != nil {
			out = append(out, o)
		}
	}
	return out
}

func (s *Orders) Count() int {
	return len(s.Active())
}

func (s *Orders) CountByStatus(status internal.OrderStatus) int {
	n := 0
	for _, o := range s.orders {
		if o.DeletedAt == nil && o.Status == status {
			n++
		}
	}
	return n
}

// Pending lists active orders still awaiting packing.
func (s *Orders) Pending() []internal.Order {
	out := []internal.Order{}
	for _, o := range s.orders {
		if o.DeletedAt == nil && o.Status == internal.OrderPending {
			out = append(out, o)
		}
	}
	return out
}

// TotalWeight sums active order weights.
func (s *Orders) TotalWeight() float64 {
	total := 0.0
	for _, o := range s.orders {
		if o.DeletedAt == nil {
			total += util.Clamp0(o.WeightKg)
		}
	}
	return total
}

// ParcelNos returns the distinct non-empty parcel numbers of active orders,
// sorted for stable output.
func (s *Orders) ParcelNos() []string {
	set := map[string]struct{}{}
	for _, o := range s.orders {
		if o.DeletedAt != nil || o.ParcelNo == nil {
			continue
		}
		if p := *o.ParcelNo; p != "" {
			set[p] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// All returns every order, deleted included, for snapshotting.
func (s *Orders) All() []internal.Order {
	out := make([]internal.Order, len(s.orders))
	copy(out, s.orders)
	return out
}
