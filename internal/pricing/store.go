package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/order-desk/internal/order"
)

// LinePrice is a pricing result tagged with the item number it was fetched for.
type LinePrice struct {
	ItemNo            string          `json:"itemNo"`
	UnitPrice         decimal.Decimal `json:"unitPrice"`
	UnitOfMeasureCode string          `json:"unitOfMeasureCode"`
}

// PriceStore keeps the latest fetched price per line.
type PriceStore struct {
	entries map[order.LineKey]LinePrice
}

// NewPriceStore constructs an empty store.
func NewPriceStore() *PriceStore {
	return &PriceStore{entries: make(map[order.LineKey]LinePrice)}
}

// Put records a fetched price. Results for a different item than the one
// currently selected are stored but never read back by Lookup.
func (s *PriceStore) Put(key order.LineKey, p LinePrice) {
	p.ItemNo = strings.TrimSpace(p.ItemNo)
	s.entries[key] = p
}

// Lookup returns the stored price only when its tag matches itemNo.
func (s *PriceStore) Lookup(key order.LineKey, itemNo string) (LinePrice, bool) {
	p, ok := s.entries[key]
	if !ok || itemNo == "" || p.ItemNo != strings.TrimSpace(itemNo) {
		return LinePrice{}, false
	}
	return p, true
}

// NeedsFetch reports whether a price must be requested for itemNo.
func (s *PriceStore) NeedsFetch(key order.LineKey, itemNo string) bool {
	if strings.TrimSpace(itemNo) == "" {
		return false
	}
	_, ok := s.Lookup(key, itemNo)
	return !ok
}

// Forget drops the entry of a removed line.
func (s *PriceStore) Forget(key order.LineKey) {
	delete(s.entries, key)
}

// ForgetOrder drops every entry that belongs to the order.
func (s *PriceStore) ForgetOrder(k order.Key) {
	for key := range s.entries {
		if key.Order == k {
			delete(s.entries, key)
		}
	}
}

// DiscountStore holds per-line discount percentages.
type DiscountStore struct {
	values map[order.LineKey]decimal.Decimal
}

// NewDiscountStore constructs an empty store.
func NewDiscountStore() *DiscountStore {
	return &DiscountStore{values: make(map[order.LineKey]decimal.Decimal)}
}

// Set parses raw and stores it clamped to >= 0.
func (s *DiscountStore) Set(key order.LineKey, raw string) decimal.Decimal {
	v := order.ParseDecimal(raw)
	s.values[key] = v
	return v
}

// Get returns the stored percent, zero when absent.
func (s *DiscountStore) Get(key order.LineKey) decimal.Decimal {
	if v, ok := s.values[key]; ok {
		return v
	}
	return decimal.Zero
}

// Forget drops the entry of a removed line.
func (s *DiscountStore) Forget(key order.LineKey) {
	delete(s.values, key)
}

// ForgetOrder drops every entry that belongs to the order.
func (s *DiscountStore) ForgetOrder(k order.Key) {
	for key := range s.values {
		if key.Order == k {
			delete(s.values, key)
		}
	}
}

// Snapshot copies every entry of the order.
func (s *DiscountStore) Snapshot(k order.Key) map[order.LineKey]decimal.Decimal {
	out := make(map[order.LineKey]decimal.Decimal)
	for key, v := range s.values {
		if key.Order == k {
			out[key] = v
		}
	}
	return out
}

// Restore replaces the order's entries with a previous snapshot.
func (s *DiscountStore) Restore(k order.Key, snap map[order.LineKey]decimal.Decimal) {
	s.ForgetOrder(k)
	for key, v := range snap {
		s.values[key] = v
	}
}

// EffectiveUnitPrice resolves the price used for totals: a positive fetched
// price, else the resolved item's own price. The courier fee overrides both
// on the courier line.
func EffectiveUnitPrice(line order.Line, fetched *LinePrice, courierFee *decimal.Decimal) decimal.Decimal {
	if line.Courier && courierFee != nil {
		return *courierFee
	}
	if fetched != nil && fetched.UnitPrice.IsPositive() {
		return fetched.UnitPrice
	}
	if line.Item != nil {
		return line.Item.UnitPrice
	}
	return decimal.Zero
}

// Items builds the totals input for an order from the stores.
func Items(o *order.Order, prices *PriceStore, discounts *DiscountStore, courierFee *decimal.Decimal) []Item {
	out := make([]Item, 0, len(o.Lines))
	for _, l := range o.Lines {
		key := o.LineKey(l.ID)
		var fetched *LinePrice
		if p, ok := prices.Lookup(key, l.ItemNumber()); ok {
			fetched = &p
		}
		it := Item{
			Qty:       l.Quantity,
			UnitPrice: EffectiveUnitPrice(l, fetched, courierFee),
			Courier:   l.Courier,
		}
		if !l.Courier {
			it.DiscountPercent = discounts.Get(key)
		}
		out = append(out, it)
	}
	return out
}
