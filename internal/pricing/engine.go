package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/order-desk/internal/order"
)

var hundred = decimal.NewFromInt(100)

// Item describes a line used for totals calculation.
type Item struct {
	Qty             decimal.Decimal
	UnitPrice       decimal.Decimal
	DiscountPercent decimal.Decimal
	Courier         bool
}

// Totals aggregates computed line-level pricing components.
type Totals struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	TotalDiscount decimal.Decimal `json:"totalDiscount"`
	NetTotal      decimal.Decimal `json:"netTotal"`
}

// Summary adds the order-level discount on top of Totals.
type Summary struct {
	Totals
	OrderDiscount decimal.Decimal `json:"orderDiscount"`
	FinalTotal    decimal.Decimal `json:"finalTotal"`
}

// ComputeTotals sums base, discount and net over lines with a positive
// quantity. Courier lines never carry a discount.
func ComputeTotals(items []Item) Totals {
	t := Totals{Subtotal: decimal.Zero, TotalDiscount: decimal.Zero, NetTotal: decimal.Zero}
	for _, it := range items {
		if !it.Qty.IsPositive() {
			continue
		}
		base := it.UnitPrice.Mul(it.Qty)
		discount := decimal.Zero
		if !it.Courier && it.DiscountPercent.IsPositive() {
			discount = base.Mul(it.DiscountPercent).Div(hundred)
		}
		t.Subtotal = t.Subtotal.Add(base)
		t.TotalDiscount = t.TotalDiscount.Add(discount)
		t.NetTotal = t.NetTotal.Add(base.Sub(discount))
	}
	return t
}

// ApplyOrderDiscount clamps the requested order discount to [0, net] and
// returns it together with the final total.
func ApplyOrderDiscount(net decimal.Decimal, raw string) (decimal.Decimal, decimal.Decimal) {
	d := order.ParseDecimal(raw)
	if net.IsNegative() {
		net = decimal.Zero
	}
	if d.GreaterThan(net) {
		d = net
	}
	return d, net.Sub(d)
}

// Compute returns the full summary for a set of lines and a raw order discount.
func Compute(items []Item, orderDiscount string) Summary {
	t := ComputeTotals(items)
	d, final := ApplyOrderDiscount(t.NetTotal, orderDiscount)
	return Summary{Totals: t, OrderDiscount: d, FinalTotal: final}
}
