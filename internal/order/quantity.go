package order

import (
	"strings"

	"github.com/shopspring/decimal"
)

// QuantityStep is the increment applied by Step.
var QuantityStep = decimal.RequireFromString("0.5")

// ParseDecimal reads operator input such as quantities, discounts and
// amounts, accepting either comma or dot as the decimal separator.
// Unparseable or non-finite input yields zero and the result is never
// negative.
func ParseDecimal(raw string) decimal.Decimal {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// QuantityIndex maps line keys to quantities independently of row position.
// Every write also updates the line itself so the two views never diverge.
type QuantityIndex struct {
	values map[LineKey]decimal.Decimal
}

// NewQuantityIndex constructs an empty index.
func NewQuantityIndex() *QuantityIndex {
	return &QuantityIndex{values: make(map[LineKey]decimal.Decimal)}
}

// Track seeds the index from the current lines of o, replacing any entries
// the order had before.
func (q *QuantityIndex) Track(o *Order) {
	q.ForgetOrder(o.Key)
	for i := range o.Lines {
		l := &o.Lines[i]
		if l.Quantity.IsNegative() {
			l.Quantity = decimal.Zero
		}
		q.values[o.LineKey(l.ID)] = l.Quantity
	}
}

// Get returns the indexed quantity.
func (q *QuantityIndex) Get(key LineKey) (decimal.Decimal, bool) {
	v, ok := q.values[key]
	return v, ok
}

// Set parses raw and writes the result to the index and the line.
func (q *QuantityIndex) Set(o *Order, itemKey, raw string) (decimal.Decimal, error) {
	return q.write(o, itemKey, ParseDecimal(raw))
}

// Step moves the quantity one QuantityStep up (dir > 0) or down (dir < 0),
// flooring at zero.
func (q *QuantityIndex) Step(o *Order, itemKey string, dir int) (decimal.Decimal, error) {
	line, ok := o.Line(itemKey)
	if !ok {
		return decimal.Zero, ErrLineNotFound
	}
	next := line.Quantity
	switch {
	case dir > 0:
		next = next.Add(QuantityStep)
	case dir < 0:
		next = next.Sub(QuantityStep)
	}
	if next.IsNegative() {
		next = decimal.Zero
	}
	return q.write(o, itemKey, next)
}

// Forget drops a single entry, typically after the line was removed.
func (q *QuantityIndex) Forget(key LineKey) {
	delete(q.values, key)
}

// ForgetOrder drops every entry that belongs to the order.
func (q *QuantityIndex) ForgetOrder(key Key) {
	for k := range q.values {
		if k.Order == key {
			delete(q.values, k)
		}
	}
}

func (q *QuantityIndex) write(o *Order, itemKey string, v decimal.Decimal) (decimal.Decimal, error) {
	line, ok := o.Line(itemKey)
	if !ok {
		return decimal.Zero, ErrLineNotFound
	}
	if v.IsNegative() {
		v = decimal.Zero
	}
	line.Quantity = v
	q.values[o.LineKey(itemKey)] = v
	return v, nil
}
