package order

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CourierThreshold is the real quantity at or below which a courier fee line
// is attached to the order.
var CourierThreshold = decimal.NewFromInt(2)

const defaultCourierName = "Courier charges"

// Courier describes the configured courier fee item for a company.
type Courier struct {
	Item *ItemRef
	Fee  *decimal.Decimal
}

// Configured reports whether a fee rate is set. Without one the courier
// manager never touches the line list.
func (c Courier) Configured() bool {
	return c.Fee != nil
}

// ItemNumber returns the configured courier item number, if any.
func (c Courier) ItemNumber() string {
	if c.Item == nil {
		return ""
	}
	return strings.TrimSpace(c.Item.Number)
}

// RealQuantity sums the quantities of every non-courier line.
func RealQuantity(o *Order) decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.Lines {
		if l.Courier {
			continue
		}
		total = total.Add(l.Quantity)
	}
	return total
}

// RecomputeCourierLine ensures exactly one courier line exists when the real
// quantity is at or below CourierThreshold and none exists above it. It
// reports whether the line list changed.
func RecomputeCourierLine(o *Order, idx *QuantityIndex, c Courier) bool {
	if !c.Configured() {
		return false
	}
	if RealQuantity(o).GreaterThan(CourierThreshold) {
		return removeCourierLines(o, idx, 0)
	}
	count := 0
	for _, l := range o.Lines {
		if l.Courier {
			count++
		}
	}
	switch {
	case count == 0:
		line := Line{
			ID:       courierLineID(o),
			Name:     courierName(c),
			Quantity: decimal.NewFromInt(1),
			Courier:  true,
		}
		if c.Item != nil {
			item := *c.Item
			line.Item = &item
		}
		o.Lines = append(o.Lines, line)
		idx.values[o.LineKey(line.ID)] = line.Quantity
		return true
	case count > 1:
		return removeCourierLines(o, idx, 1)
	}
	return false
}

// removeCourierLines drops courier lines beyond the first keep occurrences.
func removeCourierLines(o *Order, idx *QuantityIndex, keep int) bool {
	changed := false
	kept := 0
	out := o.Lines[:0]
	for _, l := range o.Lines {
		if l.Courier {
			if kept < keep {
				kept++
				out = append(out, l)
				continue
			}
			idx.Forget(o.LineKey(l.ID))
			changed = true
			continue
		}
		out = append(out, l)
	}
	o.Lines = out
	return changed
}

func courierLineID(o *Order) string {
	id := string(o.Key) + "-courier"
	if o.LineIndex(id) < 0 {
		return id
	}
	return o.newLineID()
}

func courierName(c Courier) string {
	if c.Item != nil && strings.TrimSpace(c.Item.DisplayName) != "" {
		return c.Item.DisplayName
	}
	return defaultCourierName
}
