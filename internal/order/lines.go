package order

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrLineNotFound is returned when no line carries the requested item key.
	ErrLineNotFound = errors.New("line not found")
	// ErrLastItem guards against emptying an order of real items.
	ErrLastItem = errors.New("cannot remove the last remaining item")
)

// AddLine appends an empty item row with a fresh stable id and quantity 1.
func AddLine(o *Order, idx *QuantityIndex) Line {
	line := Line{
		ID:       o.newLineID(),
		Quantity: decimal.NewFromInt(1),
	}
	o.Lines = append(o.Lines, line)
	idx.values[o.LineKey(line.ID)] = line.Quantity
	return line
}

// RemoveLine deletes a line by item key. Removing the last non-courier line
// is refused with ErrLastItem and leaves the order untouched.
func RemoveLine(o *Order, idx *QuantityIndex, itemKey string) (Line, error) {
	pos := o.LineIndex(itemKey)
	if pos < 0 {
		return Line{}, ErrLineNotFound
	}
	removed := o.Lines[pos]
	if !removed.Courier && o.RealLineCount() <= 1 {
		return Line{}, ErrLastItem
	}
	o.Lines = append(o.Lines[:pos:pos], o.Lines[pos+1:]...)
	idx.Forget(o.LineKey(itemKey))
	return removed, nil
}
