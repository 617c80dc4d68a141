package lots

import (
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var poPattern = regexp.MustCompile(`#([^-\s#/]+)-`)

// ExtractPO returns the purchase order embedded in a lot number such as
// "L1#24060015-1520", or an empty string.
func ExtractPO(lotNo string) string {
	m := poPattern.FindStringSubmatch(lotNo)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// Availability is the quantity still free on a lot. Reservation entries are
// negative, so reserved is added to the remaining quantity.
func Availability(remaining, reserved decimal.Decimal) decimal.Decimal {
	return remaining.Add(reserved).Round(2)
}

type datedLot struct {
	AvailableLot
	date  time.Time
	valid bool
}

func (d datedLot) before(o datedLot) bool {
	switch {
	case d.valid && o.valid:
		return d.date.Before(o.date)
	case d.valid != o.valid:
		return d.valid
	}
	return false
}

func parsePostingDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) >= 10 {
		if t, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// AutoAllocate proposes allocations in FIFO order. Lots are grouped by PO,
// each group is sorted by posting date and groups are consumed in order of
// their earliest posting date. Lots with an unparseable date go last.
func AutoAllocate(lists []LotList) []Allocation {
	out := make([]Allocation, 0, len(lists))
	for _, list := range lists {
		out = append(out, allocateLine(list))
	}
	return out
}

func allocateLine(list LotList) Allocation {
	var poOrder []string
	groups := make(map[string][]datedLot)
	for _, rec := range list.Records {
		if rec.PO == "" {
			rec.PO = ExtractPO(rec.LotNo)
		}
		t, ok := parsePostingDate(rec.PostingDate)
		if _, seen := groups[rec.PO]; !seen {
			poOrder = append(poOrder, rec.PO)
		}
		groups[rec.PO] = append(groups[rec.PO], datedLot{AvailableLot: rec, date: t, valid: ok})
	}
	for _, po := range poOrder {
		slices.SortStableFunc(groups[po], func(a, b datedLot) int {
			switch {
			case a.before(b):
				return -1
			case b.before(a):
				return 1
			}
			return 0
		})
	}
	slices.SortStableFunc(poOrder, func(a, b string) int {
		first, second := groups[a][0], groups[b][0]
		switch {
		case first.before(second):
			return -1
		case second.before(first):
			return 1
		}
		return 0
	})

	alloc := Allocation{
		ItemNo:       list.ItemNo,
		LineNo:       list.LineNo,
		LocationCode: list.LocationCode,
		RequestedQty: list.Quantity,
		Lots:         []SelectedLot{},
	}
	need := list.Quantity
	for _, po := range poOrder {
		for _, lot := range groups[po] {
			if !need.IsPositive() {
				break
			}
			take := decimal.Min(lot.AvailableQty, need)
			if !take.IsPositive() {
				continue
			}
			date := lot.PostingDate
			if lot.valid {
				date = lot.date.Format("2006-01-02")
			}
			alloc.Lots = append(alloc.Lots, SelectedLot{
				LotNo:        lot.LotNo,
				PO:           lot.PO,
				PostingDate:  date,
				SelectedQty:  take.Round(4),
				AvailableQty: lot.AvailableQty,
			})
			need = need.Sub(take)
		}
	}
	if need.IsNegative() {
		need = decimal.Zero
	}
	alloc.UnfulfilledQty = need.Round(4)
	return alloc
}
