package lots

import (
	"github.com/shopspring/decimal"
)

// SelectedLot is one lot assigned to an allocation.
type SelectedLot struct {
	LotNo        string          `json:"Lot_No"`
	PO           string          `json:"PO"`
	PostingDate  string          `json:"Posting_Date"`
	SelectedQty  decimal.Decimal `json:"Selected_Qty"`
	AvailableQty decimal.Decimal `json:"Available_Qty"`
}

// Allocation pairs a sales order line with the lots chosen to fulfil it.
type Allocation struct {
	ItemNo         string          `json:"Item_No"`
	LineNo         string          `json:"Line_No"`
	LocationCode   string          `json:"Location_Code"`
	RequestedQty   decimal.Decimal `json:"Requested_Qty"`
	UnfulfilledQty decimal.Decimal `json:"Unfulfilled_Qty"`
	Lots           []SelectedLot   `json:"Selected_Lots"`
}

// SelectedTotal sums the selected quantity over every lot.
func (a Allocation) SelectedTotal() decimal.Decimal {
	return a.selectedExcept("")
}

func (a Allocation) selectedExcept(lotNo string) decimal.Decimal {
	total := decimal.Zero
	for _, l := range a.Lots {
		if lotNo != "" && l.LotNo == lotNo {
			continue
		}
		total = total.Add(l.SelectedQty)
	}
	return total
}

// Unfulfilled returns max(0, requested - selected).
func (a Allocation) Unfulfilled() decimal.Decimal {
	rest := a.RequestedQty.Sub(a.SelectedTotal())
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}

func (a Allocation) lotIndex(lotNo string) int {
	for i, l := range a.Lots {
		if l.LotNo == lotNo {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the allocation.
func (a Allocation) Clone() Allocation {
	out := a
	if a.Lots != nil {
		out.Lots = make([]SelectedLot, len(a.Lots))
		copy(out.Lots, a.Lots)
	}
	return out
}

// AvailableLot is a read-only inventory record that may be assigned.
type AvailableLot struct {
	LotNo        string          `json:"Lot_No"`
	PO           string          `json:"PO_No"`
	PostingDate  string          `json:"Posting_Date"`
	AvailableQty decimal.Decimal `json:"Available_Qty"`
}

// LotList is the catalog of available lots for one sales order line.
type LotList struct {
	ItemNo       string          `json:"Item_No"`
	LineNo       string          `json:"Line_No"`
	LocationCode string          `json:"Location_Code"`
	Quantity     decimal.Decimal `json:"Quantity"`
	Records      []AvailableLot  `json:"Lot_Records"`
}

// CloneAllocations deep-copies a slice of allocations.
func CloneAllocations(in []Allocation) []Allocation {
	if in == nil {
		return nil
	}
	out := make([]Allocation, len(in))
	for i, a := range in {
		out[i] = a.Clone()
	}
	return out
}

func cloneLists(in []LotList) []LotList {
	if in == nil {
		return nil
	}
	out := make([]LotList, len(in))
	for i, l := range in {
		out[i] = l
		if l.Records != nil {
			out[i].Records = make([]AvailableLot, len(l.Records))
			copy(out[i].Records, l.Records)
		}
	}
	return out
}
