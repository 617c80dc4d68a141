package checkout

import (
	"strings"

	"github.com/noah-isme/order-desk/internal/lots"
)

// LotsInput is the snapshot needed to build an allocate-lots payload.
type LotsInput struct {
	Company      string
	SalesOrderNo string
	Allocations  []lots.Allocation
}

// PayloadLot is one selected lot on the wire.
type PayloadLot struct {
	LotNo        string  `json:"Lot_No"`
	PO           string  `json:"PO"`
	PostingDate  string  `json:"Posting_Date"`
	SelectedQty  float64 `json:"Selected_Qty"`
	AvailableQty float64 `json:"Available_Qty,omitempty"`
}

// PayloadAllocation mirrors lots.Allocation on the wire.
type PayloadAllocation struct {
	ItemNo         string       `json:"Item_No"`
	LineNo         string       `json:"Line_No"`
	LocationCode   string       `json:"Location_Code"`
	RequestedQty   float64      `json:"Requested_Qty"`
	UnfulfilledQty float64      `json:"Unfulfilled_Qty"`
	Lots           []PayloadLot `json:"Selected_Lots"`
}

// LotsPayload is the allocate-lots request.
type LotsPayload struct {
	Company      string              `json:"company_name"`
	SalesOrderNo string              `json:"sales_order_no"`
	Allocations  []PayloadAllocation `json:"selected_lots"`
}

// BuildLots validates and serializes the allocation store for submission.
func BuildLots(in LotsInput) (LotsPayload, error) {
	if strings.TrimSpace(in.Company) == "" {
		return LotsPayload{}, invalid("company", "Please select a company.")
	}
	if strings.TrimSpace(in.SalesOrderNo) == "" {
		return LotsPayload{}, invalid("sales_order_no", "Sales order has not been created yet.")
	}
	selected := false
	for _, a := range in.Allocations {
		if len(a.Lots) > 0 {
			selected = true
			break
		}
	}
	if !selected {
		return LotsPayload{}, invalid("selected_lots", "Please select at least one lot.")
	}

	out := LotsPayload{
		Company:      strings.TrimSpace(in.Company),
		SalesOrderNo: strings.TrimSpace(in.SalesOrderNo),
		Allocations:  make([]PayloadAllocation, 0, len(in.Allocations)),
	}
	for _, a := range in.Allocations {
		pa := PayloadAllocation{
			ItemNo:         a.ItemNo,
			LineNo:         a.LineNo,
			LocationCode:   a.LocationCode,
			RequestedQty:   a.RequestedQty.InexactFloat64(),
			UnfulfilledQty: a.Unfulfilled().InexactFloat64(),
			Lots:           make([]PayloadLot, 0, len(a.Lots)),
		}
		for _, l := range a.Lots {
			pa.Lots = append(pa.Lots, PayloadLot{
				LotNo:        l.LotNo,
				PO:           l.PO,
				PostingDate:  l.PostingDate,
				SelectedQty:  l.SelectedQty.InexactFloat64(),
				AvailableQty: l.AvailableQty.InexactFloat64(),
			})
		}
		out.Allocations = append(out.Allocations, pa)
	}
	return out, nil
}
