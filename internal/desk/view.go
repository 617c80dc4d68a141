package desk

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/order-desk/internal/checkout"
	"github.com/noah-isme/order-desk/internal/lots"
	"github.com/noah-isme/order-desk/internal/order"
	"github.com/noah-isme/order-desk/internal/pricing"
	"github.com/noah-isme/order-desk/internal/shipping"
)

// LineView is a line with its effective price and discount.
type LineView struct {
	order.Line
	UnitPrice       decimal.Decimal `json:"unitPrice"`
	UnitOfMeasure   string          `json:"unitOfMeasureCode,omitempty"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	PriceFetched    bool            `json:"priceFetched"`
}

// OrderView is the read model of one order.
type OrderView struct {
	Key                order.Key                `json:"key"`
	ExternalDocNo      string                   `json:"externalDocumentNumber"`
	CustomerName       string                   `json:"customerName"`
	Customer           *order.Party             `json:"customer,omitempty"`
	CustomerCandidates []order.Candidate        `json:"customerCandidates,omitempty"`
	Lines              []LineView               `json:"lines"`
	ShippingAddress    string                   `json:"shippingAddress,omitempty"`
	BillingAddress     string                   `json:"billingAddress,omitempty"`
	Notes              string                   `json:"notes,omitempty"`
	Comment            string                   `json:"comment,omitempty"`
	ShippingMethodID   string                   `json:"shippingMethodId,omitempty"`
	ShippingAgentCode  string                   `json:"shippingAgentCode,omitempty"`
	ShipTo             checkout.ShipToSelection `json:"shipTo"`
	OrderDiscountInput string                   `json:"orderDiscountInput,omitempty"`
	Totals             pricing.Summary          `json:"totals"`
	Submission         Submission               `json:"submission"`
}

// CourierView describes the courier configuration of the selected company.
type CourierView struct {
	Item *order.ItemRef   `json:"item,omitempty"`
	Fee  *decimal.Decimal `json:"fee,omitempty"`
}

// SessionView is the read model of a whole workspace.
type SessionView struct {
	ID       string             `json:"id"`
	Company  string             `json:"company,omitempty"`
	Shipping *shipping.Metadata `json:"shipping,omitempty"`
	Courier  CourierView        `json:"courier"`
	Orders   []OrderView        `json:"orders"`
}

// AllocationView lists an order's allocations with their lot candidates.
type AllocationView struct {
	Key         order.Key             `json:"key"`
	Loaded      bool                  `json:"loaded"`
	Locked      bool                  `json:"locked"`
	Allocations []lots.Allocation     `json:"allocations"`
	Unfulfilled []lots.Allocation     `json:"unfulfilled"`
	Candidates  [][]lots.AvailableLot `json:"candidates"`
}

// View renders the whole session.
func (w *Workspace) View() SessionView {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sessionViewLocked()
}

// Order renders one order.
func (w *Workspace) Order(key order.Key) (OrderView, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	st, err := w.state(key)
	if err != nil {
		return OrderView{}, err
	}
	return w.orderViewLocked(st), nil
}

func (w *Workspace) sessionViewLocked() SessionView {
	v := SessionView{
		ID:      w.ID,
		Company: w.company,
		Courier: CourierView{Item: w.courier.Item, Fee: w.courier.Fee},
		Orders:  make([]OrderView, 0, len(w.orders)),
	}
	if w.shipping != nil {
		meta := *w.shipping
		v.Shipping = &meta
	}
	for _, st := range w.orders {
		v.Orders = append(v.Orders, w.orderViewLocked(st))
	}
	return v
}

func (w *Workspace) orderViewLocked(st *orderState) OrderView {
	o := st.order.Clone()
	v := OrderView{
		Key:                o.Key,
		ExternalDocNo:      o.ExternalDocNo,
		CustomerName:       o.CustomerName,
		Customer:           o.Customer,
		CustomerCandidates: o.CustomerCandidates,
		Lines:              make([]LineView, 0, len(o.Lines)),
		ShippingAddress:    o.ShippingAddress,
		BillingAddress:     o.BillingAddress,
		Notes:              o.Notes,
		Comment:            o.Comment,
		ShippingMethodID:   st.shippingMethodID,
		ShippingAgentCode:  st.shippingAgentCode,
		ShipTo:             st.shipTo,
		OrderDiscountInput: st.orderDiscount,
		Totals:             w.totalsLocked(st),
		Submission:         st.sub,
	}
	for _, l := range o.Lines {
		key := o.LineKey(l.ID)
		lv := LineView{Line: l}
		var fetched *pricing.LinePrice
		if p, ok := w.prices.Lookup(key, l.ItemNumber()); ok {
			fetched = &p
			lv.PriceFetched = true
			lv.UnitOfMeasure = p.UnitOfMeasureCode
		} else if l.Item != nil {
			lv.UnitOfMeasure = l.Item.BaseUOM
		}
		lv.UnitPrice = pricing.EffectiveUnitPrice(l, fetched, w.courier.Fee)
		if !l.Courier {
			lv.DiscountPercent = w.discounts.Get(key)
		}
		v.Lines = append(v.Lines, lv)
	}
	return v
}

func (w *Workspace) totalsLocked(st *orderState) pricing.Summary {
	items := pricing.Items(&st.order, w.prices, w.discounts, w.courier.Fee)
	return pricing.Compute(items, st.orderDiscount)
}

func (w *Workspace) allocationViewLocked(key order.Key) AllocationView {
	v := AllocationView{
		Key:         key,
		Loaded:      w.lots.Loaded(key),
		Locked:      w.lots.Locked(key),
		Allocations: w.lots.Allocations(key),
		Unfulfilled: w.lots.Unfulfilled(key),
	}
	for i := range v.Allocations {
		cands, _ := w.lots.Candidates(key, i)
		v.Candidates = append(v.Candidates, cands)
	}
	if v.Allocations == nil {
		v.Allocations = []lots.Allocation{}
	}
	return v
}
