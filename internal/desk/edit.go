package desk

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/order-desk/internal/checkout"
	"github.com/noah-isme/order-desk/internal/order"
)

// AddItem appends an empty line with quantity 1.
func (w *Workspace) AddItem(key order.Key) (OrderView, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	st, err := w.editable(key)
	if err != nil {
		return OrderView{}, err
	}
	order.AddLine(&st.order, w.qty)
	w.recomputeCourier(st)
	return w.orderViewLocked(st), nil
}

// RemoveItem deletes a line. The last non-courier line cannot be removed.
func (w *Workspace) RemoveItem(key order.Key, itemKey string) (OrderView, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	st, err := w.editable(key)
	if err != nil {
		return OrderView{}, err
	}
	if _, err := order.RemoveLine(&st.order, w.qty, itemKey); err != nil {
		return OrderView{}, err
	}
	lk := st.order.LineKey(itemKey)
	w.prices.Forget(lk)
	w.discounts.Forget(lk)
	w.recomputeCourier(st)
	return w.orderViewLocked(st), nil
}

// ResetLines restores lines, quantities and discounts captured at load.
// Prices are kept; stale entries are never read because of their item tag.
func (w *Workspace) ResetLines(key order.Key) (OrderView, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	st, err := w.editable(key)
	if err != nil {
		return OrderView{}, err
	}
	restored := st.original.Clone()
	restored.Customer = st.order.Customer
	restored.CustomerCandidates = st.order.CustomerCandidates
	st.order = restored
	w.qty.Track(&st.order)
	w.discounts.Restore(key, st.originalDiscounts)
	w.recomputeCourier(st)
	return w.orderViewLocked(st), nil
}

// SetQuantity parses raw operator input for a line quantity.
func (w *Workspace) SetQuantity(key order.Key, itemKey, raw string) (OrderView, error) {
	return w.editQuantity(key, itemKey, func(o *order.Order) (decimal.Decimal, error) {
		return w.qty.Set(o, itemKey, raw)
	})
}

// StepQuantity moves a line quantity by one step up or down.
func (w *Workspace) StepQuantity(key order.Key, itemKey string, dir int) (OrderView, error) {
	return w.editQuantity(key, itemKey, func(o *order.Order) (decimal.Decimal, error) {
		return w.qty.Step(o, itemKey, dir)
	})
}

func (w *Workspace) editQuantity(key order.Key, itemKey string, fn func(*order.Order) (decimal.Decimal, error)) (OrderView, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	st, err := w.editable(key)
	if err != nil {
		return OrderView{}, err
	}
	if _, err := fn(&st.order); err != nil {
		return OrderView{}, err
	}
	w.recomputeCourier(st)
	return w.orderViewLocked(st), nil
}

// SetDiscount stores a line discount percent. Courier lines always stay at 0.
func (w *Workspace) SetDiscount(key order.Key, itemKey, raw string) (OrderView, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	st, err := w.editable(key)
	if err != nil {
		return OrderView{}, err
	}
	line, ok := st.order.Line(itemKey)
	if !ok {
		return OrderView{}, order.ErrLineNotFound
	}
	lk := st.order.LineKey(itemKey)
	if line.Courier {
		w.discounts.Forget(lk)
	} else {
		w.discounts.Set(lk, raw)
	}
	return w.orderViewLocked(st), nil
}

// SetShipping records the shipping method and agent. When metadata for the
// selected company is known, both must exist in it.
func (w *Workspace) SetShipping(key order.Key, methodID, agentCode string) (OrderView, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	st, err := w.editable(key)
	if err != nil {
		return OrderView{}, err
	}
	if meta := w.shipping; meta != nil {
		if methodID != "" && !meta.HasMethod(methodID) {
			return OrderView{}, &checkout.ValidationError{Field: "shipping_method_id", Message: "Unknown Shipping Method."}
		}
		if agentCode != "" && !meta.HasAgent(agentCode) {
			return OrderView{}, &checkout.ValidationError{Field: "shipping_agent_code", Message: "Unknown Shipping Agent."}
		}
	}
	st.shippingMethodID = methodID
	st.shippingAgentCode = agentCode
	return w.orderViewLocked(st), nil
}

// SetShipTo switches the ship-to mode. In CUSTOM mode the given name and
// address replace the operator fields; DEFAULT keeps them for later.
func (w *Workspace) SetShipTo(key order.Key, mode checkout.ShipToMode, custom *checkout.ShipTo) (OrderView, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	st, err := w.editable(key)
	if err != nil {
		return OrderView{}, err
	}
	if !mode.Valid() {
		return OrderView{}, &checkout.ValidationError{Field: "mode", Message: "Ship-to mode must be DEFAULT or CUSTOM."}
	}
	st.shipTo.Mode = mode
	if custom != nil {
		st.shipTo.Custom = *custom
	}
	return w.orderViewLocked(st), nil
}

// SetOrderDiscount stores the raw order-level discount amount. It is
// clamped to [0, net total] whenever totals are computed.
func (w *Workspace) SetOrderDiscount(key order.Key, raw string) (OrderView, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	st, err := w.editable(key)
	if err != nil {
		return OrderView{}, err
	}
	st.orderDiscount = raw
	return w.orderViewLocked(st), nil
}
