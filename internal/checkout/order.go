package checkout

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/order-desk/internal/order"
)

// DiscountSource provides per-line discount percentages.
type DiscountSource interface {
	Get(order.LineKey) decimal.Decimal
}

// OrderInput is the snapshot of everything needed to build a create-order payload.
type OrderInput struct {
	Company           string
	Order             *order.Order
	Courier           order.Courier
	Discounts         DiscountSource
	ShippingMethodID  string
	ShippingAgentCode string
	ShipTo            ShipToSelection
	OrderDiscount     string
}

// PayloadLine is one sales order line sent to the ERP.
type PayloadLine struct {
	LineObjectNumber string  `json:"lineObjectNumber"`
	Quantity         float64 `json:"quantity"`
	DiscountPercent  float64 `json:"line_discount_percent"`
}

// PayloadAddress mirrors the ERP ship-to address block.
type PayloadAddress struct {
	Line1      string `json:"addressLine1"`
	Line2      string `json:"addressLine2"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	PostalCode string `json:"postalCode"`
}

// OrderPayload is the create-order request.
type OrderPayload struct {
	Company           string         `json:"company_name"`
	CustomerID        string         `json:"customer_id"`
	CustomerName      string         `json:"customer_name"`
	ExternalDocNo     string         `json:"external_doc_no"`
	Lines             []PayloadLine  `json:"sales_order_lines"`
	Comments          string         `json:"comments"`
	ShippingMethodID  string         `json:"shipping_method_id"`
	ShippingAgentCode string         `json:"shipping_agent_code"`
	ShipToName        string         `json:"ship_to_name"`
	ShipToAddress     PayloadAddress `json:"ship_to_address"`
	OrderDiscountAmt  float64        `json:"order_discount_amt"`
}

// BuildOrder validates the input in a fixed order and stops at the first
// violation. A payload is returned only when every rule holds.
func BuildOrder(in OrderInput) (OrderPayload, error) {
	if strings.TrimSpace(in.Company) == "" {
		return OrderPayload{}, invalid("company", "Please select a company.")
	}
	o := in.Order
	if o == nil {
		return OrderPayload{}, invalid("order", "Order not found.")
	}
	if o.Customer == nil || strings.TrimSpace(o.Customer.Number) == "" {
		return OrderPayload{}, invalid("customer", "Please select a customer.")
	}
	if !o.HasCustomerCandidate(o.Customer.Number) {
		return OrderPayload{}, invalid("customer", "Selected customer is not in the latest search results. Please search and select again.")
	}
	if strings.TrimSpace(in.ShippingMethodID) == "" {
		return OrderPayload{}, invalid("shipping_method_id", "Please select a Shipping Method.")
	}
	if strings.TrimSpace(in.ShippingAgentCode) == "" {
		return OrderPayload{}, invalid("shipping_agent_code", "Please select a Shipping Agent.")
	}
	if o.RealLineCount() == 0 {
		return OrderPayload{}, invalid("lines", "Order must contain at least one item.")
	}

	lines := make([]PayloadLine, 0, len(o.Lines))
	for i, l := range o.Lines {
		pos := i + 1
		if l.Courier {
			number := in.Courier.ItemNumber()
			if number == "" {
				return OrderPayload{}, invalid("lines", "Courier item is not configured for this company.")
			}
			if !l.Quantity.IsPositive() {
				return OrderPayload{}, invalid("lines", "Courier line quantity must be greater than zero.")
			}
			lines = append(lines, PayloadLine{
				LineObjectNumber: number,
				Quantity:         l.Quantity.InexactFloat64(),
			})
			continue
		}
		number := l.ItemNumber()
		if number == "" {
			return OrderPayload{}, invalid("lines", fmt.Sprintf("Please select an item for line %d.", pos))
		}
		if !l.HasCandidate(number) {
			return OrderPayload{}, invalid("lines", fmt.Sprintf("Selected item for line %d is not in the latest search results.", pos))
		}
		if !l.Quantity.IsPositive() {
			return OrderPayload{}, invalid("lines", fmt.Sprintf("Quantity for line %d must be greater than zero.", pos))
		}
		discount := decimal.Zero
		if in.Discounts != nil {
			discount = in.Discounts.Get(o.LineKey(l.ID))
		}
		if discount.IsNegative() {
			discount = decimal.Zero
		}
		lines = append(lines, PayloadLine{
			LineObjectNumber: number,
			Quantity:         l.Quantity.InexactFloat64(),
			DiscountPercent:  discount.InexactFloat64(),
		})
	}
	if len(lines) == 0 {
		return OrderPayload{}, invalid("lines", "No valid order lines to submit.")
	}

	shipTo := ResolveShipTo(in.ShipTo, o.Customer)
	return OrderPayload{
		Company:           strings.TrimSpace(in.Company),
		CustomerID:        strings.TrimSpace(o.Customer.Number),
		CustomerName:      o.Customer.DisplayName,
		ExternalDocNo:     strings.TrimSpace(o.ExternalDocNo),
		Lines:             lines,
		Comments:          o.Comment,
		ShippingMethodID:  strings.TrimSpace(in.ShippingMethodID),
		ShippingAgentCode: strings.TrimSpace(in.ShippingAgentCode),
		ShipToName:        shipTo.Name,
		ShipToAddress: PayloadAddress{
			Line1:      shipTo.Address.Line1,
			Line2:      shipTo.Address.Line2,
			City:       shipTo.Address.City,
			State:      shipTo.Address.State,
			Country:    shipTo.Address.Country,
			PostalCode: shipTo.Address.PostalCode,
		},
		OrderDiscountAmt: order.ParseDecimal(in.OrderDiscount).InexactFloat64(),
	}, nil
}
