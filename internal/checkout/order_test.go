package checkout

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/order-desk/internal/order"
	"github.com/noah-isme/order-desk/internal/pricing"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func readyInput() (OrderInput, *pricing.DiscountStore) {
	o := &order.Order{
		ExternalDocNo:      "PO-77",
		CustomerName:       "Acme",
		ShippingAddress:    "12 Dock Rd",
		Comment:            "deliver am",
		Customer:           &order.Party{Number: "C001", DisplayName: "Acme Ltd", Address: order.Address{Line1: "1 Main St", City: "Leeds"}},
		CustomerCandidates: []order.Candidate{{Number: "C001"}, {Number: "C002"}},
		Lines: []order.Line{
			{Name: "linen", Quantity: dec("1.5"), Item: &order.ItemRef{Number: "FAB-1"}, Candidates: []order.Candidate{{Number: "FAB-1"}}},
			{Name: "Courier", Quantity: dec("1"), Courier: true},
		},
	}
	o.Assign("PO-77")
	fee := dec("5")
	discounts := pricing.NewDiscountStore()
	discounts.Set(o.LineKey("PO-77-0"), "10")
	discounts.Set(o.LineKey("PO-77-1"), "30")
	return OrderInput{
		Company:           "CRONUS",
		Order:             o,
		Courier:           order.Courier{Item: &order.ItemRef{Number: "CF-1"}, Fee: &fee},
		Discounts:         discounts,
		ShippingMethodID:  "m-1",
		ShippingAgentCode: "DHL",
		ShipTo:            SeedShipTo(o),
		OrderDiscount:     "2.5",
	}, discounts
}

func requireInvalid(t *testing.T, err error, msg string) {
	t.Helper()
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, msg, ve.Message)
}

func TestBuildOrderHappyPath(t *testing.T) {
	in, _ := readyInput()
	p, err := BuildOrder(in)
	require.NoError(t, err)

	require.Equal(t, "C001", p.CustomerID)
	require.Equal(t, "PO-77", p.ExternalDocNo)
	require.Len(t, p.Lines, 2)
	require.Equal(t, PayloadLine{LineObjectNumber: "FAB-1", Quantity: 1.5, DiscountPercent: 10}, p.Lines[0])
	require.Equal(t, PayloadLine{LineObjectNumber: "CF-1", Quantity: 1}, p.Lines[1])
	require.Equal(t, "Acme Ltd", p.ShipToName)
	require.Equal(t, "1 Main St", p.ShipToAddress.Line1)
	require.Equal(t, 2.5, p.OrderDiscountAmt)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"sales_order_lines":[{"lineObjectNumber":"FAB-1","quantity":1.5,"line_discount_percent":10}`)
}

func TestBuildOrderCustomShipTo(t *testing.T) {
	in, _ := readyInput()
	in.ShipTo.Mode = ShipToCustom
	p, err := BuildOrder(in)
	require.NoError(t, err)
	require.Equal(t, "Acme", p.ShipToName)
	require.Equal(t, "12 Dock Rd", p.ShipToAddress.Line1)
}

func TestBuildOrderFailsFast(t *testing.T) {
	in, _ := readyInput()
	in.ShippingAgentCode = ""
	_, err := BuildOrder(in)
	requireInvalid(t, err, "Please select a Shipping Agent.")

	in.ShippingMethodID = ""
	_, err = BuildOrder(in)
	requireInvalid(t, err, "Please select a Shipping Method.")

	in.Company = " "
	_, err = BuildOrder(in)
	requireInvalid(t, err, "Please select a company.")
}

func TestBuildOrderRejectsStaleSelections(t *testing.T) {
	in, _ := readyInput()
	in.Order.CustomerCandidates = []order.Candidate{{Number: "C009"}}
	_, err := BuildOrder(in)
	requireInvalid(t, err, "Selected customer is not in the latest search results. Please search and select again.")

	in, _ = readyInput()
	in.Order.Lines[0].Candidates = nil
	_, err = BuildOrder(in)
	requireInvalid(t, err, "Selected item for line 1 is not in the latest search results.")

	in, _ = readyInput()
	in.Order.Lines[0].Quantity = decimal.Zero
	_, err = BuildOrder(in)
	requireInvalid(t, err, "Quantity for line 1 must be greater than zero.")

	in, _ = readyInput()
	in.Courier = order.Courier{}
	_, err = BuildOrder(in)
	requireInvalid(t, err, "Courier item is not configured for this company.")
}

func TestBuildOrderNeedsRealLine(t *testing.T) {
	in, _ := readyInput()
	in.Order.Lines = in.Order.Lines[1:]
	_, err := BuildOrder(in)
	requireInvalid(t, err, "Order must contain at least one item.")
}

func TestBuildOrderMatchesTotals(t *testing.T) {
	in, discounts := readyInput()
	in.Order.Lines[0].Item.UnitPrice = dec("20")
	p, err := BuildOrder(in)
	require.NoError(t, err)

	s := pricing.Compute(pricing.Items(in.Order, pricing.NewPriceStore(), discounts, in.Courier.Fee), in.OrderDiscount)
	// 1.5 * 20 * 0.9 + courier 5 - 2.5
	require.Equal(t, "29.5", s.FinalTotal.String())
	require.Equal(t, s.OrderDiscount.InexactFloat64(), p.OrderDiscountAmt)
}
