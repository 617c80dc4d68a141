package checkout

import (
	"strings"

	"github.com/noah-isme/order-desk/internal/order"
)

// ShipToMode selects where the ship-to block comes from.
type ShipToMode string

const (
	ShipToDefault ShipToMode = "DEFAULT"
	ShipToCustom  ShipToMode = "CUSTOM"
)

// Valid reports whether m is a known mode.
func (m ShipToMode) Valid() bool {
	return m == ShipToDefault || m == ShipToCustom
}

// ShipTo is the resolved ship-to name and address.
type ShipTo struct {
	Name    string        `json:"name"`
	Address order.Address `json:"address"`
}

// ShipToSelection is the per-order operator choice.
type ShipToSelection struct {
	Mode   ShipToMode `json:"mode"`
	Custom ShipTo     `json:"custom"`
}

// SeedShipTo starts an order in DEFAULT mode with the custom fields pre-filled
// from the parsed hints.
func SeedShipTo(o *order.Order) ShipToSelection {
	return ShipToSelection{
		Mode: ShipToDefault,
		Custom: ShipTo{
			Name:    strings.TrimSpace(o.CustomerName),
			Address: order.Address{Line1: strings.TrimSpace(o.ShippingAddress)},
		},
	}
}

// ResolveShipTo returns the address block for the current mode.
func ResolveShipTo(sel ShipToSelection, customer *order.Party) ShipTo {
	if sel.Mode == ShipToCustom {
		return sel.Custom
	}
	if customer == nil {
		return ShipTo{}
	}
	return ShipTo{Name: customer.DisplayName, Address: customer.Address}
}
