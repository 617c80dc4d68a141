package desk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/noah-isme/order-desk/internal/order"
)

// Loose accepts a JSON string or number and keeps its raw text. Parsed
// screenshots deliver quantities both ways, sometimes with a decimal comma.
type Loose string

// UnmarshalJSON implements json.Unmarshaler.
func (l *Loose) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = Loose(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*l = Loose(n.String())
	return nil
}

// ParsedItem is one line extracted from a screenshot.
type ParsedItem struct {
	ID         string `json:"id,omitempty"`
	FabricName string `json:"fabric_name"`
	Quantity   Loose  `json:"quantity"`
	Discount   Loose  `json:"discount,omitempty"`
}

// ParsedOrder is one order extracted from a screenshot.
type ParsedOrder struct {
	ID                     string       `json:"id,omitempty"`
	CustomerName           string       `json:"customer_name"`
	ExternalDocumentNumber string       `json:"external_document_number"`
	ShippingAddress        string       `json:"shipping_address,omitempty"`
	BillingAddress         string       `json:"billing_address,omitempty"`
	Notes                  string       `json:"notes,omitempty"`
	Comment                string       `json:"comment,omitempty"`
	Items                  []ParsedItem `json:"items" validate:"dive"`
}

// intake is a loaded order plus the discounts its parsed items carried.
type intake struct {
	order     order.Order
	discounts map[string]string
}

// buildOrders turns parsed input into keyed orders. Keys that collide get a
// #position suffix so every order stays addressable. An order without items
// gets one empty line.
func buildOrders(parsed []ParsedOrder) []intake {
	seen := make(map[order.Key]bool, len(parsed))
	out := make([]intake, 0, len(parsed))
	for pos, p := range parsed {
		o := order.Order{
			ID:              strings.TrimSpace(p.ID),
			ExternalDocNo:   strings.TrimSpace(p.ExternalDocumentNumber),
			CustomerName:    strings.TrimSpace(p.CustomerName),
			ShippingAddress: strings.TrimSpace(p.ShippingAddress),
			BillingAddress:  strings.TrimSpace(p.BillingAddress),
			Notes:           strings.TrimSpace(p.Notes),
			Comment:         strings.TrimSpace(p.Comment),
		}
		if o.Comment == "" {
			o.Comment = o.Notes
		}
		for _, it := range p.Items {
			o.Lines = append(o.Lines, order.Line{
				ID:       strings.TrimSpace(it.ID),
				Name:     strings.TrimSpace(it.FabricName),
				Quantity: order.ParseDecimal(string(it.Quantity)),
			})
		}

		key := order.KeyFor(o, pos)
		if seen[key] {
			key = order.Key(fmt.Sprintf("%s#%d", key, pos))
		}
		seen[key] = true
		o.Assign(key)

		in := intake{order: o, discounts: make(map[string]string)}
		for i, it := range p.Items {
			if d := strings.TrimSpace(string(it.Discount)); d != "" {
				in.discounts[o.Lines[i].ID] = d
			}
		}
		out = append(out, in)
	}
	return out
}
