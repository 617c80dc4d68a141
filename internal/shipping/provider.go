package shipping

import (
	"context"
	"strings"
)

// Method is a shipment method offered by the ERP for a company.
type Method struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	DisplayName string `json:"displayName"`
}

// Agent is a carrier that can be assigned to a sales order.
type Agent struct {
	Code string `json:"Code"`
	Name string `json:"Name"`
}

// Metadata is the set of shipping choices for one company.
type Metadata struct {
	Company string   `json:"company"`
	Methods []Method `json:"shipment_methods"`
	Agents  []Agent  `json:"shipment_agents"`
}

// HasMethod reports whether id is one of the offered methods.
func (m Metadata) HasMethod(id string) bool {
	id = strings.TrimSpace(id)
	for _, x := range m.Methods {
		if x.ID == id {
			return true
		}
	}
	return false
}

// HasAgent reports whether code is one of the offered agents.
func (m Metadata) HasAgent(code string) bool {
	code = strings.TrimSpace(code)
	for _, a := range m.Agents {
		if strings.EqualFold(a.Code, code) {
			return true
		}
	}
	return false
}

// Provider fetches shipping metadata for a company.
type Provider interface {
	Metadata(ctx context.Context, company string) (Metadata, error)
}
