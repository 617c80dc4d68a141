package shipping

import "context"

// MockClient returns static shipping metadata and is useful for testing and development.
type MockClient struct{}

// Metadata returns canned methods and agents regardless of the company.
func (MockClient) Metadata(ctx context.Context, company string) (Metadata, error) {
	_ = ctx
	return Metadata{
		Company: company,
		Methods: []Method{
			{ID: "7c1e0c52-0000-4000-8000-000000000001", Code: "PICKUP", DisplayName: "Customer pickup"},
			{ID: "7c1e0c52-0000-4000-8000-000000000002", Code: "DELIVERY", DisplayName: "Delivery"},
		},
		Agents: []Agent{
			{Code: "DHL", Name: "DHL Express"},
			{Code: "FEDEX", Name: "FedEx"},
			{Code: "OWN", Name: "Own fleet"},
		},
	}, nil
}
