package erp

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/order-desk/internal/checkout"
	"github.com/noah-isme/order-desk/internal/lots"
	"github.com/noah-isme/order-desk/internal/order"
	"github.com/noah-isme/order-desk/internal/pricing"
	"github.com/noah-isme/order-desk/internal/shipping"
)

// SandboxLot is an inventory lot held by the sandbox.
type SandboxLot struct {
	LotNo       string
	PostingDate string
	Remaining   decimal.Decimal
	// Reserved is the sum of reservation entries and therefore <= 0.
	Reserved decimal.Decimal
}

type sandboxOrder struct {
	id      string
	no      string
	company string
	lines   []checkout.PayloadLine
}

// Sandbox is an in-memory ERP used for development and tests. Lot proposals
// use the same FIFO rules as the real allocation service.
type Sandbox struct {
	Shipping shipping.Provider
	Now      func() time.Time

	mu           sync.Mutex
	companies    []string
	customers    []order.Candidate
	items        []order.Candidate
	inventory    map[string][]SandboxLot
	orders       map[string]*sandboxOrder
	reservations []checkout.ReservationEntry
	seq          int
}

// NewSandbox returns a sandbox seeded with a small demo catalog.
func NewSandbox() *Sandbox {
	d := decimal.RequireFromString
	return &Sandbox{
		Shipping:  shipping.MockClient{},
		Now:       time.Now,
		companies: []string{"CRONUS Textiles", "CRONUS Export"},
		customers: []order.Candidate{
			{Number: "C00010", DisplayName: "Adatum Interiors", Address: order.Address{Line1: "192 Market Square", City: "Atlanta", State: "GA", PostalCode: "31772", Country: "US"}, Email: "orders@adatum.example", Phone: "555-0100"},
			{Number: "C00020", DisplayName: "Trey Upholstery", Address: order.Address{Line1: "153 Thomas Drive", City: "Chicago", State: "IL", PostalCode: "61236", Country: "US"}},
			{Number: "C00030", DisplayName: "Alpine Drapes", Address: order.Address{Line1: "10 High Street", City: "Denver", State: "CO", PostalCode: "80014", Country: "US"}},
		},
		items: []order.Candidate{
			{Number: "FAB-1001", DisplayName: "Linen Natural 280cm", CategoryCode: "FABRIC", BaseUOM: "M", UnitPrice: d("12.50")},
			{Number: "FAB-1002", DisplayName: "Linen Charcoal 280cm", CategoryCode: "FABRIC", BaseUOM: "M", UnitPrice: d("13.75")},
			{Number: "FAB-2001", DisplayName: "Velvet Emerald 140cm", CategoryCode: "FABRIC", BaseUOM: "M", UnitPrice: d("24.00")},
			{Number: "TRM-0100", DisplayName: "Cotton Piping Ivory", CategoryCode: "TRIM", BaseUOM: "M", UnitPrice: d("1.20")},
			{Number: "SRV-0001", DisplayName: DefaultCourierItemName, CategoryCode: "SERVICE", BaseUOM: "EA", UnitPrice: d("15.00")},
		},
		inventory: map[string][]SandboxLot{
			"FAB-1001": {
				{LotNo: "L1#24060015-1520", PostingDate: "2024-06-03", Remaining: d("40")},
				{LotNo: "L2#24060015-1521", PostingDate: "2024-06-10", Remaining: d("25")},
				{LotNo: "L3#24070002-0100", PostingDate: "2024-07-01", Remaining: d("60")},
			},
			"FAB-1002": {
				{LotNo: "L9#24050020-0001", PostingDate: "2024-05-20", Remaining: d("8.5")},
				{LotNo: "L7#24080001-0002", PostingDate: "2024-08-02", Remaining: d("30")},
			},
			"FAB-2001": {
				{LotNo: "V1#24030007-0001", PostingDate: "2024-03-11", Remaining: d("12")},
			},
		},
		orders: make(map[string]*sandboxOrder),
	}
}

// SetInventory replaces the lots held for an item.
func (s *Sandbox) SetInventory(itemNo string, stock []SandboxLot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inventory[itemNo] = append([]SandboxLot(nil), stock...)
}

// Reservations returns a copy of every reservation entry recorded so far.
func (s *Sandbox) Reservations() []checkout.ReservationEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]checkout.ReservationEntry(nil), s.reservations...)
}

// Companies lists the sandbox companies.
func (s *Sandbox) Companies(context.Context) ([]string, error) {
	return append([]string(nil), s.companies...), nil
}

func (s *Sandbox) knownCompany(company string) bool {
	for _, c := range s.companies {
		if strings.EqualFold(c, strings.TrimSpace(company)) {
			return true
		}
	}
	return false
}

func matches(name, query string) bool {
	return strings.Contains(strings.ToLower(name), strings.ToLower(strings.TrimSpace(query)))
}

// SearchCustomers matches customers by display name substring.
func (s *Sandbox) SearchCustomers(_ context.Context, company, query string) ([]order.Candidate, error) {
	if !s.knownCompany(company) {
		return nil, &Error{Op: "search_customers", Status: "error", Message: fmt.Sprintf("unknown company %q", company)}
	}
	out := []order.Candidate{}
	for _, c := range s.customers {
		if matches(c.DisplayName, query) {
			out = append(out, c)
		}
	}
	return out, nil
}

// SearchItems matches items by display name substring and optional category.
func (s *Sandbox) SearchItems(_ context.Context, company, query, category string) ([]order.Candidate, error) {
	if !s.knownCompany(company) {
		return nil, &Error{Op: "search_items", Status: "error", Message: fmt.Sprintf("unknown company %q", company)}
	}
	out := []order.Candidate{}
	for _, it := range s.items {
		if category != "" && !strings.EqualFold(it.CategoryCode, strings.TrimSpace(category)) {
			continue
		}
		if matches(it.DisplayName, query) {
			out = append(out, it)
		}
	}
	return out, nil
}

// CourierItem finds the courier fee item by exact display name.
func (s *Sandbox) CourierItem(_ context.Context, company, name string) (*order.ItemRef, error) {
	if !s.knownCompany(company) {
		return nil, nil
	}
	if strings.TrimSpace(name) == "" {
		name = DefaultCourierItemName
	}
	for _, it := range s.items {
		if strings.EqualFold(it.DisplayName, strings.TrimSpace(name)) {
			ref := order.ItemFromCandidate(it)
			return &ref, nil
		}
	}
	return nil, nil
}

// ItemPrice returns the list price of an item.
func (s *Sandbox) ItemPrice(_ context.Context, _, _, itemNo string) (pricing.LinePrice, error) {
	for _, it := range s.items {
		if it.Number == strings.TrimSpace(itemNo) {
			return pricing.LinePrice{ItemNo: it.Number, UnitPrice: it.UnitPrice, UnitOfMeasureCode: it.BaseUOM}, nil
		}
	}
	return pricing.LinePrice{}, &Error{Op: "price", Status: "not_found", Message: fmt.Sprintf("item %s not found", itemNo)}
}

// Metadata delegates to the configured shipping provider.
func (s *Sandbox) Metadata(ctx context.Context, company string) (shipping.Metadata, error) {
	p := s.Shipping
	if p == nil {
		p = shipping.MockClient{}
	}
	return p.Metadata(ctx, company)
}

func (s *Sandbox) hasItem(number string) bool {
	for _, it := range s.items {
		if it.Number == number {
			return true
		}
	}
	return false
}

func (s *Sandbox) hasCustomer(number string) bool {
	for _, c := range s.customers {
		if c.Number == number {
			return true
		}
	}
	return false
}

// SubmitOrder creates a sales order after checking its references.
func (s *Sandbox) SubmitOrder(_ context.Context, p checkout.OrderPayload) (SubmitResult, error) {
	if !s.knownCompany(p.Company) {
		return SubmitResult{}, &Error{Op: "submit_order", Status: "error", Message: fmt.Sprintf("unknown company %q", p.Company)}
	}
	if !s.hasCustomer(p.CustomerID) {
		return SubmitResult{}, &Error{Op: "submit_order", Status: "error", Message: fmt.Sprintf("customer %s does not exist", p.CustomerID)}
	}
	for _, l := range p.Lines {
		if !s.hasItem(l.LineObjectNumber) {
			return SubmitResult{}, &Error{Op: "submit_order", Status: "error", Message: fmt.Sprintf("item %s does not exist", l.LineObjectNumber)}
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	o := &sandboxOrder{
		id:      uuid.NewString(),
		no:      fmt.Sprintf("S-ORD%06d", 101000+s.seq),
		company: p.Company,
		lines:   append([]checkout.PayloadLine(nil), p.Lines...),
	}
	s.orders[o.id] = o
	return SubmitResult{Status: "success", SalesOrderID: o.id, SalesOrderNo: o.no, Message: "Sales order " + o.no + " created."}, nil
}

// Allocate builds the lot catalog for every stocked line of the order and
// proposes a FIFO allocation.
func (s *Sandbox) Allocate(_ context.Context, company, salesOrderID string) (AllocationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[salesOrderID]
	if !ok || !strings.EqualFold(o.company, company) {
		return AllocationResult{}, &Error{Op: "allocate", Status: "not_found", Message: fmt.Sprintf("sales order %s not found", salesOrderID)}
	}
	var catalog []lots.LotList
	for i, l := range o.lines {
		stock, ok := s.inventory[l.LineObjectNumber]
		if !ok {
			continue
		}
		list := lots.LotList{
			ItemNo:       l.LineObjectNumber,
			LineNo:       fmt.Sprintf("%d", (i+1)*10000),
			LocationCode: "MAIN",
			Quantity:     decimal.NewFromFloat(l.Quantity),
		}
		for _, lot := range stock {
			avail := lots.Availability(lot.Remaining, lot.Reserved)
			if !avail.IsPositive() {
				continue
			}
			list.Records = append(list.Records, lots.AvailableLot{
				LotNo:        lot.LotNo,
				PO:           lots.ExtractPO(lot.LotNo),
				PostingDate:  lot.PostingDate,
				AvailableQty: avail,
			})
		}
		catalog = append(catalog, list)
	}
	return AllocationResult{Allocations: lots.AutoAllocate(catalog), Catalog: catalog}, nil
}

// SubmitLots records reservation entries and reduces lot availability.
func (s *Sandbox) SubmitLots(_ context.Context, p checkout.LotsPayload) (SubmitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var target *sandboxOrder
	for _, o := range s.orders {
		if o.no == p.SalesOrderNo {
			target = o
			break
		}
	}
	if target == nil {
		return SubmitResult{}, &Error{Op: "submit_lots", Status: "not_found", Message: fmt.Sprintf("sales order %s not found", p.SalesOrderNo)}
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	entries := checkout.ReservationEntries(p, now())
	for _, e := range entries {
		stock := s.inventory[e.ItemNo]
		found := false
		for i := range stock {
			if stock[i].LotNo != e.LotNo {
				continue
			}
			found = true
			qty := decimal.NewFromFloat(-e.QuantityBase)
			if qty.GreaterThan(lots.Availability(stock[i].Remaining, stock[i].Reserved)) {
				return SubmitResult{}, &Error{Op: "submit_lots", Status: "error", Message: fmt.Sprintf("lot %s has insufficient quantity", e.LotNo)}
			}
		}
		if !found {
			return SubmitResult{}, &Error{Op: "submit_lots", Status: "error", Message: fmt.Sprintf("lot %s not found for item %s", e.LotNo, e.ItemNo)}
		}
	}
	for _, e := range entries {
		stock := s.inventory[e.ItemNo]
		for i := range stock {
			if stock[i].LotNo == e.LotNo {
				stock[i].Reserved = stock[i].Reserved.Add(decimal.NewFromFloat(e.QuantityBase))
			}
		}
	}
	s.reservations = append(s.reservations, entries...)
	return SubmitResult{
		Status:       "success",
		SalesOrderNo: target.no,
		Message:      fmt.Sprintf("%d lot reservation(s) created.", len(entries)),
	}, nil
}
