package order

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Key identifies an order for the lifetime of a session.
type Key string

// LineKey identifies a line for every per-line store. The parts are kept
// apart because order keys come from document numbers and may contain any
// separator.
type LineKey struct {
	Order Key
	Item  string
}

// NewLineKey builds the composite key for an item inside an order.
func NewLineKey(order Key, itemKey string) LineKey {
	return LineKey{Order: order, Item: itemKey}
}

// Split returns the order and item parts of the key.
func (k LineKey) Split() (Key, string) {
	return k.Order, k.Item
}

func (k LineKey) String() string {
	return string(k.Order) + "::" + k.Item
}

// Address is a postal address as reported by the ERP or typed by an operator.
type Address struct {
	Line1      string `json:"addressLine1"`
	Line2      string `json:"addressLine2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// IsZero reports whether every field is blank.
func (a Address) IsZero() bool {
	return strings.TrimSpace(a.Line1+a.Line2+a.City+a.State+a.PostalCode+a.Country) == ""
}

// Candidate is a lookup match for a customer or an item. Which fields are
// populated depends on the kind of search that produced it.
type Candidate struct {
	Number       string          `json:"number"`
	DisplayName  string          `json:"displayName"`
	CategoryCode string          `json:"itemCategoryCode,omitempty"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	BaseUOM      string          `json:"baseUnitOfMeasureCode,omitempty"`
	Address      Address         `json:"address"`
	Email        string          `json:"email,omitempty"`
	Phone        string          `json:"phoneNumber,omitempty"`
}

// Party is a resolved customer.
type Party struct {
	Number      string  `json:"number"`
	DisplayName string  `json:"displayName"`
	Address     Address `json:"address"`
	Email       string  `json:"email,omitempty"`
	Phone       string  `json:"phoneNumber,omitempty"`
}

// PartyFromCandidate converts a customer search match into a resolved party.
func PartyFromCandidate(c Candidate) Party {
	return Party{
		Number:      c.Number,
		DisplayName: c.DisplayName,
		Address:     c.Address,
		Email:       c.Email,
		Phone:       c.Phone,
	}
}

// ItemRef is a resolved catalog item.
type ItemRef struct {
	Number       string          `json:"number"`
	DisplayName  string          `json:"displayName"`
	CategoryCode string          `json:"itemCategoryCode,omitempty"`
	BaseUOM      string          `json:"baseUnitOfMeasureCode,omitempty"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
}

// ItemFromCandidate converts an item search match into a resolved item.
func ItemFromCandidate(c Candidate) ItemRef {
	return ItemRef{
		Number:       c.Number,
		DisplayName:  c.DisplayName,
		CategoryCode: c.CategoryCode,
		BaseUOM:      c.BaseUOM,
		UnitPrice:    c.UnitPrice,
	}
}

// Line is one item row of an order.
type Line struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Quantity   decimal.Decimal `json:"quantity"`
	Courier    bool            `json:"courier,omitempty"`
	Item       *ItemRef        `json:"item,omitempty"`
	Candidates []Candidate     `json:"candidates,omitempty"`
}

// ItemNumber returns the resolved item number or an empty string.
func (l Line) ItemNumber() string {
	if l.Item == nil {
		return ""
	}
	return strings.TrimSpace(l.Item.Number)
}

// HasCandidate reports whether number is present in the line's latest search results.
func (l Line) HasCandidate(number string) bool {
	return containsCandidate(l.Candidates, number)
}

// Order is one parsed sales order.
type Order struct {
	Key                Key         `json:"key"`
	ID                 string      `json:"id,omitempty"`
	ExternalDocNo      string      `json:"externalDocumentNumber"`
	CustomerName       string      `json:"customerName"`
	Customer           *Party      `json:"customer,omitempty"`
	CustomerCandidates []Candidate `json:"customerCandidates,omitempty"`
	Lines              []Line      `json:"lines"`
	ShippingAddress    string      `json:"shippingAddress,omitempty"`
	BillingAddress     string      `json:"billingAddress,omitempty"`
	Notes              string      `json:"notes,omitempty"`
	Comment            string      `json:"comment,omitempty"`

	nextSeq int
}

// KeyFor derives the identity of an order: explicit id, else external
// document number, else its position in the parsed batch.
func KeyFor(o Order, position int) Key {
	if id := strings.TrimSpace(o.ID); id != "" {
		return Key(id)
	}
	if doc := strings.TrimSpace(o.ExternalDocNo); doc != "" {
		return Key(doc)
	}
	return Key(strconv.Itoa(position))
}

// Assign fixes the order key and gives every line without an explicit id the
// positional id orderKey-position. Ids never change afterwards.
func (o *Order) Assign(key Key) {
	o.Key = key
	for i := range o.Lines {
		if strings.TrimSpace(o.Lines[i].ID) == "" {
			o.Lines[i].ID = fmt.Sprintf("%s-%d", key, i)
		}
	}
	if o.nextSeq < len(o.Lines) {
		o.nextSeq = len(o.Lines)
	}
}

// LineKey returns the composite key for an item of this order.
func (o *Order) LineKey(itemKey string) LineKey {
	return NewLineKey(o.Key, itemKey)
}

// LineIndex returns the position of the line with the given id, or -1.
func (o *Order) LineIndex(itemKey string) int {
	for i := range o.Lines {
		if o.Lines[i].ID == itemKey {
			return i
		}
	}
	return -1
}

// Line returns a pointer to the line with the given id.
func (o *Order) Line(itemKey string) (*Line, bool) {
	idx := o.LineIndex(itemKey)
	if idx < 0 {
		return nil, false
	}
	return &o.Lines[idx], true
}

// RealLineCount counts lines that are not the synthetic courier line.
func (o *Order) RealLineCount() int {
	n := 0
	for _, l := range o.Lines {
		if !l.Courier {
			n++
		}
	}
	return n
}

// HasCustomerCandidate reports whether number is present in the latest customer search.
func (o *Order) HasCustomerCandidate(number string) bool {
	return containsCandidate(o.CustomerCandidates, number)
}

func (o *Order) newLineID() string {
	for {
		id := fmt.Sprintf("%s-%d", o.Key, o.nextSeq)
		o.nextSeq++
		if o.LineIndex(id) < 0 {
			return id
		}
	}
}

// Clone returns a structural deep copy sharing no memory with o.
func (o Order) Clone() Order {
	out := o
	if o.Customer != nil {
		c := *o.Customer
		out.Customer = &c
	}
	out.CustomerCandidates = cloneCandidates(o.CustomerCandidates)
	if o.Lines != nil {
		out.Lines = make([]Line, len(o.Lines))
		for i, l := range o.Lines {
			out.Lines[i] = l.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the line.
func (l Line) Clone() Line {
	out := l
	if l.Item != nil {
		item := *l.Item
		out.Item = &item
	}
	out.Candidates = cloneCandidates(l.Candidates)
	return out
}

func cloneCandidates(in []Candidate) []Candidate {
	if in == nil {
		return nil
	}
	out := make([]Candidate, len(in))
	copy(out, in)
	return out
}

func containsCandidate(list []Candidate, number string) bool {
	number = strings.TrimSpace(number)
	if number == "" {
		return false
	}
	for _, c := range list {
		if strings.TrimSpace(c.Number) == number {
			return true
		}
	}
	return false
}
