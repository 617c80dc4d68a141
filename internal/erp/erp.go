// Package erp talks to the ERP collaborators: lookups, pricing, shipping
// metadata, order submission and lot allocation. Responses are normalised by
// the tolerant adapters in adapter.go.
package erp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/order-desk/internal/checkout"
	"github.com/noah-isme/order-desk/internal/lots"
	"github.com/noah-isme/order-desk/internal/order"
	"github.com/noah-isme/order-desk/internal/pricing"
	"github.com/noah-isme/order-desk/internal/shipping"
)

// DefaultCourierItemName is the display name the courier fee item is looked up by.
const DefaultCourierItemName = "COURIER/FREIGHT/TRANSPORT CHARGES"

// Lookup resolves companies, customers, items and the courier item.
type Lookup interface {
	Companies(ctx context.Context) ([]string, error)
	SearchCustomers(ctx context.Context, company, query string) ([]order.Candidate, error)
	SearchItems(ctx context.Context, company, query, category string) ([]order.Candidate, error)
	// CourierItem returns nil when the company has no courier item.
	CourierItem(ctx context.Context, company, name string) (*order.ItemRef, error)
}

// Pricing quotes a unit price for an item.
type Pricing interface {
	ItemPrice(ctx context.Context, company, customerNo, itemNo string) (pricing.LinePrice, error)
}

// Allocator proposes lot allocations for a created sales order.
type Allocator interface {
	Allocate(ctx context.Context, company, salesOrderID string) (AllocationResult, error)
}

// Submitter sends the two submission payloads.
type Submitter interface {
	SubmitOrder(ctx context.Context, p checkout.OrderPayload) (SubmitResult, error)
	SubmitLots(ctx context.Context, p checkout.LotsPayload) (SubmitResult, error)
}

// Gateway bundles every collaborator the order desk needs.
type Gateway interface {
	Lookup
	Pricing
	shipping.Provider
	Allocator
	Submitter
}

// SubmitResult is a successful submission response.
type SubmitResult struct {
	Status       string `json:"status"`
	SalesOrderID string `json:"sales_order_id,omitempty"`
	SalesOrderNo string `json:"sales_order_no,omitempty"`
	Message      string `json:"message,omitempty"`
}

// AllocationResult carries proposed allocations and the lot catalog.
type AllocationResult struct {
	Allocations []lots.Allocation
	Catalog     []lots.LotList
}

// Error is a collaborator failure: a transport error or a non-success status.
type Error struct {
	Op      string
	Status  string
	Message string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = "unexpected status " + e.Status
	}
	return fmt.Sprintf("erp %s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrUnavailable marks transport level failures.
var ErrUnavailable = errors.New("erp unavailable")

// IsSuccess reports whether a response status means success.
func IsSuccess(status string) bool {
	s := strings.ToLower(strings.TrimSpace(status))
	return s == "success" || s == "ok"
}

// UserMessage renders an error for display next to a submission.
func UserMessage(err error) string {
	var ee *Error
	if errors.As(err, &ee) {
		parts := []string{}
		if ee.Message != "" {
			parts = append(parts, ee.Message)
		} else if ee.Err != nil {
			parts = append(parts, ee.Err.Error())
		}
		if ee.Detail != "" {
			parts = append(parts, ee.Detail)
		}
		if len(parts) == 0 {
			return "Submission failed with status " + ee.Status + "."
		}
		return strings.Join(parts, ": ")
	}
	var ve *checkout.ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

var (
	_ Gateway = (*HTTPClient)(nil)
	_ Gateway = (*Sandbox)(nil)
)
