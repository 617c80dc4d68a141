// Package desk hosts order desk sessions: a workspace per operator holding
// the parsed orders, their line stores, lot allocations and submission state,
// plus the HTTP surface that drives them.
package desk

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/order-desk/internal/checkout"
	"github.com/noah-isme/order-desk/internal/erp"
	"github.com/noah-isme/order-desk/internal/events"
	"github.com/noah-isme/order-desk/internal/lock"
	"github.com/noah-isme/order-desk/internal/lots"
	"github.com/noah-isme/order-desk/internal/order"
	"github.com/noah-isme/order-desk/internal/pricing"
	"github.com/noah-isme/order-desk/internal/shipping"
)

var (
	// ErrOrderNotFound is returned for an unknown order key.
	ErrOrderNotFound = errors.New("order not found")
	// ErrReadOnly guards items, shipping and customer once the order was inserted.
	ErrReadOnly = errors.New("order has been submitted and is read-only")
	// ErrAlreadyInserted rejects a second order submission.
	ErrAlreadyInserted = errors.New("order has already been submitted")
	// ErrSubmitInProgress rejects a concurrent duplicate submission.
	ErrSubmitInProgress = errors.New("submission already in progress")
	// ErrNoCompany is returned by lookups before a company is selected.
	ErrNoCompany = errors.New("please select a company")
	// ErrCompanyLocked rejects a company change once any order was inserted.
	ErrCompanyLocked = errors.New("company cannot change after an order was submitted")
	// ErrCourierLine rejects item edits on the synthetic courier line.
	ErrCourierLine = errors.New("the courier line is managed automatically")
	// ErrNotCandidate is returned when a selection is absent from the latest search.
	ErrNotCandidate = errors.New("selection is not in the latest search results")
)

// Submission tracks the two submission steps of an order.
type Submission struct {
	Inserted        bool   `json:"inserted"`
	SalesOrderID    string `json:"salesOrderId,omitempty"`
	SalesOrderNo    string `json:"salesOrderNo,omitempty"`
	LotsInserted    bool   `json:"lotsInserted"`
	Submitting      bool   `json:"submitting"`
	SubmittingLots  bool   `json:"submittingLots"`
	LastError       string `json:"lastError,omitempty"`
	AllocationError string `json:"allocationError,omitempty"`
}

// Deps are the collaborators shared by every workspace.
type Deps struct {
	ERP             erp.Gateway
	Events          *events.Bus
	Locker          *lock.Locker
	LockTTL         time.Duration
	CourierItemName string
	// CourierFee overrides the courier item price reported by the ERP.
	CourierFee *decimal.Decimal
}

type orderState struct {
	order             order.Order
	original          order.Order
	originalDiscounts map[order.LineKey]decimal.Decimal

	shippingMethodID  string
	shippingAgentCode string
	shipTo            checkout.ShipToSelection
	orderDiscount     string

	sub Submission
}

// Workspace is one operator session. A single mutex serialises every
// mutation; collaborator calls happen with the mutex released and their
// results are applied only if the state they answer is still current.
type Workspace struct {
	ID string

	mu       sync.Mutex
	deps     Deps
	lastUsed time.Time

	company  string
	shipping *shipping.Metadata
	courier  order.Courier

	orders    []*orderState
	byKey     map[order.Key]*orderState
	qty       *order.QuantityIndex
	prices    *pricing.PriceStore
	discounts *pricing.DiscountStore
	lots      *lots.Store
}

// NewWorkspace loads parsed orders into a fresh workspace.
func NewWorkspace(id string, deps Deps, parsed []ParsedOrder, now time.Time) *Workspace {
	if strings.TrimSpace(deps.CourierItemName) == "" {
		deps.CourierItemName = erp.DefaultCourierItemName
	}
	w := &Workspace{
		ID:        id,
		deps:      deps,
		lastUsed:  now,
		byKey:     make(map[order.Key]*orderState),
		qty:       order.NewQuantityIndex(),
		prices:    pricing.NewPriceStore(),
		discounts: pricing.NewDiscountStore(),
		lots:      lots.NewStore(),
	}
	for _, in := range buildOrders(parsed) {
		st := &orderState{order: in.order}
		o := &st.order
		w.qty.Track(o)
		if o.RealLineCount() == 0 {
			order.AddLine(o, w.qty)
		}
		for itemKey, raw := range in.discounts {
			w.discounts.Set(o.LineKey(itemKey), raw)
		}
		st.shipTo = checkout.SeedShipTo(o)
		st.original = o.Clone()
		st.originalDiscounts = w.discounts.Snapshot(o.Key)
		w.orders = append(w.orders, st)
		w.byKey[o.Key] = st
	}
	return w
}

// LastUsed reports when the workspace was last touched.
func (w *Workspace) LastUsed() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastUsed
}

// Touch marks the workspace as used at now.
func (w *Workspace) Touch(now time.Time) {
	w.mu.Lock()
	w.lastUsed = now
	w.mu.Unlock()
}

// Keys lists the order keys in load order.
func (w *Workspace) Keys() []order.Key {
	w.mu.Lock()
	defer w.mu.Unlock()
	keys := make([]order.Key, 0, len(w.orders))
	for _, st := range w.orders {
		keys = append(keys, st.order.Key)
	}
	return keys
}

func (w *Workspace) state(key order.Key) (*orderState, error) {
	st, ok := w.byKey[key]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return st, nil
}

// editable returns the order state when its items may still change. An
// order being submitted is frozen so the ERP receives what is shown.
func (w *Workspace) editable(key order.Key) (*orderState, error) {
	st, err := w.state(key)
	if err != nil {
		return nil, err
	}
	if st.sub.Inserted {
		return nil, ErrReadOnly
	}
	if st.sub.Submitting {
		return nil, ErrSubmitInProgress
	}
	return st, nil
}

func (w *Workspace) recomputeCourier(st *orderState) {
	if st.sub.Inserted || st.sub.Submitting {
		return
	}
	if order.RecomputeCourierLine(&st.order, w.qty, w.courier) {
		for _, l := range st.order.Lines {
			if l.Courier {
				w.discounts.Forget(st.order.LineKey(l.ID))
			}
		}
	}
}

func (w *Workspace) emit(ctx context.Context, topic string, aggregate string, payload any) {
	if w.deps.Events == nil {
		return
	}
	if _, err := w.deps.Events.Emit(ctx, topic, aggregate, payload); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("topic", topic).Str("session_id", w.ID).Msg("emit event")
	}
}

func (w *Workspace) aggregate(key order.Key) string {
	if key == "" {
		return w.ID
	}
	return w.ID + "/" + string(key)
}
