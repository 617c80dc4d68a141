package desk_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/order-desk/internal/checkout"
	"github.com/noah-isme/order-desk/internal/desk"
	"github.com/noah-isme/order-desk/internal/erp"
	"github.com/noah-isme/order-desk/internal/lots"
)

const deliveryMethod = "7c1e0c52-0000-4000-8000-000000000002"

// readyOrder drives PO-778 up to the point where it can be submitted.
func readyOrder(t *testing.T, ws *desk.Workspace) {
	t.Helper()
	ctx := context.Background()
	_, err := ws.SelectCompany(ctx, company)
	require.NoError(t, err)
	_, err = ws.SearchCustomers(ctx, "PO-778", "adatum")
	require.NoError(t, err)
	_, err = ws.SelectCustomer(ctx, "PO-778", "C00010")
	require.NoError(t, err)
	_, err = ws.SearchItems(ctx, "PO-778", "PO-778-0", "linen natural", "")
	require.NoError(t, err)
	_, err = ws.SelectItem(ctx, "PO-778", "PO-778-0", "FAB-1001")
	require.NoError(t, err)
	_, err = ws.SetShipping("PO-778", deliveryMethod, "DHL")
	require.NoError(t, err)
}

func TestSubmitOrderAndLots(t *testing.T) {
	ctx := context.Background()
	sandbox := erp.NewSandbox()
	ws := newWorkspace(t, sandbox, singleOrder("3"))
	readyOrder(t, ws)

	view, err := ws.SubmitOrder(ctx, "PO-778")
	require.NoError(t, err)
	require.True(t, view.Submission.Inserted)
	require.False(t, view.Submission.Submitting)
	require.Equal(t, "S-ORD101001", view.Submission.SalesOrderNo)
	require.NotEmpty(t, view.Submission.SalesOrderID)

	_, err = ws.SubmitOrder(ctx, "PO-778")
	require.ErrorIs(t, err, desk.ErrAlreadyInserted)
	_, err = ws.SetQuantity("PO-778", "PO-778-0", "5")
	require.ErrorIs(t, err, desk.ErrReadOnly)
	_, err = ws.SelectCompany(ctx, "CRONUS Export")
	require.ErrorIs(t, err, desk.ErrCompanyLocked)

	alloc, err := ws.Allocations(ctx, "PO-778")
	require.NoError(t, err)
	require.True(t, alloc.Loaded)
	require.False(t, alloc.Locked)
	require.Len(t, alloc.Allocations, 1)
	a := alloc.Allocations[0]
	require.Equal(t, "FAB-1001", a.ItemNo)
	require.Equal(t, "10000", a.LineNo)
	require.Len(t, a.Lots, 1)
	require.Equal(t, "L1#24060015-1520", a.Lots[0].LotNo)
	requireDecimal(t, "3", a.Lots[0].SelectedQty)
	require.Empty(t, alloc.Unfulfilled)
	require.Len(t, alloc.Candidates, 1)
	require.Len(t, alloc.Candidates[0], 3)

	_, err = ws.AddLot("PO-778", 0, "L2#24060015-1521", dec("1"))
	require.ErrorIs(t, err, lots.ErrExceedsRequested)

	_, err = ws.UpdateLotQty("PO-778", 0, "L1#24060015-1520", dec("2"))
	require.NoError(t, err)
	alloc, err = ws.AddLot("PO-778", 0, "L2#24060015-1521", dec("1"))
	require.NoError(t, err)
	require.Len(t, alloc.Allocations[0].Lots, 2)

	_, err = ws.AddLot("PO-778", 0, "L2#24060015-1521", dec("0.5"))
	require.ErrorIs(t, err, lots.ErrDuplicateLot)
	_, err = ws.AddLot("PO-778", 3, "L2#24060015-1521", dec("0.5"))
	require.ErrorIs(t, err, lots.ErrAllocationNotFound)

	submitted, err := ws.SubmitLots(ctx, "PO-778")
	require.NoError(t, err)
	require.True(t, submitted.Locked)
	require.Len(t, sandbox.Reservations(), 2)

	_, err = ws.RemoveLot("PO-778", 0, "L2#24060015-1521")
	require.ErrorIs(t, err, lots.ErrLocked)
	_, err = ws.SubmitLots(ctx, "PO-778")
	require.ErrorIs(t, err, lots.ErrLocked)

	final, err := ws.Order("PO-778")
	require.NoError(t, err)
	require.True(t, final.Submission.LotsInserted)
	require.False(t, final.Submission.SubmittingLots)
}

func TestResetAllocationRestoresProposal(t *testing.T) {
	ctx := context.Background()
	ws := newWorkspace(t, erp.NewSandbox(), singleOrder("3"))
	readyOrder(t, ws)
	_, err := ws.SubmitOrder(ctx, "PO-778")
	require.NoError(t, err)

	alloc, err := ws.RemoveLot("PO-778", 0, "L1#24060015-1520")
	require.NoError(t, err)
	require.Empty(t, alloc.Allocations[0].Lots)
	require.Len(t, alloc.Unfulfilled, 1)

	alloc, err = ws.ResetAllocation("PO-778", 0)
	require.NoError(t, err)
	require.Len(t, alloc.Allocations[0].Lots, 1)
	require.Empty(t, alloc.Unfulfilled)
}

func TestSubmitOrderValidationFailure(t *testing.T) {
	ctx := context.Background()
	ws := newWorkspace(t, erp.NewSandbox(), singleOrder("3"))
	readyOrder(t, ws)
	_, err := ws.SetShipping("PO-778", deliveryMethod, "")
	require.NoError(t, err)

	_, err = ws.SubmitOrder(ctx, "PO-778")
	var ve *checkout.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "shipping_agent_code", ve.Field)

	view, err := ws.Order("PO-778")
	require.NoError(t, err)
	require.False(t, view.Submission.Inserted)
	require.False(t, view.Submission.Submitting)
	require.Equal(t, "Please select a Shipping Agent.", view.Submission.LastError)
}

type rejectingERP struct {
	*erp.Sandbox
}

func (rejectingERP) SubmitOrder(context.Context, checkout.OrderPayload) (erp.SubmitResult, error) {
	return erp.SubmitResult{}, &erp.Error{Op: "submit_order", Status: "error", Message: "customer is blocked"}
}

func TestSubmitOrderUpstreamFailureKeepsOrderEditable(t *testing.T) {
	ctx := context.Background()
	ws := newWorkspace(t, rejectingERP{erp.NewSandbox()}, singleOrder("3"))
	readyOrder(t, ws)

	_, err := ws.SubmitOrder(ctx, "PO-778")
	var ee *erp.Error
	require.ErrorAs(t, err, &ee)

	view, err := ws.Order("PO-778")
	require.NoError(t, err)
	require.False(t, view.Submission.Inserted)
	require.Equal(t, "customer is blocked", view.Submission.LastError)

	_, err = ws.SetQuantity("PO-778", "PO-778-0", "4")
	require.NoError(t, err)
}

type blockingERP struct {
	*erp.Sandbox
	entered chan struct{}
	release chan struct{}
}

func (b *blockingERP) SubmitOrder(ctx context.Context, p checkout.OrderPayload) (erp.SubmitResult, error) {
	close(b.entered)
	<-b.release
	return b.Sandbox.SubmitOrder(ctx, p)
}

func TestSubmitOrderRejectsConcurrentDuplicate(t *testing.T) {
	ctx := context.Background()
	gw := &blockingERP{Sandbox: erp.NewSandbox(), entered: make(chan struct{}), release: make(chan struct{})}
	ws := newWorkspace(t, gw, singleOrder("3"))
	readyOrder(t, ws)

	done := make(chan error, 1)
	go func() {
		_, err := ws.SubmitOrder(ctx, "PO-778")
		done <- err
	}()
	<-gw.entered

	view, err := ws.Order("PO-778")
	require.NoError(t, err)
	require.True(t, view.Submission.Submitting)

	_, err = ws.SubmitOrder(ctx, "PO-778")
	require.ErrorIs(t, err, desk.ErrSubmitInProgress)

	close(gw.release)
	require.NoError(t, <-done)

	view, err = ws.Order("PO-778")
	require.NoError(t, err)
	require.True(t, view.Submission.Inserted)
	require.False(t, view.Submission.Submitting)
}

func TestOrderIsFrozenWhileSubmitting(t *testing.T) {
	ctx := context.Background()
	gw := &blockingERP{Sandbox: erp.NewSandbox(), entered: make(chan struct{}), release: make(chan struct{})}
	ws := newWorkspace(t, gw, singleOrder("3"))
	readyOrder(t, ws)

	done := make(chan error, 1)
	go func() {
		_, err := ws.SubmitOrder(ctx, "PO-778")
		done <- err
	}()
	<-gw.entered

	_, err := ws.SetQuantity("PO-778", "PO-778-0", "40")
	require.ErrorIs(t, err, desk.ErrSubmitInProgress)
	_, err = ws.AddItem("PO-778")
	require.ErrorIs(t, err, desk.ErrSubmitInProgress)
	_, err = ws.SetDiscount("PO-778", "PO-778-0", "15")
	require.ErrorIs(t, err, desk.ErrSubmitInProgress)
	_, err = ws.SetShipping("PO-778", pickupMethod, "OWN")
	require.ErrorIs(t, err, desk.ErrSubmitInProgress)
	_, err = ws.SelectCompany(ctx, "CRONUS Export")
	require.ErrorIs(t, err, desk.ErrSubmitInProgress)

	close(gw.release)
	require.NoError(t, <-done)

	view, err := ws.Order("PO-778")
	require.NoError(t, err)
	require.True(t, view.Submission.Inserted)
	require.Len(t, view.Lines, 1)
	requireDecimal(t, "3", view.Lines[0].Quantity)
	requireDecimal(t, "0", view.Lines[0].DiscountPercent)
	require.Equal(t, deliveryMethod, view.ShippingMethodID)
	require.Equal(t, company, ws.View().Company)
}

type flakyAllocator struct {
	*erp.Sandbox
	calls atomic.Int32
}

func (f *flakyAllocator) Allocate(ctx context.Context, company, salesOrderID string) (erp.AllocationResult, error) {
	if f.calls.Add(1) == 1 {
		return erp.AllocationResult{}, &erp.Error{Op: "allocate", Status: "error", Err: errors.New("timeout")}
	}
	return f.Sandbox.Allocate(ctx, company, salesOrderID)
}

func TestAllocationFailureIsRetriedOnRead(t *testing.T) {
	ctx := context.Background()
	gw := &flakyAllocator{Sandbox: erp.NewSandbox()}
	ws := newWorkspace(t, gw, singleOrder("3"))
	readyOrder(t, ws)

	view, err := ws.SubmitOrder(ctx, "PO-778")
	require.NoError(t, err)
	require.True(t, view.Submission.Inserted)
	require.Equal(t, "timeout", view.Submission.AllocationError)

	alloc, err := ws.Allocations(ctx, "PO-778")
	require.NoError(t, err)
	require.True(t, alloc.Loaded)
	require.Len(t, alloc.Allocations, 1)
	require.EqualValues(t, 2, gw.calls.Load())

	view, err = ws.Order("PO-778")
	require.NoError(t, err)
	require.Empty(t, view.Submission.AllocationError)
}

func TestAllocationsBeforeSubmitAreEmpty(t *testing.T) {
	ws := newWorkspace(t, erp.NewSandbox(), singleOrder("3"))
	alloc, err := ws.Allocations(context.Background(), "PO-778")
	require.NoError(t, err)
	require.False(t, alloc.Loaded)
	require.Empty(t, alloc.Allocations)

	_, err = ws.SubmitLots(context.Background(), "PO-778")
	var ve *checkout.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestManagerExpiresIdleSessions(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m := desk.NewManager(desk.Deps{ERP: erp.NewSandbox()}, 30*time.Minute)
	m.Now = func() time.Time { return now }
	ctx := context.Background()

	ws := m.Create(ctx, []desk.ParsedOrder{singleOrder("1")})
	require.Equal(t, 1, m.Len())

	now = now.Add(20 * time.Minute)
	got, err := m.Get(ctx, ws.ID)
	require.NoError(t, err)
	require.Same(t, ws, got)

	now = now.Add(29 * time.Minute)
	_, err = m.Get(ctx, ws.ID)
	require.NoError(t, err)

	now = now.Add(31 * time.Minute)
	_, err = m.Get(ctx, ws.ID)
	require.ErrorIs(t, err, desk.ErrSessionNotFound)
	require.Zero(t, m.Len())
}

func TestManagerClose(t *testing.T) {
	m := desk.NewManager(desk.Deps{ERP: erp.NewSandbox()}, 0)
	ctx := context.Background()
	ws := m.Create(ctx, []desk.ParsedOrder{singleOrder("1")})

	require.NoError(t, m.Close(ctx, ws.ID))
	require.ErrorIs(t, m.Close(ctx, ws.ID), desk.ErrSessionNotFound)
	_, err := m.Get(ctx, ws.ID)
	require.ErrorIs(t, err, desk.ErrSessionNotFound)
}
