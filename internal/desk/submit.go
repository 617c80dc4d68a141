package desk

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/order-desk/internal/checkout"
	"github.com/noah-isme/order-desk/internal/erp"
	"github.com/noah-isme/order-desk/internal/events"
	"github.com/noah-isme/order-desk/internal/lock"
	"github.com/noah-isme/order-desk/internal/lots"
	"github.com/noah-isme/order-desk/internal/obs"
	"github.com/noah-isme/order-desk/internal/order"
)

const (
	kindOrder = "order"
	kindLots  = "lots"
)

// SubmitOrder validates the order, sends it to the ERP and, on success,
// makes it read-only and fetches its lot allocations. An allocation failure
// does not undo the insertion; it is recorded and retried by Allocations.
func (w *Workspace) SubmitOrder(ctx context.Context, key order.Key) (OrderView, error) {
	w.mu.Lock()
	st, err := w.state(key)
	if err != nil {
		w.mu.Unlock()
		return OrderView{}, err
	}
	if st.sub.Inserted {
		w.mu.Unlock()
		return OrderView{}, ErrAlreadyInserted
	}
	if st.sub.Submitting {
		w.mu.Unlock()
		return OrderView{}, ErrSubmitInProgress
	}
	snapshot := st.order.Clone()
	payload, err := checkout.BuildOrder(checkout.OrderInput{
		Company:           w.company,
		Order:             &snapshot,
		Courier:           w.courier,
		Discounts:         w.discounts,
		ShippingMethodID:  st.shippingMethodID,
		ShippingAgentCode: st.shippingAgentCode,
		ShipTo:            st.shipTo,
		OrderDiscount:     st.orderDiscount,
	})
	if err != nil {
		st.sub.LastError = erp.UserMessage(err)
		w.mu.Unlock()
		obs.ObserveSubmission(kindOrder, err)
		return OrderView{}, err
	}
	st.sub.Submitting = true
	st.sub.LastError = ""
	w.mu.Unlock()
	defer w.clearFlag(st, kindOrder)

	logger := zerolog.Ctx(ctx).With().Str("session_id", w.ID).Str("order_key", string(key)).Logger()

	var res erp.SubmitResult
	err = w.guard(ctx, key, kindOrder, func(ctx context.Context) error {
		var callErr error
		res, callErr = w.deps.ERP.SubmitOrder(ctx, payload)
		return callErr
	})
	obs.ObserveSubmission(kindOrder, err)
	if err != nil {
		w.mu.Lock()
		st.sub.LastError = erp.UserMessage(err)
		w.mu.Unlock()
		logger.Error().Err(err).Msg("order submission failed")
		w.emit(ctx, events.TopicOrderFailed, w.aggregate(key), map[string]string{"error": erp.UserMessage(err)})
		return OrderView{}, err
	}

	w.mu.Lock()
	st.sub.Inserted = true
	st.sub.SalesOrderID = res.SalesOrderID
	st.sub.SalesOrderNo = res.SalesOrderNo
	w.mu.Unlock()

	logger.Info().Str("sales_order_no", res.SalesOrderNo).Msg("order submitted")
	w.emit(ctx, events.TopicOrderSubmitted, w.aggregate(key), res)

	if err := w.loadAllocations(ctx, st); err != nil {
		logger.Warn().Err(err).Str("sales_order_no", res.SalesOrderNo).Msg("allocation fetch failed")
	}
	return w.Order(key)
}

// Allocations returns the order's allocation state, fetching it first when
// the order was inserted but no allocations were loaded yet.
func (w *Workspace) Allocations(ctx context.Context, key order.Key) (AllocationView, error) {
	w.mu.Lock()
	st, err := w.state(key)
	if err != nil {
		w.mu.Unlock()
		return AllocationView{}, err
	}
	needsFetch := st.sub.Inserted && !w.lots.Loaded(key)
	w.mu.Unlock()

	if needsFetch {
		if err := w.loadAllocations(ctx, st); err != nil {
			return AllocationView{}, err
		}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.allocationViewLocked(key), nil
}

func (w *Workspace) loadAllocations(ctx context.Context, st *orderState) error {
	w.mu.Lock()
	company := w.company
	soID := st.sub.SalesOrderID
	if soID == "" {
		soID = st.sub.SalesOrderNo
	}
	key := st.order.Key
	w.mu.Unlock()

	res, err := w.deps.ERP.Allocate(ctx, company, soID)

	w.mu.Lock()
	if err != nil {
		st.sub.AllocationError = erp.UserMessage(err)
		w.mu.Unlock()
		return err
	}
	st.sub.AllocationError = ""
	w.lots.Load(key, res.Allocations, res.Catalog)
	w.mu.Unlock()

	w.emit(ctx, events.TopicLotsAllocated, w.aggregate(key), map[string]int{"allocations": len(res.Allocations)})
	return nil
}

// SubmitLots sends the selected lots of an inserted order. On success the
// allocations are locked.
func (w *Workspace) SubmitLots(ctx context.Context, key order.Key) (AllocationView, error) {
	w.mu.Lock()
	st, err := w.state(key)
	if err != nil {
		w.mu.Unlock()
		return AllocationView{}, err
	}
	if st.sub.LotsInserted {
		w.mu.Unlock()
		return AllocationView{}, lots.ErrLocked
	}
	if st.sub.SubmittingLots {
		w.mu.Unlock()
		return AllocationView{}, ErrSubmitInProgress
	}
	payload, err := checkout.BuildLots(checkout.LotsInput{
		Company:      w.company,
		SalesOrderNo: st.sub.SalesOrderNo,
		Allocations:  w.lots.Allocations(key),
	})
	if err != nil {
		st.sub.LastError = erp.UserMessage(err)
		w.mu.Unlock()
		obs.ObserveSubmission(kindLots, err)
		return AllocationView{}, err
	}
	st.sub.SubmittingLots = true
	st.sub.LastError = ""
	w.mu.Unlock()
	defer w.clearFlag(st, kindLots)

	logger := zerolog.Ctx(ctx).With().
		Str("session_id", w.ID).
		Str("order_key", string(key)).
		Str("sales_order_no", payload.SalesOrderNo).
		Logger()

	var res erp.SubmitResult
	err = w.guard(ctx, key, kindLots, func(ctx context.Context) error {
		var callErr error
		res, callErr = w.deps.ERP.SubmitLots(ctx, payload)
		return callErr
	})
	obs.ObserveSubmission(kindLots, err)
	if err != nil {
		w.mu.Lock()
		st.sub.LastError = erp.UserMessage(err)
		w.mu.Unlock()
		logger.Error().Err(err).Msg("lot submission failed")
		w.emit(ctx, events.TopicLotsFailed, w.aggregate(key), map[string]string{"error": erp.UserMessage(err)})
		return AllocationView{}, err
	}

	w.mu.Lock()
	st.sub.LotsInserted = true
	w.lots.Lock(key)
	view := w.allocationViewLocked(key)
	w.mu.Unlock()

	logger.Info().Msg("lots submitted")
	w.emit(ctx, events.TopicLotsSubmitted, w.aggregate(key), res)
	return view, nil
}

func (w *Workspace) clearFlag(st *orderState, kind string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if kind == kindLots {
		st.sub.SubmittingLots = false
		return
	}
	st.sub.Submitting = false
}

// guard runs fn under the distributed submit lock when one is configured.
func (w *Workspace) guard(ctx context.Context, key order.Key, kind string, fn func(context.Context) error) error {
	if w.deps.Locker == nil || w.deps.Locker.R == nil {
		return fn(ctx)
	}
	ttl := w.deps.LockTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	err := w.deps.Locker.TryWithLock(ctx, lock.SubmitKey(w.ID, string(key), kind), ttl, fn)
	if errors.Is(err, lock.ErrHeld) {
		return ErrSubmitInProgress
	}
	return err
}
