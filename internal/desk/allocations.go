package desk

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/order-desk/internal/obs"
	"github.com/noah-isme/order-desk/internal/order"
)

// AddLot assigns a catalog lot to allocation allocIdx.
func (w *Workspace) AddLot(key order.Key, allocIdx int, lotNo string, qty decimal.Decimal) (AllocationView, error) {
	return w.mutateLots(key, "add", func() error {
		cand, err := w.lots.Candidate(key, allocIdx, lotNo)
		if err != nil {
			return err
		}
		_, err = w.lots.AddLot(key, allocIdx, cand, qty)
		return err
	})
}

// UpdateLotQty changes the selected quantity of a lot.
func (w *Workspace) UpdateLotQty(key order.Key, allocIdx int, lotNo string, qty decimal.Decimal) (AllocationView, error) {
	return w.mutateLots(key, "update", func() error {
		_, err := w.lots.UpdateLotQty(key, allocIdx, lotNo, qty)
		return err
	})
}

// RemoveLot drops a lot from an allocation.
func (w *Workspace) RemoveLot(key order.Key, allocIdx int, lotNo string) (AllocationView, error) {
	return w.mutateLots(key, "remove", func() error {
		_, err := w.lots.RemoveLot(key, allocIdx, lotNo)
		return err
	})
}

// ResetAllocation restores an allocation to its first fetched state.
func (w *Workspace) ResetAllocation(key order.Key, allocIdx int) (AllocationView, error) {
	return w.mutateLots(key, "reset", func() error {
		_, err := w.lots.ResetAllocation(key, allocIdx)
		return err
	})
}

func (w *Workspace) mutateLots(key order.Key, op string, fn func() error) (AllocationView, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	st, err := w.state(key)
	if err != nil {
		return AllocationView{}, err
	}
	if st.sub.SubmittingLots {
		return AllocationView{}, ErrSubmitInProgress
	}
	err = fn()
	obs.ObserveLotMutation(op, err)
	if err != nil {
		return AllocationView{}, err
	}
	return w.allocationViewLocked(key), nil
}
