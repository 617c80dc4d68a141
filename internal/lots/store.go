package lots

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/order-desk/internal/order"
)

var (
	ErrDuplicateLot       = errors.New("lot already selected for this line")
	ErrInvalidQuantity    = errors.New("quantity must be greater than zero")
	ErrExceedsRequested   = errors.New("selected quantity exceeds requested quantity")
	ErrExceedsAvailable   = errors.New("selected quantity exceeds available quantity")
	ErrAllocationNotFound = errors.New("allocation not found")
	ErrLotNotFound        = errors.New("lot not found")
	ErrLocked             = errors.New("lots already inserted for this order")
)

type orderState struct {
	current  []Allocation
	original []Allocation
	catalog  []LotList
	locked   bool
}

// Store holds allocations per order. Every mutation validates against a copy
// of the target allocation and commits only when all checks pass.
type Store struct {
	orders map[order.Key]*orderState
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{orders: make(map[order.Key]*orderState)}
}

// Load replaces the current allocations of an order. The first load is kept
// as the original snapshot used by ResetAllocation.
func (s *Store) Load(key order.Key, allocs []Allocation, catalog []LotList) {
	st, ok := s.orders[key]
	if !ok {
		st = &orderState{}
		s.orders[key] = st
	}
	current := CloneAllocations(allocs)
	for i := range current {
		current[i].UnfulfilledQty = current[i].Unfulfilled()
	}
	st.current = current
	if st.original == nil {
		st.original = CloneAllocations(current)
	}
	st.catalog = cloneLists(catalog)
}

// Loaded reports whether allocations were fetched for the order.
func (s *Store) Loaded(key order.Key) bool {
	_, ok := s.orders[key]
	return ok
}

// Allocations returns a deep copy of the current allocations.
func (s *Store) Allocations(key order.Key) []Allocation {
	st, ok := s.orders[key]
	if !ok {
		return nil
	}
	return CloneAllocations(st.current)
}

// Catalog returns a copy of the available lot lists of the order.
func (s *Store) Catalog(key order.Key) []LotList {
	st, ok := s.orders[key]
	if !ok {
		return nil
	}
	return cloneLists(st.catalog)
}

// Candidates lists the available lots for one allocation, matched by item and line number.
func (s *Store) Candidates(key order.Key, allocIdx int) ([]AvailableLot, error) {
	st, alloc, err := s.target(key, allocIdx)
	if err != nil {
		return nil, err
	}
	var out []AvailableLot
	for _, list := range st.catalog {
		if list.ItemNo != alloc.ItemNo {
			continue
		}
		if list.LineNo != "" && alloc.LineNo != "" && list.LineNo != alloc.LineNo {
			continue
		}
		out = append(out, list.Records...)
	}
	return out, nil
}

// Candidate finds a single available lot for an allocation.
func (s *Store) Candidate(key order.Key, allocIdx int, lotNo string) (AvailableLot, error) {
	cands, err := s.Candidates(key, allocIdx)
	if err != nil {
		return AvailableLot{}, err
	}
	lotNo = strings.TrimSpace(lotNo)
	for _, c := range cands {
		if c.LotNo == lotNo {
			return c, nil
		}
	}
	return AvailableLot{}, ErrLotNotFound
}

// Unfulfilled returns the allocations that still miss quantity.
func (s *Store) Unfulfilled(key order.Key) []Allocation {
	var out []Allocation
	for _, a := range s.Allocations(key) {
		if a.UnfulfilledQty.IsPositive() {
			out = append(out, a)
		}
	}
	return out
}

// HasSelection reports whether at least one allocation carries a lot.
func (s *Store) HasSelection(key order.Key) bool {
	st, ok := s.orders[key]
	if !ok {
		return false
	}
	for _, a := range st.current {
		if len(a.Lots) > 0 {
			return true
		}
	}
	return false
}

// Lock freezes the order's allocations after they were inserted.
func (s *Store) Lock(key order.Key) {
	if st, ok := s.orders[key]; ok {
		st.locked = true
	}
}

// Locked reports whether the order's allocations are frozen.
func (s *Store) Locked(key order.Key) bool {
	st, ok := s.orders[key]
	return ok && st.locked
}

// Forget drops all state of the order.
func (s *Store) Forget(key order.Key) {
	delete(s.orders, key)
}

// AddLot assigns a candidate lot to an allocation.
func (s *Store) AddLot(key order.Key, allocIdx int, cand AvailableLot, qty decimal.Decimal) (Allocation, error) {
	return s.mutate(key, allocIdx, func(a *Allocation) error {
		lotNo := strings.TrimSpace(cand.LotNo)
		if lotNo == "" {
			return ErrLotNotFound
		}
		if a.lotIndex(lotNo) >= 0 {
			return ErrDuplicateLot
		}
		if !qty.IsPositive() {
			return ErrInvalidQuantity
		}
		if a.SelectedTotal().Add(qty).GreaterThan(a.RequestedQty) {
			return ErrExceedsRequested
		}
		if cand.AvailableQty.IsPositive() && qty.GreaterThan(cand.AvailableQty) {
			return ErrExceedsAvailable
		}
		po := cand.PO
		if po == "" {
			po = ExtractPO(lotNo)
		}
		a.Lots = append(a.Lots, SelectedLot{
			LotNo:        lotNo,
			PO:           po,
			PostingDate:  cand.PostingDate,
			SelectedQty:  qty,
			AvailableQty: cand.AvailableQty,
		})
		return nil
	})
}

// UpdateLotQty changes the selected quantity of a lot already in the allocation.
func (s *Store) UpdateLotQty(key order.Key, allocIdx int, lotNo string, qty decimal.Decimal) (Allocation, error) {
	return s.mutate(key, allocIdx, func(a *Allocation) error {
		i := a.lotIndex(strings.TrimSpace(lotNo))
		if i < 0 {
			return ErrLotNotFound
		}
		if qty.IsNegative() {
			return ErrInvalidQuantity
		}
		if a.selectedExcept(a.Lots[i].LotNo).Add(qty).GreaterThan(a.RequestedQty) {
			return ErrExceedsRequested
		}
		if avail := a.Lots[i].AvailableQty; avail.IsPositive() && qty.GreaterThan(avail) {
			return ErrExceedsAvailable
		}
		a.Lots[i].SelectedQty = qty
		return nil
	})
}

// RemoveLot drops a lot from the allocation. An allocation may end up empty.
func (s *Store) RemoveLot(key order.Key, allocIdx int, lotNo string) (Allocation, error) {
	return s.mutate(key, allocIdx, func(a *Allocation) error {
		i := a.lotIndex(strings.TrimSpace(lotNo))
		if i < 0 {
			return ErrLotNotFound
		}
		a.Lots = append(a.Lots[:i:i], a.Lots[i+1:]...)
		return nil
	})
}

// ResetAllocation restores one allocation from the original snapshot. It is
// a no-op when the snapshot has no entry at that index.
func (s *Store) ResetAllocation(key order.Key, allocIdx int) (Allocation, error) {
	st, _, err := s.target(key, allocIdx)
	if err != nil {
		return Allocation{}, err
	}
	if st.locked {
		return Allocation{}, ErrLocked
	}
	if allocIdx < len(st.original) {
		st.current[allocIdx] = st.original[allocIdx].Clone()
	}
	return st.current[allocIdx].Clone(), nil
}

func (s *Store) target(key order.Key, allocIdx int) (*orderState, Allocation, error) {
	st, ok := s.orders[key]
	if !ok || allocIdx < 0 || allocIdx >= len(st.current) {
		return nil, Allocation{}, ErrAllocationNotFound
	}
	return st, st.current[allocIdx], nil
}

func (s *Store) mutate(key order.Key, allocIdx int, fn func(*Allocation) error) (Allocation, error) {
	st, alloc, err := s.target(key, allocIdx)
	if err != nil {
		return Allocation{}, err
	}
	if st.locked {
		return Allocation{}, ErrLocked
	}
	next := alloc.Clone()
	if err := fn(&next); err != nil {
		return Allocation{}, err
	}
	next.UnfulfilledQty = next.Unfulfilled()
	st.current[allocIdx] = next
	return next.Clone(), nil
}
