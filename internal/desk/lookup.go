package desk

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/order-desk/internal/events"
	"github.com/noah-isme/order-desk/internal/order"
	"github.com/noah-isme/order-desk/internal/shipping"
)

// Companies lists the companies known to the ERP.
func (w *Workspace) Companies(ctx context.Context) ([]string, error) {
	return w.deps.ERP.Companies(ctx)
}

// SelectCompany switches the session company. The courier item and the
// shipping metadata are fetched first; nothing changes unless both arrive.
// Fetched prices are then dropped and requested again for every resolved
// line.
func (w *Workspace) SelectCompany(ctx context.Context, company string) (SessionView, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		return SessionView{}, ErrNoCompany
	}

	w.mu.Lock()
	err := w.companySwitchAllowedLocked(company)
	w.mu.Unlock()
	if err != nil {
		return SessionView{}, err
	}

	logger := zerolog.Ctx(ctx).With().Str("session_id", w.ID).Str("company", company).Logger()

	item, err := w.deps.ERP.CourierItem(ctx, company, w.deps.CourierItemName)
	if err != nil {
		logger.Warn().Err(err).Msg("courier item lookup failed")
		return SessionView{}, err
	}
	meta, err := w.deps.ERP.Metadata(ctx, company)
	if err != nil {
		logger.Warn().Err(err).Msg("shipping metadata lookup failed")
		return SessionView{}, err
	}

	w.mu.Lock()
	if err := w.companySwitchAllowedLocked(company); err != nil {
		w.mu.Unlock()
		return SessionView{}, err
	}
	changed := w.company != company
	if changed {
		w.company = company
		for _, st := range w.orders {
			st.shippingMethodID = ""
			st.shippingAgentCode = ""
			w.prices.ForgetOrder(st.order.Key)
		}
	}
	w.applyCourierLocked(item)
	w.applyShippingLocked(meta)
	w.mu.Unlock()

	if changed {
		w.emit(ctx, events.TopicCompanySelected, w.aggregate(""), map[string]string{"company": company})
		if err := w.refreshPrices(ctx, ""); err != nil {
			logger.Warn().Err(err).Msg("price refresh failed")
		}
	}
	return w.View(), nil
}

// companySwitchAllowedLocked refuses a different company once an order was
// inserted or while one is being submitted.
func (w *Workspace) companySwitchAllowedLocked(company string) error {
	if w.company == company {
		return nil
	}
	for _, st := range w.orders {
		if st.sub.Inserted {
			return ErrCompanyLocked
		}
		if st.sub.Submitting {
			return ErrSubmitInProgress
		}
	}
	return nil
}

func (w *Workspace) applyCourierLocked(item *order.ItemRef) {
	c := order.Courier{Item: item}
	switch {
	case w.deps.CourierFee != nil:
		fee := *w.deps.CourierFee
		c.Fee = &fee
	case item != nil:
		fee := item.UnitPrice
		c.Fee = &fee
	}
	w.courier = c
	for _, st := range w.orders {
		if st.sub.Inserted {
			continue
		}
		for i := range st.order.Lines {
			l := &st.order.Lines[i]
			if l.Courier && item != nil {
				ref := *item
				l.Item = &ref
			}
		}
		w.recomputeCourier(st)
	}
}

func (w *Workspace) applyShippingLocked(meta shipping.Metadata) {
	if strings.TrimSpace(meta.Company) == "" {
		meta.Company = w.company
	}
	w.shipping = &meta
}

// SearchCustomers replaces the order's customer candidates with the results
// of query.
func (w *Workspace) SearchCustomers(ctx context.Context, key order.Key, query string) ([]order.Candidate, error) {
	w.mu.Lock()
	if _, err := w.editable(key); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	company := w.company
	w.mu.Unlock()
	if company == "" {
		return nil, ErrNoCompany
	}

	found, err := w.deps.ERP.SearchCustomers(ctx, company, strings.TrimSpace(query))
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	st, err := w.editable(key)
	if err != nil {
		return nil, err
	}
	if w.company != company {
		return nil, ErrNoCompany
	}
	st.order.CustomerCandidates = found
	return found, nil
}

// SelectCustomer resolves the customer from the latest search results and
// requests customer specific prices for every resolved line.
func (w *Workspace) SelectCustomer(ctx context.Context, key order.Key, number string) (OrderView, error) {
	number = strings.TrimSpace(number)
	w.mu.Lock()
	st, err := w.editable(key)
	if err != nil {
		w.mu.Unlock()
		return OrderView{}, err
	}
	var picked *order.Candidate
	for _, c := range st.order.CustomerCandidates {
		if strings.TrimSpace(c.Number) == number {
			picked = &c
			break
		}
	}
	if picked == nil || number == "" {
		w.mu.Unlock()
		return OrderView{}, fmt.Errorf("customer %q: %w", number, ErrNotCandidate)
	}
	party := order.PartyFromCandidate(*picked)
	st.order.Customer = &party
	w.prices.ForgetOrder(key)
	w.mu.Unlock()

	w.emit(ctx, events.TopicCustomerSelected, w.aggregate(key), map[string]string{"customer": number})
	if err := w.refreshPrices(ctx, key); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("session_id", w.ID).Str("order_key", string(key)).Msg("price refresh failed")
	}
	return w.Order(key)
}

// SearchItems replaces the candidates of one line with the results of query.
func (w *Workspace) SearchItems(ctx context.Context, key order.Key, itemKey, query, category string) ([]order.Candidate, error) {
	w.mu.Lock()
	st, err := w.editable(key)
	if err != nil {
		w.mu.Unlock()
		return nil, err
	}
	line, ok := st.order.Line(itemKey)
	if !ok {
		w.mu.Unlock()
		return nil, order.ErrLineNotFound
	}
	if line.Courier {
		w.mu.Unlock()
		return nil, ErrCourierLine
	}
	company := w.company
	w.mu.Unlock()
	if company == "" {
		return nil, ErrNoCompany
	}

	found, err := w.deps.ERP.SearchItems(ctx, company, strings.TrimSpace(query), strings.TrimSpace(category))
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	st, err = w.editable(key)
	if err != nil {
		return nil, err
	}
	line, ok = st.order.Line(itemKey)
	if !ok {
		return nil, order.ErrLineNotFound
	}
	line.Candidates = found
	return found, nil
}

// SelectItem resolves a line's item from its latest search results and
// fetches the price when no entry tagged with the item exists yet. A failed
// fetch keeps the selection and the previous price entry.
func (w *Workspace) SelectItem(ctx context.Context, key order.Key, itemKey, number string) (OrderView, error) {
	number = strings.TrimSpace(number)
	w.mu.Lock()
	st, err := w.editable(key)
	if err != nil {
		w.mu.Unlock()
		return OrderView{}, err
	}
	line, ok := st.order.Line(itemKey)
	if !ok {
		w.mu.Unlock()
		return OrderView{}, order.ErrLineNotFound
	}
	if line.Courier {
		w.mu.Unlock()
		return OrderView{}, ErrCourierLine
	}
	var picked *order.Candidate
	for _, c := range line.Candidates {
		if strings.TrimSpace(c.Number) == number {
			picked = &c
			break
		}
	}
	if picked == nil || number == "" {
		w.mu.Unlock()
		return OrderView{}, fmt.Errorf("item %q: %w", number, ErrNotCandidate)
	}
	item := order.ItemFromCandidate(*picked)
	line.Item = &item
	if strings.TrimSpace(item.DisplayName) != "" {
		line.Name = item.DisplayName
	}
	w.mu.Unlock()

	w.emit(ctx, events.TopicItemSelected, w.aggregate(key), map[string]string{"line": itemKey, "item": number})
	if err := w.fetchPrice(ctx, key, itemKey, number); err != nil {
		return OrderView{}, err
	}
	return w.Order(key)
}

type priceRequest struct {
	key     order.Key
	itemKey string
	itemNo  string
}

// refreshPrices fetches every missing price of one order, or of all orders
// when key is empty. The first failure is returned after all attempts.
func (w *Workspace) refreshPrices(ctx context.Context, key order.Key) error {
	w.mu.Lock()
	var reqs []priceRequest
	for _, st := range w.orders {
		if key != "" && st.order.Key != key {
			continue
		}
		if st.sub.Inserted {
			continue
		}
		for _, l := range st.order.Lines {
			if l.Courier {
				continue
			}
			if w.prices.NeedsFetch(st.order.LineKey(l.ID), l.ItemNumber()) {
				reqs = append(reqs, priceRequest{key: st.order.Key, itemKey: l.ID, itemNo: l.ItemNumber()})
			}
		}
	}
	w.mu.Unlock()

	var first error
	for _, r := range reqs {
		if err := w.fetchPrice(ctx, r.key, r.itemKey, r.itemNo); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (w *Workspace) fetchPrice(ctx context.Context, key order.Key, itemKey, itemNo string) error {
	w.mu.Lock()
	st, err := w.state(key)
	if err != nil {
		w.mu.Unlock()
		return err
	}
	lk := st.order.LineKey(itemKey)
	if !w.prices.NeedsFetch(lk, itemNo) {
		w.mu.Unlock()
		return nil
	}
	company := w.company
	customerNo := ""
	if st.order.Customer != nil {
		customerNo = st.order.Customer.Number
	}
	w.mu.Unlock()
	if company == "" {
		return nil
	}

	price, err := w.deps.ERP.ItemPrice(ctx, company, customerNo, itemNo)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).
			Str("session_id", w.ID).
			Str("order_key", string(key)).
			Str("item_no", itemNo).
			Msg("price fetch failed")
		return err
	}
	if price.ItemNo == "" {
		price.ItemNo = itemNo
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.company != company {
		return nil
	}
	st, err = w.state(key)
	if err != nil {
		return nil
	}
	line, ok := st.order.Line(itemKey)
	if !ok {
		return nil
	}
	current := ""
	if st.order.Customer != nil {
		current = st.order.Customer.Number
	}
	if current != customerNo {
		return nil
	}
	if line.ItemNumber() != itemNo {
		// a newer selection already has its own price
		if _, fresh := w.prices.Lookup(lk, line.ItemNumber()); fresh {
			return nil
		}
	}
	w.prices.Put(lk, price)
	return nil
}
