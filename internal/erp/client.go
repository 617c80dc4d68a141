package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/order-desk/internal/cache"
	"github.com/noah-isme/order-desk/internal/checkout"
	"github.com/noah-isme/order-desk/internal/obs"
	"github.com/noah-isme/order-desk/internal/order"
	"github.com/noah-isme/order-desk/internal/pricing"
	"github.com/noah-isme/order-desk/internal/resilience"
	"github.com/noah-isme/order-desk/internal/shipping"
)

const maxResponseBytes = 4 << 20

// HTTPClient calls the ERP gateway over HTTP with retries and a circuit
// breaker. Prices are cached per company, customer and item.
type HTTPClient struct {
	BaseURL    string
	HTTP       *http.Client
	PriceCache *cache.Cache
}

// NewHTTPClient wires an instrumented transport behind the resilience wrapper.
func NewHTTPClient(baseURL string, timeout time.Duration, maxAttempts int, backoff time.Duration, breaker *resilience.Breaker, prices *cache.Cache) *HTTPClient {
	return &HTTPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{Transport: &resilience.Transport{
			Base:     otelhttp.NewTransport(http.DefaultTransport),
			Breaker:  breaker,
			Attempts: maxAttempts,
			Backoff:  backoff,
			Jitter:   0.2,
			Timeout:  timeout,
		}},
		PriceCache: prices,
	}
}

// Companies lists the companies available in the ERP.
func (c *HTTPClient) Companies(ctx context.Context) ([]string, error) {
	data, err := c.get(ctx, "companies", "/api/company_names", nil)
	if err != nil {
		return nil, err
	}
	return ParseCompanies(data)
}

// SearchCustomers finds customers whose display name matches query.
func (c *HTTPClient) SearchCustomers(ctx context.Context, company, query string) ([]order.Candidate, error) {
	data, err := c.get(ctx, "search_customers", "/api/get_customer_details", url.Values{
		"company_name":        {company},
		"customer_name_query": {query},
	})
	if err != nil {
		return nil, err
	}
	return ParseCandidates(data)
}

// SearchItems finds items whose display name matches query within category.
func (c *HTTPClient) SearchItems(ctx context.Context, company, query, category string) ([]order.Candidate, error) {
	data, err := c.get(ctx, "search_items", "/api/get_item_details", url.Values{
		"company_name":    {company},
		"item_name_query": {query},
		"item_category":   {category},
	})
	if err != nil {
		return nil, err
	}
	return ParseCandidates(data)
}

// CourierItem looks up the courier fee item by display name.
func (c *HTTPClient) CourierItem(ctx context.Context, company, name string) (*order.ItemRef, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultCourierItemName
	}
	data, err := c.get(ctx, "courier", "/api/get_courier_details", url.Values{
		"company_name":      {company},
		"courier_item_name": {name},
	})
	if err != nil {
		return nil, err
	}
	return ParseCourier(data)
}

// ItemPrice quotes a unit price, serving from cache when possible.
func (c *HTTPClient) ItemPrice(ctx context.Context, company, customerNo, itemNo string) (pricing.LinePrice, error) {
	key := cache.KeyPrice(company, customerNo, itemNo)
	var cached pricing.LinePrice
	if ok, err := c.PriceCache.GetJSON(ctx, key, &cached); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("item_no", itemNo).Msg("price_cache_get_failed")
	} else if ok && cached.ItemNo == strings.TrimSpace(itemNo) {
		return cached, nil
	}
	data, err := c.get(ctx, "price", "/api/get_item_price", url.Values{
		"company_name": {company},
		"customer_no":  {customerNo},
		"item_no":      {itemNo},
	})
	if err != nil {
		return pricing.LinePrice{}, err
	}
	price, err := ParsePrice(data, itemNo)
	if err != nil {
		return pricing.LinePrice{}, err
	}
	if err := c.PriceCache.SetJSON(ctx, key, price); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("item_no", itemNo).Msg("price_cache_set_failed")
	}
	return price, nil
}

// Metadata fetches shipment methods and agents for a company.
func (c *HTTPClient) Metadata(ctx context.Context, company string) (shipping.Metadata, error) {
	data, err := c.get(ctx, "shipping", "/api/get_shipping_details", url.Values{"company_name": {company}})
	if err != nil {
		return shipping.Metadata{}, err
	}
	return ParseShipping(data, company)
}

// Allocate requests a FIFO lot proposal for a created sales order.
func (c *HTTPClient) Allocate(ctx context.Context, company, salesOrderID string) (AllocationResult, error) {
	data, err := c.post(ctx, "allocate", "/api/allocate_sales_order_lots", map[string]string{
		"company_name":   company,
		"sales_order_id": salesOrderID,
	})
	if err != nil {
		return AllocationResult{}, err
	}
	return ParseAllocation(data)
}

// SubmitOrder creates the sales order.
func (c *HTTPClient) SubmitOrder(ctx context.Context, p checkout.OrderPayload) (SubmitResult, error) {
	data, err := c.post(ctx, "submit_order", "/api/insert_so_into_bc", p)
	if err != nil {
		return SubmitResult{}, err
	}
	return ParseSubmit(data, "submit_order")
}

// SubmitLots reserves the selected lots against the sales order.
func (c *HTTPClient) SubmitLots(ctx context.Context, p checkout.LotsPayload) (SubmitResult, error) {
	data, err := c.post(ctx, "submit_lots", "/api/insert_lots_into_bc", p)
	if err != nil {
		return SubmitResult{}, err
	}
	return ParseSubmit(data, "submit_lots")
}

func (c *HTTPClient) get(ctx context.Context, op, path string, q url.Values) ([]byte, error) {
	u := c.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, op, req)
}

func (c *HTTPClient) post(ctx context.Context, op, path string, body any) ([]byte, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(ctx, op, req)
}

func (c *HTTPClient) do(ctx context.Context, op string, req *http.Request) (data []byte, err error) {
	started := time.Now()
	defer func() { obs.ObserveERPCall(op, started, err) }()

	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, &Error{Op: op, Status: "unavailable", Err: errors.Join(ErrUnavailable, err)}
	}
	defer func() { _ = resp.Body.Close() }()
	data, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Op: op, Status: "unavailable", Err: errors.Join(ErrUnavailable, err)}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		e := &Error{Op: op, Status: resp.Status}
		if resp.StatusCode >= http.StatusInternalServerError {
			e.Err = ErrUnavailable
		}
		if obj, derr := decodeObject(data); derr == nil {
			e.Message = obj.str(aliasMessage...)
			e.Detail = obj.str(aliasDetail...)
		}
		return nil, e
	}
	zerolog.Ctx(ctx).Debug().Str("op", op).Int("status", resp.StatusCode).Dur("took", time.Since(started)).Msg("erp_call")
	return data, nil
}
