package erp_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/order-desk/internal/cache"
	"github.com/noah-isme/order-desk/internal/checkout"
	"github.com/noah-isme/order-desk/internal/erp"
	"github.com/noah-isme/order-desk/internal/resilience"
)

func newClient(t *testing.T, h http.Handler, prices *cache.Cache) *erp.HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return erp.NewHTTPClient(srv.URL, time.Second, 2, time.Millisecond, resilience.NewBreaker(20, 0.9, time.Second), prices)
}

func TestHTTPClientPriceIsCached(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/get_item_price", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.Equal(t, "FAB-1", r.URL.Query().Get("item_no"))
		_, _ = w.Write([]byte(`{"unitPrice":"12.5","unitOfMeasureCode":"M"}`))
	})
	cl := newClient(t, mux, cache.New(rdb, time.Minute))

	for i := 0; i < 2; i++ {
		p, err := cl.ItemPrice(context.Background(), "CRONUS", "C1", "FAB-1")
		require.NoError(t, err)
		require.Equal(t, "FAB-1", p.ItemNo)
		require.Equal(t, "12.5", p.UnitPrice.String())
		require.Equal(t, "M", p.UnitOfMeasureCode)
	}
	require.Equal(t, int32(1), calls.Load())
}

func TestHTTPClientSubmitOrder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/insert_so_into_bc", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var p checkout.OrderPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		if p.CustomerID == "BLOCKED" {
			_, _ = w.Write([]byte(`{"status":"error","message":"customer blocked"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"success","sales_order_id":"id-1","sales_order_no":"SO-1"}`))
	})
	cl := newClient(t, mux, nil)

	res, err := cl.SubmitOrder(context.Background(), checkout.OrderPayload{Company: "CRONUS", CustomerID: "C1"})
	require.NoError(t, err)
	require.Equal(t, "SO-1", res.SalesOrderNo)

	_, err = cl.SubmitOrder(context.Background(), checkout.OrderPayload{Company: "CRONUS", CustomerID: "BLOCKED"})
	var ee *erp.Error
	require.ErrorAs(t, err, &ee)
	require.Equal(t, "customer blocked", ee.Message)
}

func TestHTTPClientUpstreamFailure(t *testing.T) {
	var calls atomic.Int32
	cl := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}), nil)

	_, err := cl.Companies(context.Background())
	var ee *erp.Error
	require.ErrorAs(t, err, &ee)
	require.True(t, errors.Is(err, erp.ErrUnavailable))
	require.Equal(t, int32(2), calls.Load())
}

func TestHTTPClientClientErrorCarriesMessage(t *testing.T) {
	cl := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"company_name is required"}`))
	}), nil)

	_, err := cl.SearchCustomers(context.Background(), "", "ada")
	var ee *erp.Error
	require.ErrorAs(t, err, &ee)
	require.Equal(t, "400 Bad Request", ee.Status)
	require.Equal(t, "company_name is required", ee.Message)
}
