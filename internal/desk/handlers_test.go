package desk_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/order-desk/internal/common"
	"github.com/noah-isme/order-desk/internal/desk"
	"github.com/noah-isme/order-desk/internal/erp"
	"github.com/noah-isme/order-desk/internal/events"
)

type envelope[T any] struct {
	Data T `json:"data"`
}

type errorEnvelope struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

type testServer struct {
	router  http.Handler
	lookups atomic.Int32
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := &events.MemoryStore{}
	manager := desk.NewManager(desk.Deps{
		ERP:    erp.NewSandbox(),
		Events: &events.Bus{Sinks: []events.Sink{store}},
	}, 0)
	manager.Events = store

	ts := &testServer{}
	h := &desk.Handler{
		Manager: manager,
		Events:  store,
		LookupLimit: func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ts.lookups.Add(1)
				next.ServeHTTP(w, r)
			})
		},
	}
	r := chi.NewRouter()
	r.Mount("/api/v1/sessions", h.Routes())
	ts.router = r
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, "/api/v1/sessions"+path, nil)
	} else {
		req = httptest.NewRequest(method, "/api/v1/sessions"+path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out envelope[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out.Data
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var out errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

const parsedBatch = `{"orders":[
	{"external_document_number":"PO-778","customer_name":"Adatum","notes":"ring bell",
	 "items":[{"fabric_name":"Linen natural","quantity":3,"discount":"5"}]},
	{"external_document_number":"PO-778","customer_name":"Trey","items":[]}
]}`

func (ts *testServer) createSession(t *testing.T) desk.SessionView {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/", parsedBatch)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeData[desk.SessionView](t, rec)
}

func TestCreateSession(t *testing.T) {
	ts := newTestServer(t)
	session := ts.createSession(t)

	require.NotEmpty(t, session.ID)
	require.Len(t, session.Orders, 2)
	require.Equal(t, "PO-778", string(session.Orders[0].Key))
	require.Equal(t, "PO-778#1", string(session.Orders[1].Key))
	require.Equal(t, "ring bell", session.Orders[0].Comment)
	requireDecimal(t, "3", session.Orders[0].Lines[0].Quantity)
	requireDecimal(t, "5", session.Orders[0].Lines[0].DiscountPercent)

	rec := ts.do(t, http.MethodGet, "/"+session.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, session.ID, decodeData[desk.SessionView](t, rec).ID)

	rec = ts.do(t, http.MethodGet, "/"+session.ID+"/orders/PO-778%231", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "PO-778#1", string(decodeData[desk.OrderView](t, rec).Key))
}

func TestCreateSessionRejectsBadInput(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/", `{"orders":[]}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "VALIDATION_FAILED", decodeError(t, rec).Error.Code)

	rec = ts.do(t, http.MethodPost, "/", `{"orders":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "BAD_REQUEST", decodeError(t, rec).Error.Code)
}

func TestUnknownSessionAndOrder(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/does-not-exist", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NOT_FOUND", decodeError(t, rec).Error.Code)

	session := ts.createSession(t)
	rec = ts.do(t, http.MethodGet, "/"+session.ID+"/orders/PO-999", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/"+session.ID, "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(t, http.MethodGet, "/"+session.ID, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLineEditsOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	session := ts.createSession(t)
	base := "/" + session.ID + "/orders/PO-778"

	rec := ts.do(t, http.MethodPut, base+"/lines/PO-778-0/discount", `{"value":"150"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "value", decodeError(t, rec).Error.Details["field"])

	rec = ts.do(t, http.MethodDelete, base+"/lines/PO-778-0", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "CONSTRAINT_VIOLATION", decodeError(t, rec).Error.Code)

	rec = ts.do(t, http.MethodPut, base+"/lines/PO-778-0/quantity", `{"value":"2,5"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	requireDecimal(t, "2.5", decodeData[desk.OrderView](t, rec).Lines[0].Quantity)

	rec = ts.do(t, http.MethodPut, base+"/lines/PO-778-0/quantity", `{"step":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	requireDecimal(t, "3", decodeData[desk.OrderView](t, rec).Lines[0].Quantity)

	rec = ts.do(t, http.MethodPut, base+"/lines/PO-778-0/quantity", `{"step":3}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(t, http.MethodPost, base+"/lines", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, decodeData[desk.OrderView](t, rec).Lines, 2)

	rec = ts.do(t, http.MethodPost, base+"/lines/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decodeData[desk.OrderView](t, rec).Lines, 1)

	rec = ts.do(t, http.MethodPost, base+"/customer/search", `{"query":"adatum"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSubmissionFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	session := ts.createSession(t)
	sid := "/" + session.ID
	base := sid + "/orders/PO-778"

	rec := ts.do(t, http.MethodGet, sid+"/companies", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, decodeData[[]string](t, rec), company)

	rec = ts.do(t, http.MethodPut, sid+"/company", `{"company":"CRONUS Textiles"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decodeData[desk.SessionView](t, rec)
	require.NotNil(t, view.Shipping)
	require.Len(t, view.Shipping.Methods, 2)

	rec = ts.do(t, http.MethodPost, base+"/customer/search", `{"query":"adatum"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = ts.do(t, http.MethodPut, base+"/customer", `{"number":"C00010"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, base+"/lines/PO-778-0/search", `{"query":"linen natural"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = ts.do(t, http.MethodPut, base+"/lines/PO-778-0/item", `{"number":"FAB-1001"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.EqualValues(t, 2, ts.lookups.Load())

	rec = ts.do(t, http.MethodPost, base+"/submit", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "Please select a Shipping Method.", decodeError(t, rec).Error.Message)

	rec = ts.do(t, http.MethodPut, base+"/shipping", `{"method_id":"`+deliveryMethod+`","agent_code":"DHL"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, base+"/submit", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	submitted := decodeData[desk.OrderView](t, rec)
	require.True(t, submitted.Submission.Inserted)
	require.Equal(t, "S-ORD101001", submitted.Submission.SalesOrderNo)

	rec = ts.do(t, http.MethodPut, base+"/lines/PO-778-0/quantity", `{"value":"4"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodGet, base+"/allocations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	alloc := decodeData[desk.AllocationView](t, rec)
	require.True(t, alloc.Loaded)
	require.Len(t, alloc.Allocations, 1)

	rec = ts.do(t, http.MethodPut, base+"/allocations/0/lots/L1%2324060015-1520", `{"qty":2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = ts.do(t, http.MethodPost, base+"/allocations/0/lots", `{"lot_no":"L3#24070002-0100","qty":1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = ts.do(t, http.MethodPost, base+"/allocations/0/lots", `{"lot_no":"L3#24070002-0100","qty":1}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	rec = ts.do(t, http.MethodPost, base+"/allocations/x/lots", `{"lot_no":"L3#24070002-0100","qty":1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = ts.do(t, http.MethodPut, base+"/allocations/5/lots/L1%2324060015-1520", `{"qty":1}`)
	require.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	rec = ts.do(t, http.MethodPut, base+"/allocations/0/lots/NOPE", `{"qty":1}`)
	require.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	require.Equal(t, common.CodeNotFound, decodeError(t, rec).Error.Code)

	rec = ts.do(t, http.MethodPost, base+"/lots/submit", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.True(t, decodeData[desk.AllocationView](t, rec).Locked)

	rec = ts.do(t, http.MethodDelete, base+"/allocations/0/lots/L3%2324070002-0100", "")
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodGet, sid+"/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	topics := map[string]bool{}
	for _, ev := range decodeData[[]events.Event](t, rec) {
		topics[ev.Topic] = true
	}
	require.True(t, topics[events.TopicSessionCreated])
	require.True(t, topics[events.TopicOrderSubmitted])
	require.True(t, topics[events.TopicLotsSubmitted])
}
