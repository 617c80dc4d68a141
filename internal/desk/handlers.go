package desk

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/order-desk/internal/checkout"
	"github.com/noah-isme/order-desk/internal/common"
	"github.com/noah-isme/order-desk/internal/events"
	"github.com/noah-isme/order-desk/internal/order"
)

var (
	maxDiscountPercent = decimal.NewFromInt(100)
	defaultValidator   = validator.New(validator.WithRequiredStructEnabled())
)

// Handler exposes sessions over HTTP.
type Handler struct {
	Manager  *Manager
	Validate *validator.Validate
	Events   *events.MemoryStore
	// LookupLimit wraps the search endpoints, typically with a rate limiter.
	LookupLimit func(http.Handler) http.Handler
	// Idempotency wraps the two submission endpoints.
	Idempotency func(http.Handler) http.Handler
}

func passthrough(next http.Handler) http.Handler { return next }

// Routes returns the session router, mounted under /api/v1/sessions.
func (h *Handler) Routes() chi.Router {
	limit := h.LookupLimit
	if limit == nil {
		limit = passthrough
	}
	idem := h.Idempotency
	if idem == nil {
		idem = passthrough
	}

	r := chi.NewRouter()
	r.Post("/", h.create)
	r.Route("/{sid}", func(s chi.Router) {
		s.Get("/", h.get)
		s.Delete("/", h.close)
		s.Get("/events", h.events)
		s.Get("/companies", h.companies)
		s.Put("/company", h.selectCompany)

		s.Route("/orders/{ok}", func(o chi.Router) {
			o.Get("/", h.order)
			o.With(limit).Post("/customer/search", h.searchCustomers)
			o.Put("/customer", h.selectCustomer)

			o.Post("/lines", h.addLine)
			o.Post("/lines/reset", h.resetLines)
			o.Delete("/lines/{ik}", h.removeLine)
			o.Put("/lines/{ik}/quantity", h.setQuantity)
			o.Put("/lines/{ik}/discount", h.setDiscount)
			o.With(limit).Post("/lines/{ik}/search", h.searchItems)
			o.Put("/lines/{ik}/item", h.selectItem)

			o.Put("/shipping", h.setShipping)
			o.Put("/ship-to", h.setShipTo)
			o.Put("/discount", h.setOrderDiscount)
			o.With(idem).Post("/submit", h.submitOrder)

			o.Get("/allocations", h.allocations)
			o.Post("/allocations/{ai}/lots", h.addLot)
			o.Put("/allocations/{ai}/lots/{lot}", h.updateLot)
			o.Delete("/allocations/{ai}/lots/{lot}", h.removeLot)
			o.Post("/allocations/{ai}/reset", h.resetAllocation)
			o.With(idem).Post("/lots/submit", h.submitLots)
		})
	})
	return r
}

func (h *Handler) validate() *validator.Validate {
	if h.Validate == nil {
		return defaultValidator
	}
	return h.Validate
}

func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return common.NewAppError("BAD_REQUEST", "invalid JSON body", http.StatusBadRequest, err)
	}
	return h.validate().Struct(dst)
}

func respond(w http.ResponseWriter, status int, v any) {
	common.JSON(w, status, map[string]any{"data": v})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	appErr := toAppError(err)
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).
			Str("session_id", param(r, "sid")).
			Str("order_key", param(r, "ok")).
			Msg("order desk request failed")
	}
	common.WriteError(w, appErr)
}

// param returns a decoded URL parameter. Order keys and lot numbers may
// carry reserved characters such as '#'.
func param(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func orderKey(r *http.Request) order.Key { return order.Key(param(r, "ok")) }

func allocIndex(r *http.Request) (int, error) {
	idx, err := strconv.Atoi(param(r, "ai"))
	if err != nil || idx < 0 {
		return 0, common.NewAppError("BAD_REQUEST", "invalid allocation index", http.StatusBadRequest, err)
	}
	return idx, nil
}

func (h *Handler) session(r *http.Request) (*Workspace, error) {
	return h.Manager.Get(r.Context(), param(r, "sid"))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	ws := h.Manager.Create(r.Context(), req.Orders)
	respond(w, http.StatusCreated, ws.View())
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ws, err := h.session(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, ws.View())
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	if err := h.Manager.Close(r.Context(), param(r, "sid")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	ws, err := h.session(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list := []events.Event{}
	if h.Events != nil {
		list = append(list, h.Events.List(ws.ID)...)
	}
	respond(w, http.StatusOK, list)
}

func (h *Handler) companies(w http.ResponseWriter, r *http.Request) {
	ws, err := h.session(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := ws.Companies(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, list)
}

func (h *Handler) selectCompany(w http.ResponseWriter, r *http.Request) {
	ws, err := h.session(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req companyRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := ws.SelectCompany(r.Context(), req.Company)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, view)
}

func (h *Handler) order(w http.ResponseWriter, r *http.Request) {
	ws, err := h.session(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := ws.Order(orderKey(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, view)
}

func (h *Handler) searchCustomers(w http.ResponseWriter, r *http.Request) {
	ws, err := h.session(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req searchRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	found, err := ws.SearchCustomers(r.Context(), orderKey(r), req.Query)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if found == nil {
		found = []order.Candidate{}
	}
	respond(w, http.StatusOK, found)
}

func (h *Handler) selectCustomer(w http.ResponseWriter, r *http.Request) {
	ws, err := h.session(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req numberRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := ws.SelectCustomer(r.Context(), orderKey(r), req.Number)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, view)
}

func (h *Handler) addLine(w http.ResponseWriter, r *http.Request) {
	ws, err := h.session(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := ws.AddItem(orderKey(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, view)
}

func (h *Handler) resetLines(w http.ResponseWriter, r *http.Request) {
	ws, err := h.session(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := ws.ResetLines(orderKey(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, view)
}

func (h *Handler) removeLine(w http.ResponseWriter, r *http.Request) {
	ws, err := h.session(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := ws.RemoveItem(orderKey(r), param(r, "ik"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, view)
}

func (h *Handler) setQuantity(w http.ResponseWriter, r *http.Request) {
	ws, err := h.session(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req quantityRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	var view OrderView
	switch {
	case req.Step != nil:
		view, err = ws.StepQuantity(orderKey(r), param(r, "ik"), *req.Step)
	case req.Value != nil:
		view, err = ws.SetQuantity(orderKey(r), param(r, "ik"), string(*req.Value))
	default:
		err = common.Validation("either value or step is required", nil)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, view)
}

func (h *Handler) setDiscount(w http.ResponseWriter, r *http.Request) {
	ws, err := h.session(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req amountRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if order.ParseDecimal(string(req.Value)).GreaterThan(maxDiscountPercent) {
		h.fail(w, r, common.Validation("Discount must be between 0 and 100.", map[string]string{"field": "value"}))
		return
	}
	view, err := ws.SetDiscount(orderKey(r), param(r, "ik"), string(req.Value))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, view)
}

func (h *Handler) searchItems(w http.ResponseWriter, r *http.Request) {
	ws, err := h.session(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req searchRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	found, err := ws.SearchItems(r.Context(), orderKey(r), param(r, "ik"), req.Query, req.Category)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if found == nil {
		found = []order.Candidate{}
	}
	respond(w, http.StatusOK, found)
}

func (h *Handler) selectItem(w http.ResponseWriter, r *http.Request) {
	ws, err := h.session(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req numberRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := ws.SelectItem(r.Context(), orderKey(r), param(r, "ik"), req.Number)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, view)
}

func (h *Handler) setShipping(w http.ResponseWriter, r *http.Request) {
	ws, err := h.session(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req shippingRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := ws.SetShipping(orderKey(r), strings.TrimSpace(req.MethodID), strings.TrimSpace(req.AgentCode))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, view)
}

func (h *Handler) setShipTo(w http.ResponseWriter, r *http.Request) {
	ws, err := h.session(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req shipToRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	var custom *checkout.ShipTo
	if strings.TrimSpace(req.Name) != "" || req.Address != nil {
		custom = &checkout.ShipTo{Name: strings.TrimSpace(req.Name)}
		if req.Address != nil {
			custom.Address = *req.Address
		}
	}
	view, err := ws.SetShipTo(orderKey(r), checkout.ShipToMode(req.Mode), custom)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, view)
}

func (h *Handler) setOrderDiscount(w http.ResponseWriter, r *http.Request) {
	ws, err := h.session(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req amountRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := ws.SetOrderDiscount(orderKey(r), string(req.Value))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, view)
}

func (h *Handler) submitOrder(w http.ResponseWriter, r *http.Request) {
	ws, err := h.session(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := ws.SubmitOrder(r.Context(), orderKey(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, view)
}

func (h *Handler) allocations(w http.ResponseWriter, r *http.Request) {
	ws, err := h.session(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := ws.Allocations(r.Context(), orderKey(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, view)
}

func (h *Handler) addLot(w http.ResponseWriter, r *http.Request) {
	ws, err := h.session(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	idx, err := allocIndex(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req lotRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := ws.AddLot(orderKey(r), idx, strings.TrimSpace(req.LotNo), req.Qty)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, view)
}

func (h *Handler) updateLot(w http.ResponseWriter, r *http.Request) {
	ws, err := h.session(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	idx, err := allocIndex(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req lotQtyRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := ws.UpdateLotQty(orderKey(r), idx, param(r, "lot"), req.Qty)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, view)
}

func (h *Handler) removeLot(w http.ResponseWriter, r *http.Request) {
	ws, err := h.session(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	idx, err := allocIndex(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := ws.RemoveLot(orderKey(r), idx, param(r, "lot"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, view)
}

func (h *Handler) resetAllocation(w http.ResponseWriter, r *http.Request) {
	ws, err := h.session(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	idx, err := allocIndex(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := ws.ResetAllocation(orderKey(r), idx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, view)
}

func (h *Handler) submitLots(w http.ResponseWriter, r *http.Request) {
	ws, err := h.session(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := ws.SubmitLots(r.Context(), orderKey(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, view)
}
