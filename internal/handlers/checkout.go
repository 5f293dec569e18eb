package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sneakerhub/storefront/internal/domain"
	"github.com/sneakerhub/storefront/internal/platform/httpx"
	"github.com/sneakerhub/storefront/internal/services"
)

const maxHistoryLimit = 100

// CheckoutHandlers exposes the device scoped checkout endpoints.
type CheckoutHandlers struct {
	checkout    services.CheckoutService
	idempotency func(http.Handler) http.Handler
}

// CheckoutOption customises CheckoutHandlers.
type CheckoutOption func(*CheckoutHandlers)

// WithCheckoutIdempotency wraps the submit endpoint with the given idempotency middleware.
func WithCheckoutIdempotency(mw func(http.Handler) http.Handler) CheckoutOption {
	return func(h *CheckoutHandlers) {
		h.idempotency = mw
	}
}

// NewCheckoutHandlers constructs checkout handlers backed by the checkout service.
func NewCheckoutHandlers(checkout services.CheckoutService, opts ...CheckoutOption) *CheckoutHandlers {
	h := &CheckoutHandlers{checkout: checkout}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the /checkout endpoints onto the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/normalize", h.normalize)
	r.Post("/validate", h.validate)
	if h.idempotency != nil {
		r.With(h.idempotency).Post("/submit", h.submit)
	} else {
		r.Post("/submit", h.submit)
	}
	r.Get("/history", h.history)
}

type normalizeRequest struct {
	Field    string `json:"field"`
	Value    string `json:"value"`
	Previous string `json:"previous"`
}

type normalizeResponse struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type validateRequest struct {
	Form map[string]string `json:"form"`
}

type validateResponse struct {
	Valid  bool              `json:"valid"`
	Errors map[string]string `json:"errors"`
}

type submitRequest struct {
	Form      map[string]string `json:"form"`
	ClearCart bool              `json:"clearCart"`
}

type submitResponse struct {
	State        string               `json:"state"`
	Errors       map[string]string    `json:"errors,omitempty"`
	Message      string               `json:"message,omitempty"`
	Confirmation *confirmationPayload `json:"confirmation,omitempty"`
}

type confirmationItemPayload struct {
	ID        string `json:"id"`
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
}

type confirmationPayload struct {
	ID          string                    `json:"id"`
	CardType    string                    `json:"cardType"`
	CardLast4   string                    `json:"cardLast4"`
	FirstName   string                    `json:"firstName"`
	LastName    string                    `json:"lastName"`
	Email       string                    `json:"email"`
	Phone       string                    `json:"phone"`
	Address     string                    `json:"address"`
	City        string                    `json:"city"`
	PostalCode  string                    `json:"postalCode"`
	Country     string                    `json:"country,omitempty"`
	Items       []confirmationItemPayload `json:"items"`
	Total       int64                     `json:"total"`
	ConfirmedAt string                    `json:"confirmedAt"`
}

type historyResponse struct {
	Items []confirmationPayload `json:"items"`
}

func (h *CheckoutHandlers) normalize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.ready(ctx, w); !ok {
		return
	}
	var req normalizeRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}
	field := strings.TrimSpace(req.Field)
	if field == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "field is required", http.StatusBadRequest))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, normalizeResponse{
		Field: field,
		Value: h.checkout.Normalize(field, req.Value, req.Previous),
	})
}

func (h *CheckoutHandlers) validate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.ready(ctx, w); !ok {
		return
	}
	var req validateRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}
	errs := h.checkout.Validate(ctx, domain.CheckoutForm(req.Form))
	out := make(map[string]string, len(errs))
	for field, msg := range errs {
		out[field] = msg
	}
	httpx.WriteJSON(w, http.StatusOK, validateResponse{Valid: errs.Empty(), Errors: out})
}

func (h *CheckoutHandlers) submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deviceID, ok := h.ready(ctx, w)
	if !ok {
		return
	}
	var req submitRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}

	result, err := h.checkout.Submit(ctx, services.SubmitCheckoutCommand{
		DeviceID:  deviceID,
		Form:      domain.CheckoutForm(req.Form),
		ClearCart: req.ClearCart,
	})
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}

	resp := submitResponse{State: string(result.State), Message: result.Message}
	if len(result.Errors) > 0 {
		resp.Errors = make(map[string]string, len(result.Errors))
		for field, msg := range result.Errors {
			resp.Errors[field] = msg
		}
	}
	if result.Confirmation != nil {
		payload := buildConfirmationPayload(*result.Confirmation)
		resp.Confirmation = &payload
	}

	status := http.StatusOK
	switch result.State {
	case services.CheckoutStateConfirmed:
		status = http.StatusCreated
	case services.CheckoutStateRejected:
		status = http.StatusUnprocessableEntity
	}
	httpx.WriteJSON(w, status, resp)
}

func (h *CheckoutHandlers) history(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deviceID, ok := h.ready(ctx, w)
	if !ok {
		return
	}
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be a positive integer", http.StatusBadRequest))
			return
		}
		limit = min(parsed, maxHistoryLimit)
	}

	records, err := h.checkout.History(ctx, deviceID, limit)
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	items := make([]confirmationPayload, 0, len(records))
	for _, record := range records {
		items = append(items, buildConfirmationPayload(record))
	}
	httpx.WriteJSON(w, http.StatusOK, historyResponse{Items: items})
}

func (h *CheckoutHandlers) ready(ctx context.Context, w http.ResponseWriter) (string, bool) {
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_service_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	return deviceFromRequest(ctx, w)
}

func buildConfirmationPayload(c services.CheckoutConfirmation) confirmationPayload {
	items := make([]confirmationItemPayload, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, confirmationItemPayload{
			ID:        item.ID,
			ProductID: item.ProductID,
			Name:      item.Name,
			Size:      item.Size,
			Color:     item.Color,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return confirmationPayload{
		ID:          c.ID,
		CardType:    string(c.CardType),
		CardLast4:   c.CardLast4,
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		Email:       c.Email,
		Phone:       c.Phone,
		Address:     c.Address,
		City:        c.City,
		PostalCode:  c.PostalCode,
		Country:     c.Country,
		Items:       items,
		Total:       c.Total,
		ConfirmedAt: formatTime(c.ConfirmedAt),
	}
}

func writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cart has no items", http.StatusConflict))
	case errors.Is(err, services.ErrCheckoutInProgress):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_in_progress", "a submission is already running", http.StatusConflict))
	case errors.Is(err, services.ErrPaymentFailed):
		httpx.WriteError(ctx, w, httpx.NewError("payment_failed", "payment could not be submitted", http.StatusPaymentRequired))
	case errors.Is(err, services.ErrCheckoutRecordFailed):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout could not be recorded", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", err.Error(), http.StatusInternalServerError))
	}
}
