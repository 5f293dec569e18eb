package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sneakerhub/storefront/internal/platform/httpx"
	"github.com/sneakerhub/storefront/internal/services"
)

const (
	defaultCartTimeout   = 30 * time.Second
	defaultSSEKeepAlive  = 15 * time.Second
	cartEventName        = "cart"
	cartEventContentType = "text/event-stream"
)

// CartHandlers exposes the device scoped cart endpoints. Device verification happens in the
// middleware mounted on the /cart group.
type CartHandlers struct {
	carts     services.CartService
	formatter *services.PriceFormatter
	keepAlive time.Duration
}

// CartOption customises CartHandlers.
type CartOption func(*CartHandlers)

// WithCartPriceFormatter sets the formatter used for the display amounts in cart payloads.
func WithCartPriceFormatter(f *services.PriceFormatter) CartOption {
	return func(h *CartHandlers) {
		if f != nil {
			h.formatter = f
		}
	}
}

// WithCartKeepAlive overrides the interval between SSE keep-alive comments.
func WithCartKeepAlive(d time.Duration) CartOption {
	return func(h *CartHandlers) {
		if d > 0 {
			h.keepAlive = d
		}
	}
}

// NewCartHandlers constructs cart handlers backed by the cart service.
func NewCartHandlers(carts services.CartService, opts ...CartOption) *CartHandlers {
	h := &CartHandlers{
		carts:     carts,
		formatter: services.NewPriceFormatter(nil),
		keepAlive: defaultSSEKeepAlive,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/events", h.streamEvents)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(defaultCartTimeout))
		r.Get("/", h.getCart)
		r.Delete("/", h.clearCart)
		r.Post("/items", h.addItem)
		r.Patch("/items/{itemId}", h.updateItem)
		r.Delete("/items/{itemId}", h.removeItem)
	})
}

type cartItemPayload struct {
	ID           string `json:"id"`
	ProductID    string `json:"productId"`
	Name         string `json:"name"`
	Image        string `json:"image"`
	Size         string `json:"size"`
	Color        string `json:"color"`
	Quantity     int    `json:"quantity"`
	UnitPrice    int64  `json:"unitPrice"`
	Subtotal     int64  `json:"subtotal"`
	DisplayPrice string `json:"displayPrice"`
}

type cartSummaryPayload struct {
	ItemsCount      int    `json:"itemsCount"`
	Units           int    `json:"units"`
	Subtotal        int64  `json:"subtotal"`
	Shipping        int64  `json:"shipping"`
	ShippingFree    bool   `json:"shippingFree"`
	Total           int64  `json:"total"`
	DisplaySubtotal string `json:"displaySubtotal"`
	DisplayShipping string `json:"displayShipping"`
	DisplayTotal    string `json:"displayTotal"`
}

type cartPayload struct {
	DeviceID string             `json:"deviceId"`
	Items    []cartItemPayload  `json:"items"`
	Summary  cartSummaryPayload `json:"summary"`
}

type cartEventPayload struct {
	cartPayload
	OccurredAt string `json:"occurredAt,omitempty"`
}

type addCartItemRequest struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
	Color     string `json:"color"`
}

type updateCartItemRequest struct {
	Quantity *int `json:"quantity"`
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deviceID, ok := h.ready(ctx, w)
	if !ok {
		return
	}
	view, err := h.carts.Get(ctx, deviceID)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.buildCartPayload(ctx, view.DeviceID, view.Cart, view.Summary))
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deviceID, ok := h.ready(ctx, w)
	if !ok {
		return
	}
	var req addCartItemRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}
	view, err := h.carts.AddItem(ctx, services.AddCartItemCommand{
		DeviceID:  deviceID,
		ProductID: req.ProductID,
		Size:      req.Size,
		Quantity:  req.Quantity,
		Color:     req.Color,
	})
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.buildCartPayload(ctx, view.DeviceID, view.Cart, view.Summary))
}

func (h *CartHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deviceID, ok := h.ready(ctx, w)
	if !ok {
		return
	}
	var req updateCartItemRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}
	if req.Quantity == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "quantity is required", http.StatusBadRequest))
		return
	}
	view, err := h.carts.SetQuantity(ctx, services.SetCartQuantityCommand{
		DeviceID: deviceID,
		ItemID:   chi.URLParam(r, "itemId"),
		Quantity: *req.Quantity,
	})
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.buildCartPayload(ctx, view.DeviceID, view.Cart, view.Summary))
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deviceID, ok := h.ready(ctx, w)
	if !ok {
		return
	}
	view, err := h.carts.Remove(ctx, deviceID, chi.URLParam(r, "itemId"))
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.buildCartPayload(ctx, view.DeviceID, view.Cart, view.Summary))
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deviceID, ok := h.ready(ctx, w)
	if !ok {
		return
	}
	view, err := h.carts.Clear(ctx, deviceID)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.buildCartPayload(ctx, view.DeviceID, view.Cart, view.Summary))
}

// streamEvents sends the current cart followed by one event per persisted change until the
// client disconnects.
func (h *CartHandlers) streamEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deviceID, ok := h.ready(ctx, w)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("streaming_unsupported", "response does not support streaming", http.StatusInternalServerError))
		return
	}

	events, cancel := h.carts.Subscribe(ctx, deviceID)
	defer cancel()

	view, err := h.carts.Get(ctx, deviceID)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	w.Header().Set("Content-Type", cartEventContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeSSE(w, cartEventName, cartEventPayload{cartPayload: h.buildCartPayload(ctx, view.DeviceID, view.Cart, view.Summary)}); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case event, open := <-events:
			if !open {
				return
			}
			payload := cartEventPayload{
				cartPayload: h.buildCartPayload(ctx, event.DeviceID, event.Cart, event.Summary),
				OccurredAt:  formatTime(event.OccurredAt),
			}
			if err := writeSSE(w, cartEventName, payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *CartHandlers) ready(ctx context.Context, w http.ResponseWriter) (string, bool) {
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	return deviceFromRequest(ctx, w)
}

func (h *CartHandlers) buildCartPayload(ctx context.Context, deviceID string, cart services.Cart, summary services.CartSummary) cartPayload {
	items := make([]cartItemPayload, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, cartItemPayload{
			ID:           item.ID,
			ProductID:    item.ProductID,
			Name:         item.Name,
			Image:        item.ImageRef,
			Size:         item.Size,
			Color:        item.Color,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			Subtotal:     item.Subtotal(),
			DisplayPrice: h.formatter.Format(ctx, item.UnitPrice),
		})
	}
	return cartPayload{
		DeviceID: deviceID,
		Items:    items,
		Summary: cartSummaryPayload{
			ItemsCount:      summary.ItemsCount,
			Units:           summary.Units,
			Subtotal:        summary.Subtotal,
			Shipping:        summary.Shipping,
			ShippingFree:    summary.ShippingFree,
			Total:           summary.Total,
			DisplaySubtotal: h.formatter.Format(ctx, summary.Subtotal),
			DisplayShipping: h.formatter.FormatShipping(ctx, summary),
			DisplayTotal:    h.formatter.Format(ctx, summary.Total),
		},
	}
}

func writeSSE(w http.ResponseWriter, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

func writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogNotFound),
		errors.Is(err, services.ErrSizeRequired),
		errors.Is(err, services.ErrCatalogInvalidInput),
		errors.Is(err, services.ErrCatalogUnavailable):
		writeCatalogError(ctx, w, err)
	default:
		httpx.WriteError(ctx, w, httpx.NewError("cart_error", err.Error(), http.StatusInternalServerError))
	}
}
