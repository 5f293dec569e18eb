package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/sneakerhub/storefront/internal/platform/httpx"
)

// DeviceTokenIssuer signs tokens binding a device id. *auth.DeviceTokens satisfies it.
type DeviceTokenIssuer interface {
	Issue(deviceID string) (string, time.Time, error)
}

// DeviceHandlers hands out device ids together with their signed tokens.
type DeviceHandlers struct {
	tokens DeviceTokenIssuer
	newID  func() string
}

// DeviceOption customises DeviceHandlers.
type DeviceOption func(*DeviceHandlers)

// WithDeviceIDGenerator overrides the device id source.
func WithDeviceIDGenerator(fn func() string) DeviceOption {
	return func(h *DeviceHandlers) {
		if fn != nil {
			h.newID = fn
		}
	}
}

// NewDeviceHandlers constructs device handlers backed by the given token issuer.
func NewDeviceHandlers(tokens DeviceTokenIssuer, opts ...DeviceOption) *DeviceHandlers {
	h := &DeviceHandlers{
		tokens: tokens,
		newID: func() string {
			return strings.ToLower(ulid.Make().String())
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the /devices endpoints onto the provided router.
func (h *DeviceHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.registerDevice)
}

type deviceResponse struct {
	DeviceID  string `json:"deviceId"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
}

func (h *DeviceHandlers) registerDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.tokens == nil {
		httpx.WriteError(ctx, w, httpx.NewError("device_service_unavailable", "device tokens are unavailable", http.StatusServiceUnavailable))
		return
	}

	deviceID := h.newID()
	token, expires, err := h.tokens.Issue(deviceID)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("device_token_error", "unable to issue device token", http.StatusInternalServerError))
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, deviceResponse{
		DeviceID:  deviceID,
		Token:     token,
		ExpiresAt: formatTime(expires),
	})
}
