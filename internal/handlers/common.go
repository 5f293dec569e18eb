package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sneakerhub/storefront/internal/platform/httpx"
	"github.com/sneakerhub/storefront/internal/platform/requestctx"
)

func decodeBody(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any) bool {
	err := httpx.DecodeJSON(r, dst)
	switch {
	case err == nil:
		return true
	case errors.Is(err, httpx.ErrEmptyBody):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
	}
	return false
}

func deviceFromRequest(ctx context.Context, w http.ResponseWriter) (string, bool) {
	deviceID, ok := requestctx.DeviceID(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("device_required", "device token missing", http.StatusUnauthorized))
		return "", false
	}
	return deviceID, true
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
