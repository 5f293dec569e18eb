package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sneakerhub/storefront/internal/platform/requestctx"
)

func TestDeviceTokensRoundTrip(t *testing.T) {
	tokens, err := NewDeviceTokens("s3cret", "storefront", time.Hour)
	require.NoError(t, err)

	signed, expires, err := tokens.Issue("01HZXDEVICE")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	deviceID, err := tokens.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "01HZXDEVICE", deviceID)
}

func TestDeviceTokensRejectsForeignSignature(t *testing.T) {
	issuer, err := NewDeviceTokens("one", "storefront", time.Hour)
	require.NoError(t, err)
	verifier, err := NewDeviceTokens("two", "storefront", time.Hour)
	require.NoError(t, err)

	signed, _, err := issuer.Issue("device")
	require.NoError(t, err)

	_, err = verifier.Verify(signed)
	assert.True(t, errors.Is(err, ErrDeviceTokenInvalid), "got %v", err)
}

func TestDeviceTokensExpired(t *testing.T) {
	tokens, err := NewDeviceTokens("s3cret", "storefront", time.Minute)
	require.NoError(t, err)
	tokens.now = func() time.Time { return time.Now().Add(-time.Hour) }

	signed, _, err := tokens.Issue("device")
	require.NoError(t, err)

	tokens.now = time.Now
	_, err = tokens.Verify(signed)
	assert.ErrorIs(t, err, ErrDeviceTokenExpired)
}

func TestNewDeviceTokensValidation(t *testing.T) {
	_, err := NewDeviceTokens(" ", "storefront", time.Hour)
	assert.Error(t, err)
	_, err = NewDeviceTokens("secret", "storefront", 0)
	assert.Error(t, err)
}

func TestRequireDevice(t *testing.T) {
	tokens, err := NewDeviceTokens("s3cret", "storefront", time.Hour)
	require.NoError(t, err)
	signed, _, err := tokens.Issue("device-42")
	require.NoError(t, err)

	var seen string
	handler := tokens.RequireDevice("X-Device-Token")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = requestctx.DeviceID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("X-Device-Token", signed)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "device-42", seen)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cart", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("X-Device-Token", "garbage")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_device_token")
}
