package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/sneakerhub/storefront/internal/platform/httpx"
	"github.com/sneakerhub/storefront/internal/platform/requestctx"
)

var (
	// ErrDeviceTokenInvalid is returned when a device token fails signature or claim checks.
	ErrDeviceTokenInvalid = errors.New("auth: device token invalid")
	// ErrDeviceTokenExpired is returned for device tokens past their expiry.
	ErrDeviceTokenExpired = errors.New("auth: device token expired")
)

// DeviceClaims binds a cart device id to a signed token.
type DeviceClaims struct {
	jwt.RegisteredClaims
}

// DeviceTokens issues and verifies HS256 device tokens.
type DeviceTokens struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewDeviceTokens constructs a DeviceTokens signer. An empty secret is rejected.
func NewDeviceTokens(secret, issuer string, ttl time.Duration) (*DeviceTokens, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: device token secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: device token ttl must be positive")
	}
	return &DeviceTokens{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue signs a token for the device id and reports its expiry.
func (d *DeviceTokens) Issue(deviceID string) (string, time.Time, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return "", time.Time{}, errors.New("auth: device id is required")
	}
	now := d.now().UTC()
	expires := now.Add(d.ttl)
	claims := DeviceClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   deviceID,
		Issuer:    d.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(d.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign device token: %w", err)
	}
	return signed, expires, nil
}

// Verify returns the device id carried by a valid token.
func (d *DeviceTokens) Verify(token string) (string, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &DeviceClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return d.secret, nil
	})
	if err != nil {
		var validationErr *jwt.ValidationError
		if errors.As(err, &validationErr) && validationErr.Errors&jwt.ValidationErrorExpired != 0 {
			return "", ErrDeviceTokenExpired
		}
		return "", fmt.Errorf("%w: %v", ErrDeviceTokenInvalid, err)
	}
	if !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return "", ErrDeviceTokenInvalid
	}
	if d.issuer != "" && !claims.VerifyIssuer(d.issuer, true) {
		return "", fmt.Errorf("%w: unexpected issuer", ErrDeviceTokenInvalid)
	}
	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(d.now()) {
		return "", ErrDeviceTokenExpired
	}
	return claims.Subject, nil
}

// RequireDevice resolves the device token header and stores the device id on the request context.
func (d *DeviceTokens) RequireDevice(header string) func(http.Handler) http.Handler {
	header = strings.TrimSpace(header)
	if header == "" {
		header = "X-Device-Token"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			raw := strings.TrimSpace(r.Header.Get(header))
			if raw == "" {
				httpx.WriteError(ctx, w, httpx.NewError("device_required", "device token missing", http.StatusUnauthorized))
				return
			}
			if d == nil {
				httpx.WriteError(ctx, w, httpx.NewError("device_required", "device tokens unavailable", http.StatusUnauthorized))
				return
			}
			deviceID, err := d.Verify(raw)
			if err != nil {
				code := "invalid_device_token"
				if errors.Is(err, ErrDeviceTokenExpired) {
					code = "device_token_expired"
				}
				httpx.WriteError(ctx, w, httpx.NewError(code, "device token rejected", http.StatusUnauthorized))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithDevice(ctx, deviceID)))
		})
	}
}

// WithDevice stores the device id on the context.
func WithDevice(ctx context.Context, deviceID string) context.Context {
	return requestctx.WithDeviceID(ctx, deviceID)
}
