package handlers

import (
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestProductHandlersSearch(t *testing.T) {
	f := newStorefrontFixture(t)

	rr := f.do(t, http.MethodGet, "/api/v1/public/products", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var all productListResponse
	decodeResponse(t, rr, &all)
	if len(all.Items) != 10 {
		t.Fatalf("expected full catalog of 10, got %d", len(all.Items))
	}

	rr = f.do(t, http.MethodGet, "/api/v1/public/products?q=NIKE", "", nil)
	var filtered productListResponse
	decodeResponse(t, rr, &filtered)
	if len(filtered.Items) == 0 || len(filtered.Items) >= len(all.Items) {
		t.Fatalf("expected a strict subset for q=NIKE, got %d", len(filtered.Items))
	}
	if filtered.Query != "NIKE" {
		t.Fatalf("expected query echoed, got %q", filtered.Query)
	}
}

func TestProductHandlersGet(t *testing.T) {
	f := newStorefrontFixture(t)

	rr := f.do(t, http.MethodGet, "/api/v1/public/products/1", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body productPayload
	decodeResponse(t, rr, &body)
	if body.Price != 129999 || body.DisplayPrice != "$129.999" {
		t.Fatalf("unexpected price fields %+v", body)
	}
	if body.TransferPrice != 116999 || body.DisplayTransferPrice != "$116.999" {
		t.Fatalf("unexpected transfer price fields %+v", body)
	}
	if len(body.Sizes) != 5 {
		t.Fatalf("expected 5 sizes, got %v", body.Sizes)
	}

	rr = f.do(t, http.MethodGet, "/api/v1/public/products/404", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "product_not_found" {
		t.Fatalf("expected product_not_found, got %s", code)
	}
}

type stubIssuer struct {
	err error
}

func (s stubIssuer) Issue(deviceID string) (string, time.Time, error) {
	return "token-" + deviceID, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), s.err
}

func TestDeviceHandlersIssue(t *testing.T) {
	f := newStorefrontFixture(t)
	deviceID, token := f.registerDevice(t)

	verified, err := f.tokens.Verify(token)
	if err != nil {
		t.Fatalf("expected issued token to verify: %v", err)
	}
	if verified != deviceID {
		t.Fatalf("expected token bound to %s, got %s", deviceID, verified)
	}

	_, other := f.registerDevice(t)
	if other == token {
		t.Fatalf("expected distinct devices per registration")
	}
}

func TestDeviceHandlersIssueFailure(t *testing.T) {
	router := NewRouter(WithDeviceRoutes(NewDeviceHandlers(stubIssuer{err: errors.New("sign failed")}, WithDeviceIDGenerator(func() string { return "dev-1" })).Routes))
	f := &storefrontFixture{router: router}

	rr := f.do(t, http.MethodPost, "/api/v1/devices", "", nil)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "device_token_error" {
		t.Fatalf("expected device_token_error, got %s", code)
	}
}
