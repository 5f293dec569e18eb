package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sneakerhub/storefront/internal/platform/auth"
	"github.com/sneakerhub/storefront/internal/platform/idempotency"
	"github.com/sneakerhub/storefront/internal/repositories/catalog"
	"github.com/sneakerhub/storefront/internal/repositories/memory"
	"github.com/sneakerhub/storefront/internal/services"
)

const testDeviceHeader = "X-Device-Token"

type storefrontFixture struct {
	router      chi.Router
	tokens      *auth.DeviceTokens
	kv          *memory.KeyValueStore
	checkouts   *memory.CheckoutRepository
	broadcaster *services.CartBroadcaster
	cart        services.CartService
}

func newStorefrontFixture(t *testing.T) *storefrontFixture {
	t.Helper()

	tokens, err := auth.NewDeviceTokens("test-secret", "storefront-test", time.Hour)
	if err != nil {
		t.Fatalf("NewDeviceTokens: %v", err)
	}
	products, err := catalog.NewEmbedded()
	if err != nil {
		t.Fatalf("catalog.NewEmbedded: %v", err)
	}

	localizer := services.NewLocalizer(services.DefaultLocale)
	formatter := services.NewPriceFormatter(localizer)
	f := &storefrontFixture{
		tokens:      tokens,
		kv:          memory.NewKeyValueStore(),
		checkouts:   memory.NewCheckoutRepository(),
		broadcaster: services.NewCartBroadcaster(),
	}

	store, err := services.NewCartStore(services.CartStoreDeps{Store: f.kv, Publisher: f.broadcaster})
	if err != nil {
		t.Fatalf("NewCartStore: %v", err)
	}
	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{Catalog: products, Formatter: formatter})
	if err != nil {
		t.Fatalf("NewCatalogService: %v", err)
	}
	f.cart, err = services.NewCartService(services.CartServiceDeps{
		Store:       store,
		Catalog:     catalogSvc,
		Subscribers: f.broadcaster,
	})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}
	checkoutSvc, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Carts:     store,
		Checkouts: f.checkouts,
		Localizer: localizer,
	})
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}

	f.router = NewRouter(
		WithMiddlewares(LocaleMiddleware(services.DefaultLocale)),
		WithDeviceMiddlewares(tokens.RequireDevice(testDeviceHeader)),
		WithPublicRoutes(NewProductHandlers(catalogSvc).Routes),
		WithDeviceRoutes(NewDeviceHandlers(tokens).Routes),
		WithCartRoutes(NewCartHandlers(f.cart, WithCartPriceFormatter(formatter), WithCartKeepAlive(50*time.Millisecond)).Routes),
		WithCheckoutRoutes(NewCheckoutHandlers(checkoutSvc,
			WithCheckoutIdempotency(idempotency.Middleware(idempotency.NewMemoryStore())),
		).Routes),
	)
	return f
}

// registerDevice issues a device through the HTTP surface and returns its token.
func (f *storefrontFixture) registerDevice(t *testing.T) (string, string) {
	t.Helper()
	rr := f.do(t, http.MethodPost, "/api/v1/devices", "", nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 from /devices, got %d: %s", rr.Code, rr.Body.String())
	}
	var body deviceResponse
	decodeResponse(t, rr, &body)
	if body.DeviceID == "" || body.Token == "" {
		t.Fatalf("unexpected device response %+v", body)
	}
	return body.DeviceID, body.Token
}

func (f *storefrontFixture) do(t *testing.T, method, path, token string, payload any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(testDeviceHeader, token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	decodeResponse(t, rr, &body)
	code, _ := body["error"].(string)
	return code
}
