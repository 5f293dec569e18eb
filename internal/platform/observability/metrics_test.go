package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsMiddlewareRecordsRoutePattern(t *testing.T) {
	m := NewMetrics()
	router := chi.NewRouter()
	router.Use(m.Middleware())
	router.Get("/cart/items/{itemId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/cart/items/1-42", nil))

	got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/cart/items/{itemId}", "404"))
	if got != 1 {
		t.Fatalf("expected one request recorded, got %v", got)
	}
}

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	m.CartMutation("add")
	m.CartMutation("add")
	m.StoreError("load")
	m.CheckoutOutcome("confirmed")
	m.SubscriberDelta(1)

	if v := testutil.ToFloat64(m.cartMutations.WithLabelValues("add")); v != 2 {
		t.Fatalf("expected 2 add mutations, got %v", v)
	}
	if v := testutil.ToFloat64(m.storeErrors.WithLabelValues("load")); v != 1 {
		t.Fatalf("expected 1 load error, got %v", v)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "storefront_checkout_submissions_total") {
		t.Fatalf("expected checkout counter in exposition output")
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.CartMutation("add")
	m.StoreError("save")
	m.CheckoutOutcome("rejected")
	m.SubscriberDelta(-1)
	handler := m.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected passthrough, got %d", rec.Code)
	}
}
