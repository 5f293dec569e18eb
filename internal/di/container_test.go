package di

import (
	"context"
	"testing"
	"time"

	"github.com/sneakerhub/storefront/internal/domain"
	"github.com/sneakerhub/storefront/internal/platform/config"
	"github.com/sneakerhub/storefront/internal/services"
)

func memoryConfig() config.Config {
	return config.Config{
		Environment: "local",
		Locale:      "es-AR",
		Cart:        config.CartConfig{Backend: config.CartBackendMemory, Key: "carrito"},
		Checkout:    config.CheckoutConfig{ErrorClearDelay: time.Second},
		Device: config.DeviceConfig{
			TokenHeader: "X-Device-Token",
			TokenTTL:    time.Hour,
			TokenIssuer: "storefront-test",
		},
		Idempotency: config.IdempotencyConfig{Header: "Idempotency-Key", TTL: time.Hour},
	}
}

func TestNewContainerMemoryBackend(t *testing.T) {
	ctx := context.Background()
	c, err := NewContainer(ctx, memoryConfig(), WithBuildInfo(services.BuildInfo{Version: "test"}))
	if err != nil {
		t.Fatalf("NewContainer returned error: %v", err)
	}
	t.Cleanup(func() {
		if err := c.Close(context.Background()); err != nil {
			t.Errorf("close: %v", err)
		}
	})
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	if c.Services.Account != nil {
		t.Fatalf("expected account service to be disabled without firebase")
	}
	if c.Auth != nil {
		t.Fatalf("expected no firebase authenticator")
	}
	if c.Idempotency == nil || c.Devices == nil {
		t.Fatalf("expected idempotency store and device tokens to be wired")
	}

	token, _, err := c.Devices.Issue("device-1")
	if err != nil || token == "" {
		t.Fatalf("expected ephemeral device secret to sign tokens, got %q %v", token, err)
	}

	products, err := c.Services.Catalog.Search(ctx, "")
	if err != nil || len(products) == 0 {
		t.Fatalf("expected embedded catalog, got %d products (%v)", len(products), err)
	}

	view, err := c.Services.Cart.AddItem(ctx, services.AddCartItemCommand{
		DeviceID:  "device-1",
		ProductID: products[0].ID,
		Size:      products[0].Sizes[0],
		Quantity:  2,
	})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if view.Summary.Units != 2 {
		t.Fatalf("expected 2 units, got %d", view.Summary.Units)
	}
	if got := c.Carts.Load(ctx, "device-1"); got.Len() != 1 {
		t.Fatalf("expected persisted cart with one line, got %d", got.Len())
	}

	report, err := c.Services.System.HealthReport(ctx)
	if err != nil {
		t.Fatalf("health report: %v", err)
	}
	if report.Status != domain.HealthStatusOK {
		t.Fatalf("expected ok health, got %s (%+v)", report.Status, report.Checks)
	}
	if _, ok := report.Checks["cart_store"]; !ok {
		t.Fatalf("expected cart_store check, got %+v", report.Checks)
	}
}

func TestNewContainerRejectsMissingCatalogFile(t *testing.T) {
	cfg := memoryConfig()
	cfg.Catalog.File = t.TempDir() + "/missing.yaml"
	if _, err := NewContainer(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for missing catalog file")
	}
}

func TestNewContainerUsesConfiguredDeviceSecret(t *testing.T) {
	cfg := memoryConfig()
	cfg.Device.TokenSecret = "shared-secret"
	first, err := NewContainer(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	defer first.Close(context.Background())
	second, err := NewContainer(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	defer second.Close(context.Background())

	token, _, err := first.Devices.Issue("device-9")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	deviceID, err := second.Devices.Verify(token)
	if err != nil {
		t.Fatalf("expected token from one instance to verify on another: %v", err)
	}
	if deviceID != "device-9" {
		t.Fatalf("unexpected device id %q", deviceID)
	}
	if first.Origin() == second.Origin() {
		t.Fatalf("expected distinct origins per container")
	}
}
