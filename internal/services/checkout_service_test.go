package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sneakerhub/storefront/internal/domain"
	"github.com/sneakerhub/storefront/internal/repositories/memory"
)

type stubCheckoutPublisher struct {
	published []CheckoutConfirmation
	err       error
}

func (p *stubCheckoutPublisher) PublishCheckoutConfirmed(_ context.Context, c CheckoutConfirmation) (string, error) {
	p.published = append(p.published, c)
	return "msg-1", p.err
}

type failingCheckouts struct {
	*memory.CheckoutRepository
}

func (failingCheckouts) Insert(context.Context, CheckoutConfirmation) error {
	return errors.New("firestore unavailable")
}

type checkoutFixture struct {
	store     *CartStore
	repo      *memory.CheckoutRepository
	publisher *stubCheckoutPublisher
	metrics   *countingMetrics
	svc       CheckoutService
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	f := &checkoutFixture{
		repo:      memory.NewCheckoutRepository(),
		publisher: &stubCheckoutPublisher{},
		metrics:   newCountingMetrics(),
	}
	store, err := NewCartStore(CartStoreDeps{Store: memory.NewKeyValueStore()})
	if err != nil {
		t.Fatalf("NewCartStore: %v", err)
	}
	f.store = store
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	f.svc, err = NewCheckoutService(CheckoutServiceDeps{
		Carts:       store,
		Checkouts:   f.repo,
		Publisher:   f.publisher,
		IDGenerator: func() string { return "01HZYX" },
		Clock:       func() time.Time { return now },
		Metrics:     f.metrics,
	})
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}
	return f
}

func (f *checkoutFixture) seedCart(device string) {
	cart := AddOrMerge(Cart{}, sneaker("1", "42", 1, 100))
	cart = AddOrMerge(cart, sneaker("1", "42", 2, 100))
	f.store.Save(context.Background(), device, cart)
}

func TestCheckoutSubmitConfirmsAndRecords(t *testing.T) {
	f := newCheckoutFixture(t)
	f.seedCart("dev-1")
	form := validForm()
	form[domain.FieldFirstName] = "<b>Ana</b>"
	form[domain.FieldCardNumber] = "5367555590123456"

	result, err := f.svc.Submit(context.Background(), SubmitCheckoutCommand{DeviceID: "dev-1", Form: form})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.State != CheckoutStateConfirmed || result.Confirmation == nil {
		t.Fatalf("expected confirmation, got %+v", result)
	}
	c := result.Confirmation
	if c.ID != "01HZYX" || c.Total != 300 || c.CardLast4 != "3456" || c.FirstName != "Ana" {
		t.Fatalf("unexpected confirmation %+v", c)
	}
	if len(c.Items) != 1 || c.Items[0].Quantity != 3 {
		t.Fatalf("unexpected items %+v", c.Items)
	}

	stored, err := f.repo.FindByID(context.Background(), "01HZYX")
	if err != nil {
		t.Fatalf("expected stored confirmation: %v", err)
	}
	if stored.DeviceID != "dev-1" {
		t.Fatalf("unexpected stored confirmation %+v", stored)
	}
	if len(f.publisher.published) != 1 {
		t.Fatalf("expected one published confirmation")
	}
	if f.metrics.outcomes["confirmed"] != 1 {
		t.Fatalf("unexpected outcomes %v", f.metrics.outcomes)
	}
	if f.store.Load(context.Background(), "dev-1").Len() != 1 {
		t.Fatalf("cart must be kept unless clearing is requested")
	}

	history, err := f.svc.History(context.Background(), "dev-1", 0)
	if err != nil || len(history) != 1 {
		t.Fatalf("expected one history entry, got %v %v", history, err)
	}
}

func TestCheckoutSubmitClearsCartOnRequest(t *testing.T) {
	f := newCheckoutFixture(t)
	f.seedCart("dev-1")

	if _, err := f.svc.Submit(context.Background(), SubmitCheckoutCommand{DeviceID: "dev-1", Form: validForm(), ClearCart: true}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got := f.store.Load(context.Background(), "dev-1"); got.Len() != 0 {
		t.Fatalf("expected cleared cart, got %+v", got)
	}
}

func TestCheckoutSubmitRejectsInvalidForm(t *testing.T) {
	f := newCheckoutFixture(t)
	f.seedCart("dev-1")
	form := validForm()
	form[domain.FieldEmail] = "nope"

	result, err := f.svc.Submit(context.Background(), SubmitCheckoutCommand{DeviceID: "dev-1", Form: form})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.State != CheckoutStateRejected || result.Confirmation != nil {
		t.Fatalf("expected rejection, got %+v", result)
	}
	if _, ok := result.Errors[domain.FieldEmail]; !ok {
		t.Fatalf("expected email error, got %v", result.Errors)
	}
	if len(f.publisher.published) != 0 || f.metrics.outcomes["rejected"] != 1 {
		t.Fatalf("rejected checkout must not be published")
	}
}

func TestCheckoutSubmitEmptyCart(t *testing.T) {
	f := newCheckoutFixture(t)
	_, err := f.svc.Submit(context.Background(), SubmitCheckoutCommand{DeviceID: "dev-1", Form: validForm()})
	if !errors.Is(err, ErrCheckoutEmptyCart) {
		t.Fatalf("expected ErrCheckoutEmptyCart, got %v", err)
	}
	if _, err := f.svc.Submit(context.Background(), SubmitCheckoutCommand{Form: validForm()}); !errors.Is(err, ErrCheckoutInvalidInput) {
		t.Fatalf("expected ErrCheckoutInvalidInput, got %v", err)
	}
}

func TestCheckoutSubmitRecordFailure(t *testing.T) {
	store, _ := NewCartStore(CartStoreDeps{Store: memory.NewKeyValueStore()})
	svc, err := NewCheckoutService(CheckoutServiceDeps{
		Carts:     store,
		Checkouts: failingCheckouts{memory.NewCheckoutRepository()},
	})
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}
	store.Save(context.Background(), "dev-1", AddOrMerge(Cart{}, sneaker("1", "40", 1, 10)))

	_, err = svc.Submit(context.Background(), SubmitCheckoutCommand{DeviceID: "dev-1", Form: validForm()})
	if !errors.Is(err, ErrCheckoutRecordFailed) {
		t.Fatalf("expected ErrCheckoutRecordFailed, got %v", err)
	}
}

func TestCheckoutServiceNormalizeDelegates(t *testing.T) {
	f := newCheckoutFixture(t)
	if got := f.svc.Normalize(domain.FieldCVV, "12345", ""); got != "123" {
		t.Fatalf("unexpected cvv %q", got)
	}
	if errs := f.svc.Validate(context.Background(), validForm()); !errs.Empty() {
		t.Fatalf("expected valid form, got %v", errs)
	}
}
