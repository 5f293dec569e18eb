package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	"github.com/sneakerhub/storefront/internal/domain"
	"github.com/sneakerhub/storefront/internal/repositories"
)

const defaultHistoryLimit = 20

var (
	// ErrCheckoutInvalidInput indicates a malformed checkout request.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutEmptyCart is returned when the device cart has no lines.
	ErrCheckoutEmptyCart = errors.New("checkout: cart is empty")
	// ErrCheckoutRecordFailed indicates the confirmation could not be recorded.
	ErrCheckoutRecordFailed = errors.New("checkout: failed to record confirmation")
)

// CheckoutPublisher announces confirmed checkouts. *messaging.PubSubCheckoutPublisher satisfies it.
type CheckoutPublisher interface {
	PublishCheckoutConfirmed(ctx context.Context, confirmation CheckoutConfirmation) (string, error)
}

// CheckoutServiceDeps wires the checkout service.
type CheckoutServiceDeps struct {
	Carts           *CartStore
	Checkouts       repositories.CheckoutRepository
	Publisher       CheckoutPublisher
	Payments        PaymentSubmitter
	Localizer       *Localizer
	ErrorClearDelay time.Duration
	IDGenerator     func() string
	Clock           func() time.Time
	Metrics         Metrics
	Logger          EventLogger
}

type checkoutService struct {
	carts      *CartStore
	checkouts  repositories.CheckoutRepository
	publisher  CheckoutPublisher
	payments   PaymentSubmitter
	validator  *CheckoutValidator
	policy     *bluemonday.Policy
	clearDelay time.Duration
	newID      func() string
	now        func() time.Time
	metrics    Metrics
	logger     EventLogger
}

// NewCheckoutService constructs a CheckoutService.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Carts == nil {
		return nil, errors.New("checkout service: cart store is required")
	}
	if deps.Checkouts == nil {
		return nil, errors.New("checkout service: checkout repository is required")
	}
	payments := deps.Payments
	if payments == nil {
		payments = NoopPaymentSubmitter{}
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	delay := deps.ErrorClearDelay
	if delay <= 0 {
		delay = DefaultErrorClearDelay
	}
	return &checkoutService{
		carts:      deps.Carts,
		checkouts:  deps.Checkouts,
		publisher:  deps.Publisher,
		payments:   payments,
		validator:  NewCheckoutValidator(deps.Localizer),
		policy:     bluemonday.StrictPolicy(),
		clearDelay: delay,
		newID:      newID,
		now:        clockOrNow(deps.Clock),
		metrics:    metricsOrNoop(deps.Metrics),
		logger:     loggerOrNoop(deps.Logger),
	}, nil
}

func (s *checkoutService) Normalize(field string, raw string, previous string) string {
	return Normalize(field, raw, previous)
}

func (s *checkoutService) Validate(ctx context.Context, form CheckoutForm) ErrorMap {
	return s.validator.Validate(ctx, form)
}

// Submit runs a checkout session over the device's current cart. A rejected form is
// reported through the result, not as an error. A confirmed checkout is recorded and
// announced; the cart is emptied only when the command asks for it.
func (s *checkoutService) Submit(ctx context.Context, cmd SubmitCheckoutCommand) (CheckoutResult, error) {
	deviceID := strings.TrimSpace(cmd.DeviceID)
	if deviceID == "" {
		return CheckoutResult{}, fmt.Errorf("%w: device id is required", ErrCheckoutInvalidInput)
	}
	cart := s.carts.Load(ctx, deviceID)
	if cart.Len() == 0 {
		s.metrics.CheckoutOutcome("empty_cart")
		return CheckoutResult{}, ErrCheckoutEmptyCart
	}

	session := NewCheckoutSession(
		WithValidator(s.validator),
		WithPaymentSubmitter(s.payments),
		WithErrorClearDelay(s.clearDelay),
		WithSessionTotal(Total(cart)),
		WithSessionDevice(deviceID),
	)
	session.Fill(cmd.Form)

	result, err := session.Submit(ctx)
	if err != nil {
		s.metrics.CheckoutOutcome("failed")
		s.logger(ctx, "checkout.submit_failed", map[string]any{"deviceId": deviceID, "error": err.Error()})
		return result, err
	}
	if result.State != CheckoutStateConfirmed {
		s.metrics.CheckoutOutcome("rejected")
		s.logger(ctx, "checkout.rejected", map[string]any{"deviceId": deviceID, "fields": result.Errors.Fields()})
		return result, nil
	}

	confirmation := s.confirmation(deviceID, session.Form(), cart)
	if err := s.checkouts.Insert(ctx, confirmation); err != nil {
		s.metrics.CheckoutOutcome("record_failed")
		s.logger(ctx, "checkout.record_failed", map[string]any{"deviceId": deviceID, "checkoutId": confirmation.ID, "error": err.Error()})
		return CheckoutResult{State: CheckoutStateConfirmed}, fmt.Errorf("%w: %v", ErrCheckoutRecordFailed, err)
	}
	s.metrics.CheckoutOutcome("confirmed")
	s.logger(ctx, "checkout.confirmed", map[string]any{
		"deviceId":   deviceID,
		"checkoutId": confirmation.ID,
		"total":      confirmation.Total,
	})

	if s.publisher != nil {
		if _, err := s.publisher.PublishCheckoutConfirmed(ctx, confirmation); err != nil {
			s.logger(ctx, "checkout.publish_failed", map[string]any{"checkoutId": confirmation.ID, "error": err.Error()})
		}
	}
	if cmd.ClearCart {
		s.carts.Save(ctx, deviceID, Clear(cart))
	}

	result.Confirmation = &confirmation
	return result, nil
}

func (s *checkoutService) History(ctx context.Context, deviceID string, limit int) ([]CheckoutConfirmation, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, fmt.Errorf("%w: device id is required", ErrCheckoutInvalidInput)
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return s.checkouts.ListByDevice(ctx, deviceID, limit)
}

func (s *checkoutService) confirmation(deviceID string, form CheckoutForm, cart Cart) CheckoutConfirmation {
	cardType, _ := domain.ParseCardType(form.Get(domain.FieldCardType))
	address := s.clean(form.Get(domain.FieldAddress))
	if alt := s.clean(form.Get(domain.FieldAlternateAddress)); alt != "" {
		address += ", " + alt
	}
	return CheckoutConfirmation{
		ID:          s.newID(),
		DeviceID:    deviceID,
		CardType:    cardType,
		CardLast4:   lastDigits(form.Get(domain.FieldCardNumber), 4),
		FirstName:   s.clean(form.Get(domain.FieldFirstName)),
		LastName:    s.clean(form.Get(domain.FieldLastName)),
		Email:       strings.ToLower(s.clean(form.Get(domain.FieldEmail))),
		Phone:       s.clean(form.Get(domain.FieldPhone)),
		Address:     address,
		City:        s.clean(form.Get(domain.FieldCity)),
		PostalCode:  s.clean(form.Get(domain.FieldPostalCode)),
		Country:     s.clean(form.Get(domain.FieldCountry)),
		Items:       cart.Clone().Items,
		Total:       Total(cart),
		ConfirmedAt: s.now().UTC(),
	}
}

func (s *checkoutService) clean(value string) string {
	return strings.TrimSpace(s.policy.Sanitize(strings.TrimSpace(value)))
}

func lastDigits(value string, n int) string {
	digits := digitsOnly(value, 0)
	if len(digits) <= n {
		return digits
	}
	return digits[len(digits)-n:]
}
