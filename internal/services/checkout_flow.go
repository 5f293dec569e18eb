package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sneakerhub/storefront/internal/domain"
)

// CheckoutState is a step of the checkout submission state machine.
type CheckoutState string

const (
	CheckoutStateEditing    CheckoutState = "editing"
	CheckoutStateValidating CheckoutState = "validating"
	CheckoutStateRejected   CheckoutState = "rejected"
	CheckoutStateAccepted   CheckoutState = "accepted"
	CheckoutStateSubmitting CheckoutState = "submitting"
	CheckoutStateConfirmed  CheckoutState = "confirmed"
)

// DefaultErrorClearDelay is how long validation errors stay visible after a rejected submission.
const DefaultErrorClearDelay = 7 * time.Second

var (
	// ErrCheckoutInProgress is returned when Submit is called while a submission is running.
	ErrCheckoutInProgress = errors.New("checkout: submission in progress")
	// ErrCheckoutConfirmed is returned when a confirmed session is submitted again.
	ErrCheckoutConfirmed = errors.New("checkout: already confirmed")
	// ErrPaymentFailed wraps collaborator failures during submission.
	ErrPaymentFailed = errors.New("checkout: payment submission failed")
)

// PaymentRequest is what the payment collaborator receives for an accepted form.
type PaymentRequest struct {
	DeviceID string
	CardType domain.CardType
	Form     CheckoutForm
	Total    int64
}

// PaymentSubmitter hands an accepted checkout to the payment collaborator.
type PaymentSubmitter interface {
	SubmitPayment(ctx context.Context, req PaymentRequest) error
}

// NoopPaymentSubmitter accepts every payment without contacting a processor.
type NoopPaymentSubmitter struct{}

// SubmitPayment implements PaymentSubmitter.
func (NoopPaymentSubmitter) SubmitPayment(context.Context, PaymentRequest) error { return nil }

type timerStopper interface {
	Stop() bool
}

type afterFunc func(time.Duration, func()) timerStopper

func realAfterFunc(d time.Duration, fn func()) timerStopper {
	return time.AfterFunc(d, fn)
}

// CheckoutSessionOption customises a CheckoutSession.
type CheckoutSessionOption func(*CheckoutSession)

// WithErrorClearDelay sets how long validation errors remain before being cleared.
func WithErrorClearDelay(d time.Duration) CheckoutSessionOption {
	return func(s *CheckoutSession) {
		if d > 0 {
			s.clearDelay = d
		}
	}
}

// WithPaymentSubmitter overrides the payment collaborator.
func WithPaymentSubmitter(p PaymentSubmitter) CheckoutSessionOption {
	return func(s *CheckoutSession) {
		if p != nil {
			s.payments = p
		}
	}
}

// WithValidator overrides the validator used on submission.
func WithValidator(v *CheckoutValidator) CheckoutSessionOption {
	return func(s *CheckoutSession) {
		if v != nil {
			s.validator = v
		}
	}
}

// WithSessionTotal records the cart total the session is paying for.
func WithSessionTotal(total int64) CheckoutSessionOption {
	return func(s *CheckoutSession) {
		s.total = total
	}
}

// WithSessionDevice scopes the session to a device id.
func WithSessionDevice(deviceID string) CheckoutSessionOption {
	return func(s *CheckoutSession) {
		s.deviceID = strings.TrimSpace(deviceID)
	}
}

func withAfterFunc(fn afterFunc) CheckoutSessionOption {
	return func(s *CheckoutSession) {
		if fn != nil {
			s.after = fn
		}
	}
}

// CheckoutSession holds one checkout form while it is being edited and submitted.
// Confirmed is reached only when validation returned no errors at submission time.
type CheckoutSession struct {
	mu         sync.Mutex
	deviceID   string
	form       CheckoutForm
	errors     ErrorMap
	message    string
	state      CheckoutState
	total      int64
	validator  *CheckoutValidator
	payments   PaymentSubmitter
	clearDelay time.Duration
	after      afterFunc
	clearTimer timerStopper
	generation uint64
}

// NewCheckoutSession starts a session in the editing state with every field empty.
func NewCheckoutSession(opts ...CheckoutSessionOption) *CheckoutSession {
	s := &CheckoutSession{
		form:       domain.NewCheckoutForm(),
		errors:     ErrorMap{},
		state:      CheckoutStateEditing,
		payments:   NoopPaymentSubmitter{},
		clearDelay: DefaultErrorClearDelay,
		after:      realAfterFunc,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.validator == nil {
		s.validator = NewCheckoutValidator(nil)
	}
	return s
}

// Change normalises raw against the field's current value, stores it and clears that
// field's error. It returns the stored value.
func (s *CheckoutSession) Change(field string, raw string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	value := Normalize(field, raw, s.form[field])
	s.form[field] = value
	delete(s.errors, field)
	if s.state == CheckoutStateRejected {
		s.state = CheckoutStateEditing
	}
	return value
}

// Fill replaces several fields at once, normalising each one as a single edit.
func (s *CheckoutSession) Fill(values map[string]string) {
	for _, field := range domain.CheckoutFields {
		if raw, ok := values[field]; ok {
			s.Change(field, raw)
		}
	}
}

// Form returns a copy of the current field values.
func (s *CheckoutSession) Form() CheckoutForm {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form.Clone()
}

// Errors returns a copy of the visible validation errors.
func (s *CheckoutSession) Errors() ErrorMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneErrors(s.errors)
}

// State reports the current state.
func (s *CheckoutSession) State() CheckoutState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Submit validates the form. Invalid forms return to editing with errors shown and an
// auto-clear scheduled. Valid forms are handed to the payment collaborator and confirmed.
func (s *CheckoutSession) Submit(ctx context.Context) (CheckoutResult, error) {
	s.mu.Lock()
	switch s.state {
	case CheckoutStateConfirmed:
		s.mu.Unlock()
		return CheckoutResult{State: CheckoutStateConfirmed}, ErrCheckoutConfirmed
	case CheckoutStateValidating, CheckoutStateAccepted, CheckoutStateSubmitting:
		s.mu.Unlock()
		return CheckoutResult{State: s.state}, ErrCheckoutInProgress
	}

	s.state = CheckoutStateValidating
	errs := s.validator.Validate(ctx, s.form)
	if !errs.Empty() {
		s.state = CheckoutStateRejected
		s.errors = errs
		s.message = s.validator.localizer.Text(ctx, msgCompleteRequired)
		s.scheduleClearLocked()
		result := CheckoutResult{State: CheckoutStateRejected, Errors: cloneErrors(errs), Message: s.message}
		s.state = CheckoutStateEditing
		s.mu.Unlock()
		return result, nil
	}

	s.state = CheckoutStateAccepted
	s.errors = ErrorMap{}
	s.message = ""
	s.stopClearLocked()
	cardType, _ := domain.ParseCardType(s.form.Get(domain.FieldCardType))
	req := PaymentRequest{
		DeviceID: s.deviceID,
		CardType: cardType,
		Form:     s.form.Clone(),
		Total:    s.total,
	}
	s.state = CheckoutStateSubmitting
	s.mu.Unlock()

	err := s.payments.SubmitPayment(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = CheckoutStateEditing
		return CheckoutResult{State: CheckoutStateEditing}, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}
	s.state = CheckoutStateConfirmed
	return CheckoutResult{State: CheckoutStateConfirmed, Errors: ErrorMap{}}, nil
}

func (s *CheckoutSession) scheduleClearLocked() {
	s.stopClearLocked()
	s.generation++
	gen := s.generation
	s.clearTimer = s.after(s.clearDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.generation != gen {
			return
		}
		s.errors = ErrorMap{}
		s.message = ""
		s.clearTimer = nil
	})
}

func (s *CheckoutSession) stopClearLocked() {
	if s.clearTimer != nil {
		s.clearTimer.Stop()
		s.clearTimer = nil
	}
	s.generation++
}

func cloneErrors(errs ErrorMap) ErrorMap {
	out := make(ErrorMap, len(errs))
	for k, v := range errs {
		out[k] = v
	}
	return out
}
