package services

import (
	"context"
	"regexp"
	"strings"

	"github.com/sneakerhub/storefront/internal/domain"
)

var emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

type requiredField struct {
	name    string
	message string
}

// requiredCheckoutFields lists the fields that must be non-blank, in display order.
// alternateAddress and country are optional.
var requiredCheckoutFields = []requiredField{
	{domain.FieldCardType, msgSelectCard},
	{domain.FieldCardNumber, msgEnterCardNumber},
	{domain.FieldExpiry, msgEnterExpiry},
	{domain.FieldCVV, msgEnterCVV},
	{domain.FieldFirstName, msgEnterFirstName},
	{domain.FieldLastName, msgEnterLastName},
	{domain.FieldAddress, msgEnterAddress},
	{domain.FieldCity, msgEnterCity},
	{domain.FieldPostalCode, msgEnterPostalCode},
	{domain.FieldEmail, msgEnterEmail},
	{domain.FieldPhone, msgEnterPhone},
}

// RequiredCheckoutFields returns the names of the mandatory checkout fields.
func RequiredCheckoutFields() []string {
	out := make([]string, 0, len(requiredCheckoutFields))
	for _, f := range requiredCheckoutFields {
		out = append(out, f.name)
	}
	return out
}

// Validate checks the form and returns an error entry per invalid field. The map is empty
// when the form may be submitted. Messages use the default locale.
func Validate(form CheckoutForm) ErrorMap {
	return NewCheckoutValidator(nil).Validate(context.Background(), form)
}

// CheckoutValidator validates checkout forms with localized messages.
type CheckoutValidator struct {
	localizer *Localizer
}

// NewCheckoutValidator constructs a validator. A nil localizer uses the default locale.
func NewCheckoutValidator(localizer *Localizer) *CheckoutValidator {
	if localizer == nil {
		localizer = NewLocalizer(DefaultLocale)
	}
	return &CheckoutValidator{localizer: localizer}
}

// Validate checks every required field, the card brand and the email shape.
func (v *CheckoutValidator) Validate(ctx context.Context, form CheckoutForm) ErrorMap {
	errs := ErrorMap{}
	printer := v.localizer.PrinterFor(ctx)

	for _, field := range requiredCheckoutFields {
		if strings.TrimSpace(form.Get(field.name)) == "" {
			errs[field.name] = printer.Sprintf(field.message)
		}
	}

	if raw := strings.TrimSpace(form.Get(domain.FieldCardType)); raw != "" {
		if _, ok := domain.ParseCardType(raw); !ok {
			errs[domain.FieldCardType] = printer.Sprintf(msgSelectValidCard)
		}
	}

	if email := strings.TrimSpace(form.Get(domain.FieldEmail)); email != "" && !emailPattern.MatchString(email) {
		errs[domain.FieldEmail] = printer.Sprintf(msgEnterValidEmail)
	}
	return errs
}
