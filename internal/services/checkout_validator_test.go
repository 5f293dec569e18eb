package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sneakerhub/storefront/internal/domain"
	"github.com/sneakerhub/storefront/internal/platform/requestctx"
)

func validForm() CheckoutForm {
	form := domain.NewCheckoutForm()
	form[domain.FieldCardType] = "visa"
	form[domain.FieldCardNumber] = "4242-4242-4242-4242"
	form[domain.FieldExpiry] = "12/27"
	form[domain.FieldCVV] = "123"
	form[domain.FieldFirstName] = "Ana"
	form[domain.FieldLastName] = "Gómez"
	form[domain.FieldAddress] = "Av. Corrientes 1234"
	form[domain.FieldCity] = "CABA"
	form[domain.FieldPostalCode] = "14250"
	form[domain.FieldEmail] = "ana@example.com"
	form[domain.FieldPhone] = "+54 (114) 5678-9012"
	return form
}

func TestValidateAcceptsCompleteForm(t *testing.T) {
	assert.Empty(t, Validate(validForm()))
}

func TestValidateEmptyFormFlagsEveryRequiredField(t *testing.T) {
	errs := Validate(domain.NewCheckoutForm())

	required := RequiredCheckoutFields()
	require.Len(t, errs, len(required))
	for _, field := range required {
		assert.Contains(t, errs, field)
	}
	assert.NotContains(t, errs, domain.FieldAlternateAddress)
	assert.NotContains(t, errs, domain.FieldCountry)
	assert.Equal(t, "Seleccione una tarjeta", errs[domain.FieldCardType])
}

func TestValidateTrimsWhitespace(t *testing.T) {
	form := validForm()
	form[domain.FieldCity] = "   "
	errs := Validate(form)
	assert.Equal(t, []string{domain.FieldCity}, errs.Fields())
}

func TestValidateEmailShape(t *testing.T) {
	form := validForm()
	form[domain.FieldEmail] = "not-an-email"
	errs := Validate(form)
	assert.Equal(t, "Ingrese un email válido", errs[domain.FieldEmail])

	form[domain.FieldEmail] = "user@example.com"
	assert.NotContains(t, Validate(form), domain.FieldEmail)
}

func TestValidateCardBrand(t *testing.T) {
	form := validForm()
	form[domain.FieldCardType] = "amex"
	assert.Contains(t, Validate(form), domain.FieldCardType)

	form[domain.FieldCardType] = "MasterCard"
	assert.NotContains(t, Validate(form), domain.FieldCardType)
}

func TestValidateLocalizesMessages(t *testing.T) {
	validator := NewCheckoutValidator(NewLocalizer("es-AR"))
	ctx := requestctx.WithLocale(context.Background(), "en-US")

	errs := validator.Validate(ctx, domain.NewCheckoutForm())
	assert.Equal(t, "Enter your email", errs[domain.FieldEmail])
}
