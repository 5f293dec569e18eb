package services

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/sneakerhub/storefront/internal/platform/requestctx"
)

// DefaultLocale is used when neither the request nor the configuration names a locale.
const DefaultLocale = "es-AR"

// Message keys. The English text doubles as the key so an unknown locale still renders English.
const (
	msgSelectCard          = "Select a card"
	msgSelectValidCard     = "Select a valid card"
	msgEnterCardNumber     = "Enter the card number"
	msgEnterExpiry         = "Enter the expiry date"
	msgEnterCVV            = "Enter the CVV"
	msgEnterFirstName      = "Enter your first name"
	msgEnterLastName       = "Enter your last name"
	msgEnterAddress        = "Enter your address"
	msgEnterCity           = "Enter your city"
	msgEnterPostalCode     = "Enter the postal code"
	msgEnterEmail          = "Enter your email"
	msgEnterValidEmail     = "Enter a valid email"
	msgEnterPhone          = "Enter your phone number"
	msgCompleteRequired    = "Please complete all required fields"
	msgFreeShipping        = "Free"
	msgAuthUserNotFound    = "User not found"
	msgAuthWrongPassword   = "Incorrect password"
	msgAuthInvalidEmail    = "Invalid email address"
	msgAuthTooMany         = "Too many failed attempts. Please try again later"
	msgAuthEmailInUse      = "The email address is already registered"
	msgAuthWeakPassword    = "The password must be at least 6 characters long"
	msgAuthNetwork         = "Connection error. Check your internet connection"
	msgAuthUserDisabled    = "User disabled"
	msgAuthMissingFields   = "Please complete all fields"
	msgAuthPasswordsDiffer = "Passwords do not match"
	msgAuthUnknown         = "Something went wrong. Please try again"
)

var spanishMessages = map[string]string{
	msgSelectCard:          "Seleccione una tarjeta",
	msgSelectValidCard:     "Seleccione una tarjeta válida",
	msgEnterCardNumber:     "Ingrese el número de tarjeta",
	msgEnterExpiry:         "Ingrese el vencimiento",
	msgEnterCVV:            "Ingrese el CVV",
	msgEnterFirstName:      "Ingrese su nombre",
	msgEnterLastName:       "Ingrese su apellido",
	msgEnterAddress:        "Ingrese su dirección",
	msgEnterCity:           "Ingrese su ciudad",
	msgEnterPostalCode:     "Ingrese el código postal",
	msgEnterEmail:          "Ingrese su email",
	msgEnterValidEmail:     "Ingrese un email válido",
	msgEnterPhone:          "Ingrese su teléfono",
	msgCompleteRequired:    "Por favor complete todos los campos obligatorios",
	msgFreeShipping:        "Gratis",
	msgAuthUserNotFound:    "Usuario no encontrado",
	msgAuthWrongPassword:   "Contraseña incorrecta",
	msgAuthInvalidEmail:    "Correo electrónico inválido",
	msgAuthTooMany:         "Demasiados intentos fallidos. Por favor, intente más tarde",
	msgAuthEmailInUse:      "El correo electrónico ya está registrado",
	msgAuthWeakPassword:    "La contraseña debe tener al menos 6 caracteres",
	msgAuthNetwork:         "Error de conexión. Verifica tu internet",
	msgAuthUserDisabled:    "Usuario deshabilitado",
	msgAuthMissingFields:   "Por favor, complete todos los campos",
	msgAuthPasswordsDiffer: "Las contraseñas no coinciden",
	msgAuthUnknown:         "Ocurrió un error. Intente nuevamente",
}

var messageCatalog = buildMessageCatalog()

func buildMessageCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key := range spanishMessages {
		if err := b.SetString(language.English, key, key); err != nil {
			panic(fmt.Sprintf("services: register message %q: %v", key, err))
		}
	}
	for key, text := range spanishMessages {
		if err := b.SetString(language.Spanish, key, text); err != nil {
			panic(fmt.Sprintf("services: register message %q: %v", key, err))
		}
	}
	return b
}

// Localizer renders user-facing messages and amounts for a locale.
type Localizer struct {
	fallback language.Tag
}

// NewLocalizer constructs a Localizer whose default locale is used when a request carries none.
func NewLocalizer(defaultLocale string) *Localizer {
	return &Localizer{fallback: parseLocale(defaultLocale, language.MustParse(DefaultLocale))}
}

// Printer returns a printer for locale, falling back to the default locale.
func (l *Localizer) Printer(locale string) *message.Printer {
	return message.NewPrinter(parseLocale(locale, l.fallbackTag()), message.Catalog(messageCatalog))
}

// PrinterFor returns a printer for the locale carried on ctx.
func (l *Localizer) PrinterFor(ctx context.Context) *message.Printer {
	return l.Printer(requestctx.Locale(ctx))
}

// Text renders a message key for the locale carried on ctx.
func (l *Localizer) Text(ctx context.Context, key string) string {
	return l.PrinterFor(ctx).Sprintf(key)
}

func (l *Localizer) fallbackTag() language.Tag {
	if l == nil {
		return language.MustParse(DefaultLocale)
	}
	return l.fallback
}

func parseLocale(locale string, fallback language.Tag) language.Tag {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return fallback
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return fallback
	}
	return tag
}
