package domain

import (
	"strings"
	"time"
)

// LineItem is one product/size/quantity combination held in a device cart.
type LineItem struct {
	// ID is the composite key productID + "-" + size and is unique within a cart.
	ID        string
	ProductID string
	Name      string
	ImageRef  string
	UnitPrice int64
	Size      string
	Color     string
	Quantity  int
}

// Subtotal returns the line amount (unit price times quantity).
func (i LineItem) Subtotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// Cart is the ordered list of line items persisted per device. Order is display order only.
type Cart struct {
	Items []LineItem
}

// Len reports the number of distinct line items.
func (c Cart) Len() int {
	return len(c.Items)
}

// Find returns the line item with the given composite id.
func (c Cart) Find(id string) (LineItem, bool) {
	for _, item := range c.Items {
		if item.ID == id {
			return item, true
		}
	}
	return LineItem{}, false
}

// Clone copies the item slice so callers can mutate the result freely.
func (c Cart) Clone() Cart {
	if len(c.Items) == 0 {
		return Cart{Items: []LineItem{}}
	}
	items := make([]LineItem, len(c.Items))
	copy(items, c.Items)
	return Cart{Items: items}
}

// CartSummary is the derived pricing snapshot shown alongside a cart.
type CartSummary struct {
	ItemsCount   int
	Units        int
	Subtotal     int64
	Shipping     int64
	ShippingFree bool
	Total        int64
}

// Product is a read-only catalog record.
type Product struct {
	ID       string
	Name     string
	Price    int64
	ImageRef string
	Sizes    []string
}

// HasSize reports whether the product can be ordered in the given size.
func (p Product) HasSize(size string) bool {
	size = strings.TrimSpace(size)
	for _, s := range p.Sizes {
		if s == size {
			return true
		}
	}
	return false
}

// CardType enumerates the accepted card brands.
type CardType string

const (
	CardTypeVisa       CardType = "visa"
	CardTypeMastercard CardType = "mastercard"
)

// ParseCardType normalises user input into a CardType. ok is false for unknown brands.
func ParseCardType(raw string) (CardType, bool) {
	switch CardType(strings.ToLower(strings.TrimSpace(raw))) {
	case CardTypeVisa:
		return CardTypeVisa, true
	case CardTypeMastercard:
		return CardTypeMastercard, true
	default:
		return "", false
	}
}

// Field names of the checkout form.
const (
	FieldCardType         = "cardType"
	FieldCardNumber       = "cardNumber"
	FieldExpiry           = "expiry"
	FieldCVV              = "cvv"
	FieldFirstName        = "firstName"
	FieldLastName         = "lastName"
	FieldAddress          = "address"
	FieldAlternateAddress = "alternateAddress"
	FieldCountry          = "country"
	FieldCity             = "city"
	FieldPostalCode       = "postalCode"
	FieldEmail            = "email"
	FieldPhone            = "phone"
)

// CheckoutFields lists every known checkout field in display order.
var CheckoutFields = []string{
	FieldCardType,
	FieldCardNumber,
	FieldExpiry,
	FieldCVV,
	FieldFirstName,
	FieldLastName,
	FieldAddress,
	FieldAlternateAddress,
	FieldCountry,
	FieldCity,
	FieldPostalCode,
	FieldEmail,
	FieldPhone,
}

// CheckoutForm maps field names to their current string values.
type CheckoutForm map[string]string

// NewCheckoutForm returns a form with every known field initialised to the empty string.
func NewCheckoutForm() CheckoutForm {
	form := make(CheckoutForm, len(CheckoutFields))
	for _, field := range CheckoutFields {
		form[field] = ""
	}
	return form
}

// Get returns the value of the field or the empty string.
func (f CheckoutForm) Get(field string) string {
	if f == nil {
		return ""
	}
	return f[field]
}

// Clone copies the form.
func (f CheckoutForm) Clone() CheckoutForm {
	out := make(CheckoutForm, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// ErrorMap maps field names to human-readable validation messages. Valid fields are absent.
type ErrorMap map[string]string

// Empty reports whether no field carries an error.
func (e ErrorMap) Empty() bool {
	return len(e) == 0
}

// Fields returns the erroneous field names in checkout display order.
func (e ErrorMap) Fields() []string {
	out := make([]string, 0, len(e))
	for _, field := range CheckoutFields {
		if _, ok := e[field]; ok {
			out = append(out, field)
		}
	}
	return out
}

// CheckoutConfirmation records a checkout that passed validation and reached the confirmed state.
type CheckoutConfirmation struct {
	ID          string
	DeviceID    string
	CardType    CardType
	CardLast4   string
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	Address     string
	City        string
	PostalCode  string
	Country     string
	Items       []LineItem
	Total       int64
	ConfirmedAt time.Time
}

// User is the account profile document stored alongside Firebase Authentication users.
type User struct {
	UID       string
	Name      string
	Email     string
	Role      string
	CreatedAt time.Time
	LastLogin time.Time
}

// CartChanged is emitted after a cart has been persisted. Origin identifies the emitting
// process so relays can drop their own echoes.
type CartChanged struct {
	DeviceID   string
	Cart       Cart
	Summary    CartSummary
	Origin     string
	OccurredAt time.Time
}
