package services

import (
	"context"

	"github.com/sneakerhub/storefront/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Cart                 = domain.Cart
	LineItem             = domain.LineItem
	CartSummary          = domain.CartSummary
	CartChanged          = domain.CartChanged
	Product              = domain.Product
	CheckoutForm         = domain.CheckoutForm
	ErrorMap             = domain.ErrorMap
	CheckoutConfirmation = domain.CheckoutConfirmation
	User                 = domain.User
	SystemHealthReport   = domain.SystemHealthReport
)

// CartService manages the device-scoped cart: every mutation loads, reconciles, saves and publishes.
type CartService interface {
	Get(ctx context.Context, deviceID string) (CartView, error)
	AddItem(ctx context.Context, cmd AddCartItemCommand) (CartView, error)
	SetQuantity(ctx context.Context, cmd SetCartQuantityCommand) (CartView, error)
	Remove(ctx context.Context, deviceID string, itemID string) (CartView, error)
	Clear(ctx context.Context, deviceID string) (CartView, error)
	Subscribe(ctx context.Context, deviceID string) (<-chan CartChanged, func())
}

// CatalogService exposes the static product catalog.
type CatalogService interface {
	Search(ctx context.Context, query string) ([]ProductView, error)
	Get(ctx context.Context, productID string) (ProductView, error)
	BuildLineItem(ctx context.Context, cmd AddCartItemCommand) (LineItem, error)
}

// CheckoutService normalises and validates checkout input and drives submissions.
type CheckoutService interface {
	Normalize(field string, raw string, previous string) string
	Validate(ctx context.Context, form CheckoutForm) ErrorMap
	Submit(ctx context.Context, cmd SubmitCheckoutCommand) (CheckoutResult, error)
	History(ctx context.Context, deviceID string, limit int) ([]CheckoutConfirmation, error)
}

// AccountService is the login/register/logout/reset-password collaborator.
type AccountService interface {
	Login(ctx context.Context, cmd LoginCommand) (Session, error)
	Register(ctx context.Context, cmd RegisterCommand) (User, error)
	Logout(ctx context.Context, uid string) error
	ResetPassword(ctx context.Context, email string) error
	CurrentUser(ctx context.Context, uid string) (User, error)
}

// SystemService reports service health. Liveness never probes dependencies; HealthReport does.
type SystemService interface {
	Liveness(ctx context.Context) SystemHealthReport
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// CartView is a cart together with its derived pricing summary.
type CartView struct {
	DeviceID string
	Cart     Cart
	Summary  CartSummary
}

// AddCartItemCommand adds quantity units of a product in a size to a device cart.
type AddCartItemCommand struct {
	DeviceID  string
	ProductID string
	Size      string
	Quantity  int
	Color     string
}

// SetCartQuantityCommand replaces the quantity of one cart line.
type SetCartQuantityCommand struct {
	DeviceID string
	ItemID   string
	Quantity int
}

// ProductView decorates a product with its display prices.
type ProductView struct {
	Product
	TransferPrice        int64
	DisplayPrice         string
	DisplayTransferPrice string
}

// SubmitCheckoutCommand submits a checkout form for the device's current cart.
type SubmitCheckoutCommand struct {
	DeviceID  string
	Form      CheckoutForm
	ClearCart bool
}

// CheckoutResult reports the final state of a submission.
type CheckoutResult struct {
	State        CheckoutState
	Errors       ErrorMap
	Message      string
	Confirmation *CheckoutConfirmation
}

// LoginCommand carries email/password credentials.
type LoginCommand struct {
	Email    string
	Password string
}

// RegisterCommand carries the registration form.
type RegisterCommand struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

// Session is the result of a successful login.
type Session struct {
	User         User
	IDToken      string
	RefreshToken string
	ExpiresIn    int64
}
