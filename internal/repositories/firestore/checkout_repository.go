package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/sneakerhub/storefront/internal/domain"
	pfirestore "github.com/sneakerhub/storefront/internal/platform/firestore"
	"github.com/sneakerhub/storefront/internal/repositories"
)

const (
	defaultCheckoutCollection = "checkouts"
	defaultCheckoutListLimit  = 20
)

// CheckoutRepository records confirmed checkouts.
type CheckoutRepository struct {
	base *pfirestore.Collection[checkoutDocument]
}

var _ repositories.CheckoutRepository = (*CheckoutRepository)(nil)

// NewCheckoutRepository constructs a Firestore-backed checkout repository.
func NewCheckoutRepository(provider *pfirestore.Provider, collection string) (*CheckoutRepository, error) {
	if provider == nil {
		return nil, errors.New("checkout repository requires firestore provider")
	}
	if strings.TrimSpace(collection) == "" {
		collection = defaultCheckoutCollection
	}
	return &CheckoutRepository{base: pfirestore.NewCollection[checkoutDocument](provider, collection, nil, nil)}, nil
}

// Insert stores a confirmation. Confirmation ids are unique so a duplicate is a conflict.
func (r *CheckoutRepository) Insert(ctx context.Context, confirmation domain.CheckoutConfirmation) error {
	if strings.TrimSpace(confirmation.ID) == "" {
		return errors.New("checkout repository: id is required")
	}
	return r.base.Create(ctx, confirmation.ID, fromDomainCheckout(confirmation))
}

// FindByID loads a confirmation.
func (r *CheckoutRepository) FindByID(ctx context.Context, id string) (domain.CheckoutConfirmation, error) {
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.CheckoutConfirmation{}, err
	}
	confirmation := toDomainCheckout(doc.Data)
	confirmation.ID = doc.ID
	return confirmation, nil
}

// ListByDevice returns the most recent confirmations for a device, newest first.
func (r *CheckoutRepository) ListByDevice(ctx context.Context, deviceID string, limit int) ([]domain.CheckoutConfirmation, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, errors.New("checkout repository: device id is required")
	}
	if limit <= 0 {
		limit = defaultCheckoutListLimit
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("deviceId", "==", deviceID).OrderBy("confirmedAt", firestore.Desc).Limit(limit)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.CheckoutConfirmation, 0, len(docs))
	for _, doc := range docs {
		confirmation := toDomainCheckout(doc.Data)
		confirmation.ID = doc.ID
		out = append(out, confirmation)
	}
	return out, nil
}

type checkoutDocument struct {
	DeviceID    string                 `firestore:"deviceId"`
	CardType    string                 `firestore:"cardType"`
	CardLast4   string                 `firestore:"cardLast4"`
	FirstName   string                 `firestore:"firstName"`
	LastName    string                 `firestore:"lastName"`
	Email       string                 `firestore:"email"`
	Phone       string                 `firestore:"phone"`
	Address     string                 `firestore:"address"`
	City        string                 `firestore:"city"`
	PostalCode  string                 `firestore:"postalCode"`
	Country     string                 `firestore:"country,omitempty"`
	Items       []checkoutItemDocument `firestore:"items"`
	Total       int64                  `firestore:"total"`
	ConfirmedAt time.Time              `firestore:"confirmedAt"`
}

type checkoutItemDocument struct {
	ID        string `firestore:"id"`
	ProductID string `firestore:"productId"`
	Name      string `firestore:"name"`
	ImageRef  string `firestore:"imageRef,omitempty"`
	UnitPrice int64  `firestore:"unitPrice"`
	Size      string `firestore:"size"`
	Color     string `firestore:"color,omitempty"`
	Quantity  int    `firestore:"quantity"`
}

func fromDomainCheckout(c domain.CheckoutConfirmation) checkoutDocument {
	items := make([]checkoutItemDocument, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, checkoutItemDocument(item))
	}
	return checkoutDocument{
		DeviceID:    c.DeviceID,
		CardType:    string(c.CardType),
		CardLast4:   c.CardLast4,
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		Email:       c.Email,
		Phone:       c.Phone,
		Address:     c.Address,
		City:        c.City,
		PostalCode:  c.PostalCode,
		Country:     c.Country,
		Items:       items,
		Total:       c.Total,
		ConfirmedAt: c.ConfirmedAt.UTC(),
	}
}

func toDomainCheckout(doc checkoutDocument) domain.CheckoutConfirmation {
	items := make([]domain.LineItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, domain.LineItem(item))
	}
	return domain.CheckoutConfirmation{
		DeviceID:    doc.DeviceID,
		CardType:    domain.CardType(doc.CardType),
		CardLast4:   doc.CardLast4,
		FirstName:   doc.FirstName,
		LastName:    doc.LastName,
		Email:       doc.Email,
		Phone:       doc.Phone,
		Address:     doc.Address,
		City:        doc.City,
		PostalCode:  doc.PostalCode,
		Country:     doc.Country,
		Items:       items,
		Total:       doc.Total,
		ConfirmedAt: doc.ConfirmedAt,
	}
}
