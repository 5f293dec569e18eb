package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/sneakerhub/storefront/internal/domain"
)

// CheckoutConfirmedMessage is the payload published for each confirmed checkout.
type CheckoutConfirmedMessage struct {
	CheckoutID  string             `json:"checkoutId"`
	DeviceID    string             `json:"deviceId"`
	CardType    string             `json:"cardType"`
	CardLast4   string             `json:"cardLast4"`
	FirstName   string             `json:"firstName"`
	LastName    string             `json:"lastName"`
	Email       string             `json:"email"`
	Phone       string             `json:"phone"`
	Address     string             `json:"address"`
	City        string             `json:"city"`
	PostalCode  string             `json:"postalCode"`
	Country     string             `json:"country,omitempty"`
	Items       []CheckoutLineItem `json:"items"`
	Total       int64              `json:"total"`
	ConfirmedAt time.Time          `json:"confirmedAt"`
}

// CheckoutLineItem is the line item shape inside CheckoutConfirmedMessage.
type CheckoutLineItem struct {
	ID        string `json:"id"`
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Size      string `json:"size"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
}

// NewCheckoutConfirmedMessage flattens a confirmation into its wire form.
func NewCheckoutConfirmedMessage(c domain.CheckoutConfirmation) CheckoutConfirmedMessage {
	items := make([]CheckoutLineItem, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, CheckoutLineItem{
			ID:        item.ID,
			ProductID: item.ProductID,
			Name:      item.Name,
			Size:      item.Size,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}
	return CheckoutConfirmedMessage{
		CheckoutID:  c.ID,
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

// PubSubCheckoutPublisher publishes confirmed checkouts to a Pub/Sub topic.
type PubSubCheckoutPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubCheckoutPublisher constructs a Pub/Sub backed checkout publisher.
func NewPubSubCheckoutPublisher(topic *pubsub.Topic) (*PubSubCheckoutPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub checkout publisher: topic is required")
	}
	return &PubSubCheckoutPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishCheckoutConfirmed publishes the confirmation and returns the server-assigned message id.
func (p *PubSubCheckoutPublisher) PublishCheckoutConfirmed(ctx context.Context, confirmation domain.CheckoutConfirmation) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub checkout publisher: not initialised")
	}

	data, err := p.marshal(NewCheckoutConfirmedMessage(confirmation))
	if err != nil {
		return "", fmt.Errorf("marshal checkout confirmation: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "checkoutId", confirmation.ID)
	setAttr(attrs, "deviceId", confirmation.DeviceID)
	setAttr(attrs, "cardType", string(confirmation.CardType))
	attrs["eventType"] = "checkout.confirmed"

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish checkout confirmation: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
