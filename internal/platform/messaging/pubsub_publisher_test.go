package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/sneakerhub/storefront/internal/domain"
)

func TestPubSubCheckoutPublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	topic, err := client.CreateTopic(ctx, "checkout-confirmed")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubCheckoutPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubCheckoutPublisher: %v", err)
	}

	confirmation := domain.CheckoutConfirmation{
		ID:        "01J9Z3Q5V6W7X8Y9Z0ABCDEFGH",
		DeviceID:  "device-1",
		CardType:  domain.CardTypeVisa,
		CardLast4: "4242",
		FirstName: "Ana",
		LastName:  "Gomez",
		Items: []domain.LineItem{
			{ID: "3-42", ProductID: "3", Name: "Nike Air Max 720", Size: "42", UnitPrice: 179999, Quantity: 2},
		},
		Total:       359998,
		ConfirmedAt: time.Date(2026, 5, 6, 9, 0, 0, 0, time.UTC),
	}

	if _, err := publisher.PublishCheckoutConfirmed(ctx, confirmation); err != nil {
		t.Fatalf("PublishCheckoutConfirmed: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload CheckoutConfirmedMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.CheckoutID != confirmation.ID || payload.Total != 359998 || len(payload.Items) != 1 {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["deviceId"]; attr != "device-1" {
		t.Fatalf("expected device attribute, got %q", attr)
	}
	if _, ok := messages[0].Attributes["country"]; ok {
		t.Fatalf("country attribute should not be present")
	}
}

func TestNewPubSubCheckoutPublisherRequiresTopic(t *testing.T) {
	if _, err := NewPubSubCheckoutPublisher(nil); err == nil {
		t.Fatal("expected error for nil topic")
	}
}
