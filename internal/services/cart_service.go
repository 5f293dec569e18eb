package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCartInvalidInput indicates a malformed cart request.
	ErrCartInvalidInput = errors.New("cart: invalid input")
)

// CartSubscriber hands out per-device change subscriptions. *CartBroadcaster satisfies it.
type CartSubscriber interface {
	Subscribe(ctx context.Context, deviceID string) (<-chan CartChanged, func())
}

// CartServiceDeps wires the cart service.
type CartServiceDeps struct {
	Store       *CartStore
	Catalog     CatalogService
	Subscribers CartSubscriber
	Metrics     Metrics
	Logger      EventLogger
}

type cartService struct {
	store       *CartStore
	catalog     CatalogService
	subscribers CartSubscriber
	metrics     Metrics
	logger      EventLogger
}

// NewCartService constructs a CartService. Concurrent mutations of the same device are not
// serialised; the last save wins.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Store == nil {
		return nil, errors.New("cart service: cart store is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("cart service: catalog service is required")
	}
	return &cartService{
		store:       deps.Store,
		catalog:     deps.Catalog,
		subscribers: deps.Subscribers,
		metrics:     metricsOrNoop(deps.Metrics),
		logger:      loggerOrNoop(deps.Logger),
	}, nil
}

func (s *cartService) Get(ctx context.Context, deviceID string) (CartView, error) {
	deviceID, err := requireDevice(deviceID)
	if err != nil {
		return CartView{}, err
	}
	return newCartView(deviceID, s.store.Load(ctx, deviceID)), nil
}

func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (CartView, error) {
	deviceID, err := requireDevice(cmd.DeviceID)
	if err != nil {
		return CartView{}, err
	}
	item, err := s.catalog.BuildLineItem(ctx, cmd)
	if err != nil {
		return CartView{}, err
	}
	return s.mutate(ctx, deviceID, "add", func(cart Cart) Cart {
		return AddOrMerge(cart, item)
	}), nil
}

func (s *cartService) SetQuantity(ctx context.Context, cmd SetCartQuantityCommand) (CartView, error) {
	deviceID, err := requireDevice(cmd.DeviceID)
	if err != nil {
		return CartView{}, err
	}
	itemID := strings.TrimSpace(cmd.ItemID)
	if itemID == "" {
		return CartView{}, fmt.Errorf("%w: item id is required", ErrCartInvalidInput)
	}
	return s.mutate(ctx, deviceID, "set_quantity", func(cart Cart) Cart {
		return SetQuantity(cart, itemID, cmd.Quantity)
	}), nil
}

func (s *cartService) Remove(ctx context.Context, deviceID string, itemID string) (CartView, error) {
	deviceID, err := requireDevice(deviceID)
	if err != nil {
		return CartView{}, err
	}
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return CartView{}, fmt.Errorf("%w: item id is required", ErrCartInvalidInput)
	}
	return s.mutate(ctx, deviceID, "remove", func(cart Cart) Cart {
		return Remove(cart, itemID)
	}), nil
}

func (s *cartService) Clear(ctx context.Context, deviceID string) (CartView, error) {
	deviceID, err := requireDevice(deviceID)
	if err != nil {
		return CartView{}, err
	}
	return s.mutate(ctx, deviceID, "clear", Clear), nil
}

func (s *cartService) Subscribe(ctx context.Context, deviceID string) (<-chan CartChanged, func()) {
	if s.subscribers == nil {
		ch := make(chan CartChanged)
		close(ch)
		return ch, func() {}
	}
	return s.subscribers.Subscribe(ctx, strings.TrimSpace(deviceID))
}

func (s *cartService) mutate(ctx context.Context, deviceID string, operation string, apply func(Cart) Cart) CartView {
	cart := apply(s.store.Load(ctx, deviceID))
	s.store.Save(ctx, deviceID, cart)
	s.metrics.CartMutation(operation)
	s.logger(ctx, "cart."+operation, map[string]any{
		"deviceId": deviceID,
		"items":    cart.Len(),
	})
	return newCartView(deviceID, cart)
}

func newCartView(deviceID string, cart Cart) CartView {
	return CartView{DeviceID: deviceID, Cart: cart, Summary: Summarize(cart)}
}

func requireDevice(deviceID string) (string, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return "", fmt.Errorf("%w: device id is required", ErrCartInvalidInput)
	}
	return deviceID, nil
}
