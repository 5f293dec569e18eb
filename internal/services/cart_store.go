package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sneakerhub/storefront/internal/repositories"
)

// DefaultCartKey is the fixed key the cart is stored under.
const DefaultCartKey = "carrito"

// CartStoreDeps wires the persistent cart store.
type CartStoreDeps struct {
	Store     repositories.KeyValueStore
	Key       string
	Publisher CartPublisher
	Metrics   Metrics
	Clock     func() time.Time
	Logger    EventLogger
	Origin    string
}

// CartStore reads and writes the serialised cart of one device. Reads fail open and writes
// never surface errors.
type CartStore struct {
	store     repositories.KeyValueStore
	key       string
	publisher CartPublisher
	metrics   Metrics
	now       func() time.Time
	logger    EventLogger
	origin    string
}

// NewCartStore constructs a CartStore.
func NewCartStore(deps CartStoreDeps) (*CartStore, error) {
	if deps.Store == nil {
		return nil, errors.New("cart store: key value store is required")
	}
	key := strings.TrimSpace(deps.Key)
	if key == "" {
		key = DefaultCartKey
	}
	return &CartStore{
		store:     deps.Store,
		key:       key,
		publisher: deps.Publisher,
		metrics:   metricsOrNoop(deps.Metrics),
		now:       clockOrNow(deps.Clock),
		logger:    loggerOrNoop(deps.Logger),
		origin:    deps.Origin,
	}, nil
}

// Key reports the storage key.
func (s *CartStore) Key() string {
	return s.key
}

// Load returns the device's cart. A missing key, a read failure or a parse failure all
// yield an empty cart; failures are logged and counted.
func (s *CartStore) Load(ctx context.Context, deviceID string) Cart {
	raw, err := s.store.Get(ctx, deviceID, s.key)
	if err != nil {
		if !errors.Is(err, repositories.ErrKeyNotFound) {
			s.metrics.StoreError("load")
			s.logger(ctx, "cart.store.load_failed", map[string]any{
				"deviceId": deviceID,
				"key":      s.key,
				"error":    err.Error(),
			})
		}
		return Cart{Items: []LineItem{}}
	}
	cart, err := DecodeCart(raw)
	if err != nil {
		s.metrics.StoreError("decode")
		s.logger(ctx, "cart.store.decode_failed", map[string]any{
			"deviceId": deviceID,
			"key":      s.key,
			"error":    err.Error(),
		})
		return Cart{Items: []LineItem{}}
	}
	return cart
}

// Save overwrites the device's cart and announces the change. Errors are logged and
// counted, never returned. The change is announced whether or not the write succeeded.
func (s *CartStore) Save(ctx context.Context, deviceID string, cart Cart) {
	data, err := EncodeCart(cart)
	if err == nil {
		err = s.store.Set(ctx, deviceID, s.key, data)
	}
	if err != nil {
		s.metrics.StoreError("save")
		s.logger(ctx, "cart.store.save_failed", map[string]any{
			"deviceId": deviceID,
			"key":      s.key,
			"error":    err.Error(),
		})
	}
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, CartChanged{
		DeviceID:   deviceID,
		Cart:       cart.Clone(),
		Summary:    Summarize(cart),
		Origin:     s.origin,
		OccurredAt: s.now().UTC(),
	})
}
