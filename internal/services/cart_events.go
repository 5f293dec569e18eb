package services

import (
	"context"
	"strings"
	"sync"
)

const defaultSubscriberBuffer = 8

// CartRelay forwards cart changes to other instances. *messaging.NATSRelay satisfies it.
type CartRelay interface {
	Publish(ctx context.Context, event CartChanged) error
	Start(deliver func(CartChanged)) error
	Close() error
}

// CartPublisher receives cart changes after they are persisted.
type CartPublisher interface {
	Publish(ctx context.Context, event CartChanged)
}

// CartBroadcaster fans cart changes out to in-process subscribers and, when a relay is
// attached, to other instances. Slow subscribers drop events rather than block writers.
type CartBroadcaster struct {
	mu      sync.Mutex
	subs    map[string]map[uint64]chan CartChanged
	next    uint64
	buffer  int
	relay   CartRelay
	metrics Metrics
	logger  EventLogger
}

// CartBroadcasterOption customises a CartBroadcaster.
type CartBroadcasterOption func(*CartBroadcaster)

// WithCartRelay attaches a cross-instance relay.
func WithCartRelay(relay CartRelay) CartBroadcasterOption {
	return func(b *CartBroadcaster) {
		b.relay = relay
	}
}

// WithSubscriberBuffer sets the per-subscriber channel buffer.
func WithSubscriberBuffer(n int) CartBroadcasterOption {
	return func(b *CartBroadcaster) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// WithBroadcasterMetrics records the open subscription gauge.
func WithBroadcasterMetrics(m Metrics) CartBroadcasterOption {
	return func(b *CartBroadcaster) {
		b.metrics = metricsOrNoop(m)
	}
}

// WithBroadcasterLogger sets the event logger.
func WithBroadcasterLogger(logger EventLogger) CartBroadcasterOption {
	return func(b *CartBroadcaster) {
		b.logger = loggerOrNoop(logger)
	}
}

// NewCartBroadcaster constructs a broadcaster.
func NewCartBroadcaster(opts ...CartBroadcasterOption) *CartBroadcaster {
	b := &CartBroadcaster{
		subs:    make(map[string]map[uint64]chan CartChanged),
		buffer:  defaultSubscriberBuffer,
		metrics: noopMetrics{},
		logger:  loggerOrNoop(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Start begins consuming relayed events from other instances.
func (b *CartBroadcaster) Start() error {
	if b.relay == nil {
		return nil
	}
	return b.relay.Start(b.Deliver)
}

// Close stops the relay and closes every subscriber channel.
func (b *CartBroadcaster) Close() error {
	var err error
	if b.relay != nil {
		err = b.relay.Close()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for device, subs := range b.subs {
		for id, ch := range subs {
			close(ch)
			delete(subs, id)
			b.metrics.SubscriberDelta(-1)
		}
		delete(b.subs, device)
	}
	return err
}

// Publish delivers event locally and forwards it through the relay.
func (b *CartBroadcaster) Publish(ctx context.Context, event CartChanged) {
	b.Deliver(event)
	if b.relay == nil {
		return
	}
	if err := b.relay.Publish(ctx, event); err != nil {
		b.logger(ctx, "cart.relay.publish_failed", map[string]any{
			"deviceId": event.DeviceID,
			"error":    err.Error(),
		})
	}
}

// Deliver hands event to local subscribers of its device only.
func (b *CartBroadcaster) Deliver(event CartChanged) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[event.DeviceID] {
		snapshot := event
		snapshot.Cart = event.Cart.Clone()
		select {
		case ch <- snapshot:
		default:
		}
	}
}

// Subscribe registers for changes to one device's cart. The returned function unsubscribes
// and closes the channel; it is also invoked when ctx ends.
func (b *CartBroadcaster) Subscribe(ctx context.Context, deviceID string) (<-chan CartChanged, func()) {
	deviceID = strings.TrimSpace(deviceID)
	ch := make(chan CartChanged, b.buffer)

	b.mu.Lock()
	b.next++
	id := b.next
	if b.subs[deviceID] == nil {
		b.subs[deviceID] = make(map[uint64]chan CartChanged)
	}
	b.subs[deviceID][id] = ch
	b.mu.Unlock()
	b.metrics.SubscriberDelta(1)

	var once sync.Once
	done := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			close(done)
			b.mu.Lock()
			defer b.mu.Unlock()
			subs := b.subs[deviceID]
			if _, ok := subs[id]; !ok {
				return
			}
			delete(subs, id)
			if len(subs) == 0 {
				delete(b.subs, deviceID)
			}
			close(ch)
			b.metrics.SubscriberDelta(-1)
		})
	}
	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				cancel()
			case <-done:
			}
		}()
	}
	return ch, cancel
}

// Subscribers reports the number of open subscriptions for a device.
func (b *CartBroadcaster) Subscribers(deviceID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[deviceID])
}
