package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/sneakerhub/storefront/internal/domain"
)

// DefaultCartSubject is the subject cart change events are relayed on.
const DefaultCartSubject = "storefront.cart.changed"

// ErrRelayClosed is returned by operations on a closed relay.
var ErrRelayClosed = errors.New("nats relay: closed")

type subscription interface {
	Unsubscribe() error
}

type natsConn interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler nats.MsgHandler) (subscription, error)
	Drain() error
}

type connAdapter struct {
	nc *nats.Conn
}

func (a connAdapter) Publish(subject string, data []byte) error {
	return a.nc.Publish(subject, data)
}

func (a connAdapter) Subscribe(subject string, handler nats.MsgHandler) (subscription, error) {
	return a.nc.Subscribe(subject, handler)
}

func (a connAdapter) Drain() error {
	return a.nc.Drain()
}

// Connect dials NATS with reconnect settings suited to a long-running API instance.
func Connect(ctx context.Context, url string, name string) (*nats.Conn, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("nats relay: url is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return nc, nil
}

type cartChangedMessage struct {
	DeviceID   string             `json:"deviceId"`
	Items      []cartChangedItem  `json:"items"`
	Summary    cartChangedSummary `json:"summary"`
	Origin     string             `json:"origin"`
	OccurredAt time.Time          `json:"occurredAt"`
}

type cartChangedItem struct {
	ID        string `json:"id"`
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	ImageRef  string `json:"imageRef,omitempty"`
	UnitPrice int64  `json:"unitPrice"`
	Size      string `json:"size"`
	Color     string `json:"color,omitempty"`
	Quantity  int    `json:"quantity"`
}

type cartChangedSummary struct {
	ItemsCount   int   `json:"itemsCount"`
	Units        int   `json:"units"`
	Subtotal     int64 `json:"subtotal"`
	Shipping     int64 `json:"shipping"`
	ShippingFree bool  `json:"shippingFree"`
	Total        int64 `json:"total"`
}

func encodeCartChanged(event domain.CartChanged) ([]byte, error) {
	items := make([]cartChangedItem, 0, len(event.Cart.Items))
	for _, item := range event.Cart.Items {
		items = append(items, cartChangedItem(item))
	}
	return json.Marshal(cartChangedMessage{
		DeviceID:   event.DeviceID,
		Items:      items,
		Summary:    cartChangedSummary(event.Summary),
		Origin:     event.Origin,
		OccurredAt: event.OccurredAt.UTC(),
	})
}

func decodeCartChanged(data []byte) (domain.CartChanged, error) {
	var msg cartChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return domain.CartChanged{}, err
	}
	items := make([]domain.LineItem, 0, len(msg.Items))
	for _, item := range msg.Items {
		items = append(items, domain.LineItem(item))
	}
	return domain.CartChanged{
		DeviceID:   msg.DeviceID,
		Cart:       domain.Cart{Items: items},
		Summary:    domain.CartSummary(msg.Summary),
		Origin:     msg.Origin,
		OccurredAt: msg.OccurredAt,
	}, nil
}

// NATSRelay fans cart change events out to other API instances so their SSE subscribers
// see writes made elsewhere.
type NATSRelay struct {
	conn    natsConn
	subject string
	origin  string
	logger  *zap.Logger

	mu     sync.Mutex
	sub    subscription
	closed bool
}

// NewNATSRelay wraps an established connection. origin must be unique per process.
func NewNATSRelay(nc *nats.Conn, subject string, origin string, logger *zap.Logger) (*NATSRelay, error) {
	if nc == nil {
		return nil, errors.New("nats relay: connection is required")
	}
	return newNATSRelay(connAdapter{nc: nc}, subject, origin, logger), nil
}

func newNATSRelay(conn natsConn, subject string, origin string, logger *zap.Logger) *NATSRelay {
	if strings.TrimSpace(subject) == "" {
		subject = DefaultCartSubject
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSRelay{
		conn:    conn,
		subject: subject,
		origin:  origin,
		logger:  logger.Named("nats-relay"),
	}
}

// Origin returns the identifier stamped on events published by this relay.
func (r *NATSRelay) Origin() string {
	return r.origin
}

// Publish relays a locally produced event.
func (r *NATSRelay) Publish(ctx context.Context, event domain.CartChanged) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return ErrRelayClosed
	}

	event.Origin = r.origin
	data, err := encodeCartChanged(event)
	if err != nil {
		return fmt.Errorf("marshal cart event: %w", err)
	}
	if err := r.conn.Publish(r.subject, data); err != nil {
		return fmt.Errorf("publish cart event: %w", err)
	}
	return nil
}

// Start subscribes to remote events. Events carrying this relay's origin are dropped.
func (r *NATSRelay) Start(deliver func(domain.CartChanged)) error {
	if deliver == nil {
		return errors.New("nats relay: deliver func is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRelayClosed
	}
	if r.sub != nil {
		return nil
	}

	sub, err := r.conn.Subscribe(r.subject, func(msg *nats.Msg) {
		event, err := decodeCartChanged(msg.Data)
		if err != nil {
			r.logger.Warn("discarding malformed cart event", zap.Error(err))
			return
		}
		if event.Origin == r.origin {
			return
		}
		deliver(event)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", r.subject, err)
	}
	r.sub = sub
	return nil
}

// Close unsubscribes and drains the connection.
func (r *NATSRelay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	if r.sub != nil {
		if err := r.sub.Unsubscribe(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := r.conn.Drain(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
