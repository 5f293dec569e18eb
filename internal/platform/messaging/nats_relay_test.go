package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sneakerhub/storefront/internal/domain"
)

type fakeSubscription struct {
	unsubscribed bool
}

func (s *fakeSubscription) Unsubscribe() error {
	s.unsubscribed = true
	return nil
}

// loopbackConn delivers published messages synchronously to every subscriber.
type loopbackConn struct {
	handlers []nats.MsgHandler
	subs     []*fakeSubscription
	drained  bool
}

func (c *loopbackConn) Publish(subject string, data []byte) error {
	for _, handler := range c.handlers {
		handler(&nats.Msg{Subject: subject, Data: data})
	}
	return nil
}

func (c *loopbackConn) Subscribe(_ string, handler nats.MsgHandler) (subscription, error) {
	c.handlers = append(c.handlers, handler)
	sub := &fakeSubscription{}
	c.subs = append(c.subs, sub)
	return sub, nil
}

func (c *loopbackConn) Drain() error {
	c.drained = true
	return nil
}

func sampleEvent() domain.CartChanged {
	return domain.CartChanged{
		DeviceID: "device-1",
		Cart: domain.Cart{Items: []domain.LineItem{
			{ID: "1-42", ProductID: "1", Name: "Adidas Superstar x Korn", UnitPrice: 129999, Size: "42", Quantity: 2},
		}},
		Summary:    domain.CartSummary{ItemsCount: 1, Units: 2, Subtotal: 259998, ShippingFree: true, Total: 259998},
		OccurredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestNATSRelayDeliversRemoteEvents(t *testing.T) {
	conn := &loopbackConn{}
	local := newNATSRelay(conn, "", "instance-a", nil)
	remote := newNATSRelay(conn, "", "instance-b", nil)

	var received []domain.CartChanged
	require.NoError(t, local.Start(func(e domain.CartChanged) { received = append(received, e) }))

	require.NoError(t, remote.Publish(context.Background(), sampleEvent()))

	require.Len(t, received, 1)
	got := received[0]
	assert.Equal(t, "instance-b", got.Origin)
	assert.Equal(t, "device-1", got.DeviceID)
	assert.Equal(t, int64(259998), got.Summary.Total)
	assert.Equal(t, sampleEvent().Cart.Items, got.Cart.Items)
}

func TestNATSRelayDropsOwnEcho(t *testing.T) {
	conn := &loopbackConn{}
	relay := newNATSRelay(conn, "", "instance-a", nil)

	calls := 0
	require.NoError(t, relay.Start(func(domain.CartChanged) { calls++ }))
	require.NoError(t, relay.Publish(context.Background(), sampleEvent()))

	assert.Zero(t, calls)
}

func TestNATSRelayIgnoresMalformedPayload(t *testing.T) {
	conn := &loopbackConn{}
	relay := newNATSRelay(conn, "", "instance-a", nil)

	calls := 0
	require.NoError(t, relay.Start(func(domain.CartChanged) { calls++ }))
	require.NoError(t, conn.Publish(DefaultCartSubject, []byte("not-json")))

	assert.Zero(t, calls)
}

func TestNATSRelayClose(t *testing.T) {
	conn := &loopbackConn{}
	relay := newNATSRelay(conn, "", "instance-a", nil)
	require.NoError(t, relay.Start(func(domain.CartChanged) {}))

	require.NoError(t, relay.Close())
	assert.True(t, conn.drained)
	assert.True(t, conn.subs[0].unsubscribed)
	assert.ErrorIs(t, relay.Publish(context.Background(), sampleEvent()), ErrRelayClosed)
	assert.NoError(t, relay.Close())
}
