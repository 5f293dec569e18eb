package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sneakerhub/storefront/internal/repositories"
	"github.com/sneakerhub/storefront/internal/repositories/memory"
)

type stubKV struct {
	values map[string][]byte
	getErr error
	setErr error
	sets   int
}

func (s *stubKV) Get(_ context.Context, namespace, key string) ([]byte, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	v, ok := s.values[namespace+"/"+key]
	if !ok {
		return nil, repositories.ErrKeyNotFound
	}
	return v, nil
}

func (s *stubKV) Set(_ context.Context, namespace, key string, value []byte) error {
	s.sets++
	if s.setErr != nil {
		return s.setErr
	}
	if s.values == nil {
		s.values = map[string][]byte{}
	}
	s.values[namespace+"/"+key] = value
	return nil
}

type countingMetrics struct {
	mu          sync.Mutex
	storeErrors map[string]int
	mutations   map[string]int
	outcomes    map[string]int
	subscribers int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{storeErrors: map[string]int{}, mutations: map[string]int{}, outcomes: map[string]int{}}
}

func (m *countingMetrics) CartMutation(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mutations[op]++
}

func (m *countingMetrics) StoreError(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storeErrors[op]++
}

func (m *countingMetrics) CheckoutOutcome(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[outcome]++
}

func (m *countingMetrics) SubscriberDelta(delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers += delta
}

type recordingPublisher struct {
	events []CartChanged
}

func (p *recordingPublisher) Publish(_ context.Context, event CartChanged) {
	p.events = append(p.events, event)
}

type capturedLog struct {
	event  string
	fields map[string]any
}

func captureLogger(logs *[]capturedLog) EventLogger {
	return func(_ context.Context, event string, fields map[string]any) {
		*logs = append(*logs, capturedLog{event: event, fields: fields})
	}
}

func TestCartStoreRoundTrip(t *testing.T) {
	kv := memory.NewKeyValueStore()
	store, err := NewCartStore(CartStoreDeps{Store: kv})
	if err != nil {
		t.Fatalf("NewCartStore: %v", err)
	}
	ctx := context.Background()

	if got := store.Load(ctx, "dev-1"); got.Len() != 0 {
		t.Fatalf("expected empty cart for unknown device, got %+v", got)
	}

	cart := AddOrMerge(Cart{}, sneaker("p1", "42", 2, 100))
	store.Save(ctx, "dev-1", cart)

	loaded := store.Load(ctx, "dev-1")
	if loaded.Len() != 1 || loaded.Items[0].ID != "p1-42" || loaded.Items[0].Quantity != 2 {
		t.Fatalf("unexpected loaded cart %+v", loaded)
	}
	if got := store.Load(ctx, "dev-2"); got.Len() != 0 {
		t.Fatalf("carts must be scoped per device, got %+v", got)
	}

	raw, err := kv.Get(ctx, "dev-1", DefaultCartKey)
	if err != nil {
		t.Fatalf("expected value under %q: %v", DefaultCartKey, err)
	}
	if len(raw) == 0 || raw[0] != '[' {
		t.Fatalf("expected JSON array, got %s", raw)
	}
}

func TestCartStoreLoadFailsOpen(t *testing.T) {
	cases := map[string]struct {
		kv     *stubKV
		metric string
	}{
		"read error": {kv: &stubKV{getErr: errors.New("unavailable")}, metric: "load"},
		"bad json":   {kv: &stubKV{values: map[string][]byte{"dev/" + DefaultCartKey: []byte("{not json")}}, metric: "decode"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			metrics := newCountingMetrics()
			var logs []capturedLog
			store, err := NewCartStore(CartStoreDeps{Store: tc.kv, Metrics: metrics, Logger: captureLogger(&logs)})
			if err != nil {
				t.Fatalf("NewCartStore: %v", err)
			}
			cart := store.Load(context.Background(), "dev")
			if cart.Len() != 0 || cart.Items == nil {
				t.Fatalf("expected empty non-nil cart, got %+v", cart)
			}
			if metrics.storeErrors[tc.metric] != 1 {
				t.Fatalf("expected %s error counted, got %v", tc.metric, metrics.storeErrors)
			}
			if len(logs) != 1 {
				t.Fatalf("expected one log entry, got %d", len(logs))
			}
		})
	}
}

func TestCartStoreSaveSwallowsErrorsAndPublishes(t *testing.T) {
	kv := &stubKV{setErr: errors.New("quota exceeded")}
	metrics := newCountingMetrics()
	publisher := &recordingPublisher{}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store, err := NewCartStore(CartStoreDeps{
		Store:     kv,
		Publisher: publisher,
		Metrics:   metrics,
		Clock:     func() time.Time { return now },
		Origin:    "instance-a",
	})
	if err != nil {
		t.Fatalf("NewCartStore: %v", err)
	}

	cart := AddOrMerge(Cart{}, sneaker("p1", "42", 3, 100))
	store.Save(context.Background(), "dev-1", cart)

	if metrics.storeErrors["save"] != 1 {
		t.Fatalf("expected save error counted, got %v", metrics.storeErrors)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("expected one change event, got %d", len(publisher.events))
	}
	event := publisher.events[0]
	if event.DeviceID != "dev-1" || event.Summary.Subtotal != 300 || event.Summary.Total != 300 {
		t.Fatalf("unexpected event %+v", event)
	}
	if event.Origin != "instance-a" || !event.OccurredAt.Equal(now) {
		t.Fatalf("unexpected event metadata %+v", event)
	}
}

func TestCartStoreCustomKey(t *testing.T) {
	kv := &stubKV{}
	store, err := NewCartStore(CartStoreDeps{Store: kv, Key: "cart"})
	if err != nil {
		t.Fatalf("NewCartStore: %v", err)
	}
	store.Save(context.Background(), "dev", Cart{})
	if _, ok := kv.values["dev/cart"]; !ok {
		t.Fatalf("expected value under custom key, got %v", kv.values)
	}
}

func TestNewCartStoreRequiresStore(t *testing.T) {
	if _, err := NewCartStore(CartStoreDeps{}); err == nil {
		t.Fatalf("expected error without store")
	}
}
