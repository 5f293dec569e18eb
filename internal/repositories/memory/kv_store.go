package memory

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/sneakerhub/storefront/internal/repositories"
)

// KeyValueStore keeps values in process memory.
type KeyValueStore struct {
	mu     sync.RWMutex
	values map[string]map[string][]byte
}

var _ repositories.KeyValueStore = (*KeyValueStore)(nil)

// NewKeyValueStore constructs an empty store.
func NewKeyValueStore() *KeyValueStore {
	return &KeyValueStore{values: make(map[string]map[string][]byte)}
}

// Get implements repositories.KeyValueStore.
func (s *KeyValueStore) Get(_ context.Context, namespace, key string) ([]byte, error) {
	if strings.TrimSpace(namespace) == "" || strings.TrimSpace(key) == "" {
		return nil, errors.New("memory kv store: namespace and key are required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[namespace][key]
	if !ok {
		return nil, repositories.ErrKeyNotFound
	}
	return append([]byte(nil), value...), nil
}

// Set implements repositories.KeyValueStore.
func (s *KeyValueStore) Set(_ context.Context, namespace, key string, value []byte) error {
	if strings.TrimSpace(namespace) == "" || strings.TrimSpace(key) == "" {
		return errors.New("memory kv store: namespace and key are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.values[namespace]
	if !ok {
		bucket = make(map[string][]byte)
		s.values[namespace] = bucket
	}
	bucket[key] = append([]byte(nil), value...)
	return nil
}

// Namespaces lists every namespace holding at least one key.
func (s *KeyValueStore) Namespaces() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.values))
	for ns := range s.values {
		out = append(out, ns)
	}
	return out
}
