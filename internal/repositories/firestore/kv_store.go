package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/sneakerhub/storefront/internal/platform/firestore"
	"github.com/sneakerhub/storefront/internal/repositories"
)

const defaultDeviceCollection = "devices"

// KeyValueStore keeps one document per device with a string field per key, mirroring a
// browser's local storage.
type KeyValueStore struct {
	coll *pfirestore.Collection[map[string]any]
}

var _ repositories.KeyValueStore = (*KeyValueStore)(nil)

// NewKeyValueStore constructs a Firestore-backed key value store.
func NewKeyValueStore(provider *pfirestore.Provider, collection string) (*KeyValueStore, error) {
	if provider == nil {
		return nil, errors.New("kv store requires firestore provider")
	}
	if strings.TrimSpace(collection) == "" {
		collection = defaultDeviceCollection
	}
	return &KeyValueStore{
		coll: pfirestore.NewCollection[map[string]any](provider, collection, nil, nil),
	}, nil
}

// Get returns the raw value stored under key for the namespace.
func (s *KeyValueStore) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	if err := validateKey(namespace, key); err != nil {
		return nil, err
	}
	ref, err := s.coll.Doc(ctx, namespace)
	if err != nil {
		return nil, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		wrapped := pfirestore.WrapError(s.coll.Name()+".get", err)
		if pfirestore.IsNotFound(wrapped) {
			return nil, repositories.ErrKeyNotFound
		}
		return nil, wrapped
	}
	raw, err := snap.DataAtPath(firestore.FieldPath{key})
	if err != nil {
		return nil, repositories.ErrKeyNotFound
	}
	value, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("kv store: field %s of %s is %T, not string", key, namespace, raw)
	}
	return []byte(value), nil
}

// Set overwrites the value stored under key, leaving other keys of the namespace intact.
func (s *KeyValueStore) Set(ctx context.Context, namespace, key string, value []byte) error {
	if err := validateKey(namespace, key); err != nil {
		return err
	}
	ref, err := s.coll.Doc(ctx, namespace)
	if err != nil {
		return err
	}
	_, err = ref.Set(ctx, map[string]any{
		key:         string(value),
		"updatedAt": firestore.ServerTimestamp,
	}, firestore.Merge(firestore.FieldPath{key}, firestore.FieldPath{"updatedAt"}))
	if err != nil {
		return pfirestore.WrapError(s.coll.Name()+".set", err)
	}
	return nil
}

func validateKey(namespace, key string) error {
	if strings.TrimSpace(namespace) == "" {
		return errors.New("kv store: namespace is required")
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("kv store: key is required")
	}
	if strings.Contains(namespace, "/") {
		return errors.New("kv store: namespace must not contain '/'")
	}
	return nil
}
