package blob

import (
	"context"
	"errors"

	"github.com/sneakerhub/storefront/internal/platform/storage"
	"github.com/sneakerhub/storefront/internal/repositories"
)

const jsonContentType = "application/json"

type objectBucket interface {
	Read(ctx context.Context, object string) ([]byte, error)
	Write(ctx context.Context, object string, data []byte, contentType string) error
}

// KeyValueStore keeps each key as its own Cloud Storage object under prefix/device/key.json.
type KeyValueStore struct {
	bucket objectBucket
	prefix string
}

var _ repositories.KeyValueStore = (*KeyValueStore)(nil)

// NewKeyValueStore constructs a GCS-backed key value store.
func NewKeyValueStore(bucket *storage.Bucket, prefix string) (*KeyValueStore, error) {
	if bucket == nil {
		return nil, errors.New("blob kv store: bucket is required")
	}
	return &KeyValueStore{bucket: bucket, prefix: prefix}, nil
}

// Get returns the object contents for key.
func (s *KeyValueStore) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	object, err := s.objectPath(namespace, key)
	if err != nil {
		return nil, err
	}
	data, err := s.bucket.Read(ctx, object)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, repositories.ErrKeyNotFound
	}
	return data, err
}

// Set replaces the object contents for key.
func (s *KeyValueStore) Set(ctx context.Context, namespace, key string, value []byte) error {
	object, err := s.objectPath(namespace, key)
	if err != nil {
		return err
	}
	return s.bucket.Write(ctx, object, value, jsonContentType)
}

func (s *KeyValueStore) objectPath(namespace, key string) (string, error) {
	return storage.BuildObjectPath(storage.PurposeCartSnapshot, storage.PathParams{
		Prefix:   s.prefix,
		DeviceID: namespace,
		Key:      key,
	})
}
