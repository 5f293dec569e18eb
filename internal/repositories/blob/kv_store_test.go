package blob

import (
	"context"
	"errors"
	"testing"

	"github.com/sneakerhub/storefront/internal/platform/storage"
	"github.com/sneakerhub/storefront/internal/repositories"
)

type fakeBucket struct {
	objects      map[string][]byte
	contentTypes map[string]string
	readErr      error
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (b *fakeBucket) Read(_ context.Context, object string) ([]byte, error) {
	if b.readErr != nil {
		return nil, b.readErr
	}
	data, ok := b.objects[object]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return data, nil
}

func (b *fakeBucket) Write(_ context.Context, object string, data []byte, contentType string) error {
	b.objects[object] = append([]byte(nil), data...)
	b.contentTypes[object] = contentType
	return nil
}

func TestKeyValueStoreRoundTrip(t *testing.T) {
	bucket := newFakeBucket()
	store := &KeyValueStore{bucket: bucket}
	ctx := context.Background()

	if _, err := store.Get(ctx, "device-1", "carrito"); !errors.Is(err, repositories.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
	if err := store.Set(ctx, "device-1", "carrito", []byte("[]")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok := bucket.objects["carts/device-1/carrito.json"]; !ok {
		t.Fatalf("expected object at carts/device-1/carrito.json, got %v", bucket.objects)
	}
	if ct := bucket.contentTypes["carts/device-1/carrito.json"]; ct != jsonContentType {
		t.Fatalf("unexpected content type %q", ct)
	}
	value, err := store.Get(ctx, "device-1", "carrito")
	if err != nil || string(value) != "[]" {
		t.Fatalf("unexpected value %q err %v", value, err)
	}
}

func TestKeyValueStorePropagatesReadErrors(t *testing.T) {
	bucket := newFakeBucket()
	bucket.readErr = errors.New("permission denied")
	store := &KeyValueStore{bucket: bucket, prefix: "tenant-a"}

	if _, err := store.Get(context.Background(), "device-1", "carrito"); err == nil || errors.Is(err, repositories.ErrKeyNotFound) {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestKeyValueStoreRejectsTraversal(t *testing.T) {
	store := &KeyValueStore{bucket: newFakeBucket()}
	if err := store.Set(context.Background(), "../other", "carrito", []byte("[]")); err == nil {
		t.Fatal("expected invalid namespace error")
	}
}
