package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	gcs "cloud.google.com/go/storage"
)

// ErrObjectNotFound is returned when the requested object does not exist.
var ErrObjectNotFound = errors.New("storage: object not found")

// Bucket reads and writes small objects in a single Cloud Storage bucket.
type Bucket struct {
	handle *gcs.BucketHandle
	name   string
}

// NewBucket constructs a Bucket backed by the provided Cloud Storage client.
func NewBucket(client *gcs.Client, name string) (*Bucket, error) {
	if client == nil {
		return nil, errors.New("storage bucket: client is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("storage bucket: bucket name is required")
	}
	return &Bucket{handle: client.Bucket(name), name: name}, nil
}

// Name returns the bucket name.
func (b *Bucket) Name() string {
	return b.name
}

// Read returns the full object contents.
func (b *Bucket) Read(ctx context.Context, object string) ([]byte, error) {
	reader, err := b.handle.Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("storage: open %s: %w", object, err)
	}
	defer func() {
		_ = reader.Close()
	}()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", object, err)
	}
	return data, nil
}

// Write replaces the object contents.
func (b *Bucket) Write(ctx context.Context, object string, data []byte, contentType string) error {
	writer := b.handle.Object(object).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("storage: write %s: %w", object, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("storage: finalize %s: %w", object, err)
	}
	return nil
}

// Delete removes the object. Missing objects are not an error.
func (b *Bucket) Delete(ctx context.Context, object string) error {
	err := b.handle.Object(object).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("storage: delete %s: %w", object, err)
	}
	return nil
}
