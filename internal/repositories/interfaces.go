package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/sneakerhub/storefront/internal/domain"
)

// ErrKeyNotFound is returned by KeyValueStore.Get when nothing is stored under the key.
var ErrKeyNotFound = errors.New("kv store: key not found")

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// KeyValueStore is the device-local string store carts are persisted in. namespace scopes
// keys per device.
type KeyValueStore interface {
	Get(ctx context.Context, namespace, key string) ([]byte, error)
	Set(ctx context.Context, namespace, key string, value []byte) error
}

// UserRepository persists account profile documents.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	FindByID(ctx context.Context, uid string) (domain.User, error)
	TouchLastLogin(ctx context.Context, uid string, at time.Time) error
}

// CheckoutRepository records confirmed checkouts.
type CheckoutRepository interface {
	Insert(ctx context.Context, confirmation domain.CheckoutConfirmation) error
	FindByID(ctx context.Context, id string) (domain.CheckoutConfirmation, error)
	ListByDevice(ctx context.Context, deviceID string, limit int) ([]domain.CheckoutConfirmation, error)
}

// CatalogRepository serves the read-only product catalog.
type CatalogRepository interface {
	List(ctx context.Context) ([]domain.Product, error)
	FindByID(ctx context.Context, id string) (domain.Product, error)
}

// HealthRepository reports dependency health for readiness probes.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Error is the in-process RepositoryError used by non-Firestore backends.
type Error struct {
	Op          string
	Err         error
	NotFound    bool
	Conflict    bool
	Unavailable bool
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error       { return e.Err }
func (e *Error) IsNotFound() bool    { return e != nil && e.NotFound }
func (e *Error) IsConflict() bool    { return e != nil && e.Conflict }
func (e *Error) IsUnavailable() bool { return e != nil && e.Unavailable }

// NewNotFoundError builds a RepositoryError flagged as not found.
func NewNotFoundError(op string, err error) error {
	return &Error{Op: op, Err: err, NotFound: true}
}

// NewConflictError builds a RepositoryError flagged as conflict.
func NewConflictError(op string, err error) error {
	return &Error{Op: op, Err: err, Conflict: true}
}

// IsNotFound reports whether err is a RepositoryError flagged as not found.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

// IsConflict reports whether err is a RepositoryError flagged as conflict.
func IsConflict(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}
