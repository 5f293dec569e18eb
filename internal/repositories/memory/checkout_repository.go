package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/sneakerhub/storefront/internal/domain"
	"github.com/sneakerhub/storefront/internal/repositories"
)

// CheckoutRepository keeps confirmations in process memory.
type CheckoutRepository struct {
	mu      sync.RWMutex
	entries map[string]domain.CheckoutConfirmation
}

var _ repositories.CheckoutRepository = (*CheckoutRepository)(nil)

// NewCheckoutRepository constructs an empty repository.
func NewCheckoutRepository() *CheckoutRepository {
	return &CheckoutRepository{entries: make(map[string]domain.CheckoutConfirmation)}
}

// Insert implements repositories.CheckoutRepository.
func (r *CheckoutRepository) Insert(_ context.Context, confirmation domain.CheckoutConfirmation) error {
	id := strings.TrimSpace(confirmation.ID)
	if id == "" {
		return errors.New("memory checkout repository: id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[id]; exists {
		return repositories.NewConflictError("checkouts.insert", errors.New("checkout already recorded"))
	}
	confirmation.Items = append([]domain.LineItem(nil), confirmation.Items...)
	r.entries[id] = confirmation
	return nil
}

// FindByID implements repositories.CheckoutRepository.
func (r *CheckoutRepository) FindByID(_ context.Context, id string) (domain.CheckoutConfirmation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	confirmation, ok := r.entries[strings.TrimSpace(id)]
	if !ok {
		return domain.CheckoutConfirmation{}, repositories.NewNotFoundError("checkouts.get", errors.New("checkout not found"))
	}
	return confirmation, nil
}

// ListByDevice implements repositories.CheckoutRepository.
func (r *CheckoutRepository) ListByDevice(_ context.Context, deviceID string, limit int) ([]domain.CheckoutConfirmation, error) {
	r.mu.RLock()
	out := make([]domain.CheckoutConfirmation, 0)
	for _, confirmation := range r.entries {
		if confirmation.DeviceID == deviceID {
			out = append(out, confirmation)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].ConfirmedAt.After(out[j].ConfirmedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
