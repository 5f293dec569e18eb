package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sneakerhub/storefront/internal/domain"
	"github.com/sneakerhub/storefront/internal/repositories"
)

// UserRepository keeps profiles in process memory.
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

var _ repositories.UserRepository = (*UserRepository)(nil)

// NewUserRepository constructs an empty repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]domain.User)}
}

// Create implements repositories.UserRepository.
func (r *UserRepository) Create(_ context.Context, user domain.User) error {
	uid := strings.TrimSpace(user.UID)
	if uid == "" {
		return errors.New("memory user repository: uid is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[uid]; exists {
		return repositories.NewConflictError("users.create", errors.New("user already exists"))
	}
	if user.Role == "" {
		user.Role = "user"
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	r.users[uid] = user
	return nil
}

// FindByID implements repositories.UserRepository.
func (r *UserRepository) FindByID(_ context.Context, uid string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[strings.TrimSpace(uid)]
	if !ok {
		return domain.User{}, repositories.NewNotFoundError("users.get", errors.New("user not found"))
	}
	return user, nil
}

// TouchLastLogin implements repositories.UserRepository.
func (r *UserRepository) TouchLastLogin(_ context.Context, uid string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[strings.TrimSpace(uid)]
	if !ok {
		return repositories.NewNotFoundError("users.update", errors.New("user not found"))
	}
	user.LastLogin = at.UTC()
	r.users[user.UID] = user
	return nil
}
