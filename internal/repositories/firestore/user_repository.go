package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/sneakerhub/storefront/internal/domain"
	pfirestore "github.com/sneakerhub/storefront/internal/platform/firestore"
	"github.com/sneakerhub/storefront/internal/repositories"
)

const defaultUserCollection = "users"

// UserRepository persists account profile documents keyed by Firebase uid.
type UserRepository struct {
	base *pfirestore.Collection[userDocument]
}

var _ repositories.UserRepository = (*UserRepository)(nil)

// NewUserRepository constructs a Firestore-backed user repository.
func NewUserRepository(provider *pfirestore.Provider, collection string) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}
	if strings.TrimSpace(collection) == "" {
		collection = defaultUserCollection
	}
	return &UserRepository{base: pfirestore.NewCollection[userDocument](provider, collection, nil, nil)}, nil
}

// Create writes the profile document. An existing document is reported as a conflict.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	if strings.TrimSpace(user.UID) == "" {
		return errors.New("user repository: uid is required")
	}
	return r.base.Create(ctx, user.UID, fromDomainUser(user))
}

// FindByID loads the profile by uid.
func (r *UserRepository) FindByID(ctx context.Context, uid string) (domain.User, error) {
	if strings.TrimSpace(uid) == "" {
		return domain.User{}, errors.New("user repository: uid is required")
	}
	doc, err := r.base.Get(ctx, uid)
	if err != nil {
		return domain.User{}, err
	}
	user := toDomainUser(doc.Data)
	if user.UID == "" {
		user.UID = doc.ID
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = doc.CreateTime
	}
	return user, nil
}

// TouchLastLogin stamps the last successful login time.
func (r *UserRepository) TouchLastLogin(ctx context.Context, uid string, at time.Time) error {
	if strings.TrimSpace(uid) == "" {
		return errors.New("user repository: uid is required")
	}
	return r.base.Update(ctx, uid, []firestore.Update{{Path: "lastLogin", Value: at.UTC()}})
}

// DocumentPath constructs the document path for the provided uid.
func (r *UserRepository) DocumentPath(uid string) string {
	return fmt.Sprintf("%s/%s", r.base.Name(), strings.TrimSpace(uid))
}

type userDocument struct {
	UID       string    `firestore:"uid"`
	Name      string    `firestore:"nombre"`
	Email     string    `firestore:"email"`
	Role      string    `firestore:"role"`
	CreatedAt time.Time `firestore:"createdAt"`
	LastLogin time.Time `firestore:"lastLogin,omitempty"`
}

func toDomainUser(doc userDocument) domain.User {
	return domain.User{
		UID:       strings.TrimSpace(doc.UID),
		Name:      strings.TrimSpace(doc.Name),
		Email:     strings.TrimSpace(doc.Email),
		Role:      strings.TrimSpace(doc.Role),
		CreatedAt: doc.CreatedAt,
		LastLogin: doc.LastLogin,
	}
}

func fromDomainUser(user domain.User) userDocument {
	role := strings.ToLower(strings.TrimSpace(user.Role))
	if role == "" {
		role = "user"
	}
	created := user.CreatedAt.UTC()
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return userDocument{
		UID:       strings.TrimSpace(user.UID),
		Name:      strings.TrimSpace(user.Name),
		Email:     strings.ToLower(strings.TrimSpace(user.Email)),
		Role:      role,
		CreatedAt: created,
		LastLogin: user.LastLogin.UTC(),
	}
}
