package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/sneakerhub/storefront/internal/platform/config"
)

var errFirebaseNotInitialised = errors.New("firebase client not initialised")

// FirebaseClient wraps the Admin SDK auth client with bounded call timeouts.
type FirebaseClient struct {
	client  *firebaseauth.Client
	timeout time.Duration
}

// FirebaseOption customises FirebaseClient instances.
type FirebaseOption func(*FirebaseClient)

// WithFirebaseTimeout overrides the timeout used for Admin SDK calls.
func WithFirebaseTimeout(d time.Duration) FirebaseOption {
	return func(c *FirebaseClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewFirebaseClient initialises the Firebase app and its auth client.
func NewFirebaseClient(ctx context.Context, cfg config.FirebaseConfig, opts ...FirebaseOption) (*FirebaseClient, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("firebase project id is required")
	}

	var clientOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase app: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase auth client: %w", err)
	}

	client := &FirebaseClient{client: authClient, timeout: defaultVerifyTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// VerifyIDToken validates the ID token signature, audience and expiry.
func (c *FirebaseClient) VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error) {
	if c == nil || c.client == nil {
		return nil, errFirebaseNotInitialised
	}
	ctx, cancel := c.contextWithTimeout(ctx)
	defer cancel()
	return c.client.VerifyIDToken(ctx, idToken)
}

// CreateUser registers an email/password account and returns its UID.
func (c *FirebaseClient) CreateUser(ctx context.Context, email, password, displayName string) (string, error) {
	if c == nil || c.client == nil {
		return "", errFirebaseNotInitialised
	}
	ctx, cancel := c.contextWithTimeout(ctx)
	defer cancel()

	params := (&firebaseauth.UserToCreate{}).
		Email(strings.TrimSpace(email)).
		Password(password)
	if name := strings.TrimSpace(displayName); name != "" {
		params = params.DisplayName(name)
	}
	record, err := c.client.CreateUser(ctx, params)
	if err != nil {
		return "", classifyAdminError(err)
	}
	return record.UID, nil
}

// RevokeRefreshTokens signs the user out of every session.
func (c *FirebaseClient) RevokeRefreshTokens(ctx context.Context, uid string) error {
	if c == nil || c.client == nil {
		return errFirebaseNotInitialised
	}
	ctx, cancel := c.contextWithTimeout(ctx)
	defer cancel()
	if err := c.client.RevokeRefreshTokens(ctx, uid); err != nil {
		return classifyAdminError(err)
	}
	return nil
}

func (c *FirebaseClient) contextWithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func classifyAdminError(err error) error {
	switch {
	case err == nil:
		return nil
	case firebaseauth.IsEmailAlreadyExists(err):
		return fmt.Errorf("%w: %v", ErrEmailInUse, err)
	case firebaseauth.IsInvalidEmail(err):
		return fmt.Errorf("%w: %v", ErrInvalidEmail, err)
	case firebaseauth.IsUserNotFound(err):
		return fmt.Errorf("%w: %v", ErrUserNotFound, err)
	case firebaseauth.IsUserDisabled(err):
		return fmt.Errorf("%w: %v", ErrUserDisabled, err)
	case isNetworkError(err):
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	default:
		return err
	}
}
