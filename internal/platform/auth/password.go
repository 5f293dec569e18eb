package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	identitytoolkit "google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"
)

// Account failures surfaced by the Identity Toolkit and Admin APIs.
var (
	ErrUserNotFound    = errors.New("auth: user not found")
	ErrWrongPassword   = errors.New("auth: wrong password")
	ErrInvalidEmail    = errors.New("auth: invalid email")
	ErrTooManyAttempts = errors.New("auth: too many attempts")
	ErrEmailInUse      = errors.New("auth: email already in use")
	ErrWeakPassword    = errors.New("auth: weak password")
	ErrUserDisabled    = errors.New("auth: user disabled")
	ErrNetwork         = errors.New("auth: network failure")
)

const passwordResetRequestType = "PASSWORD_RESET"

// SignInResult is returned by a successful password sign-in.
type SignInResult struct {
	UID          string
	Email        string
	IDToken      string
	RefreshToken string
	ExpiresIn    time.Duration
}

// PasswordClient signs users in and sends reset emails through the Identity Toolkit REST API.
type PasswordClient struct {
	service *identitytoolkit.Service
}

// NewPasswordClient builds a client authenticated with the project's web API key.
func NewPasswordClient(ctx context.Context, apiKey string, opts ...option.ClientOption) (*PasswordClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("auth: firebase web api key is required")
	}
	clientOpts := append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	service, err := identitytoolkit.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("auth: initialise identity toolkit: %w", err)
	}
	return &PasswordClient{service: service}, nil
}

// SignIn verifies an email/password pair.
func (c *PasswordClient) SignIn(ctx context.Context, email, password string) (SignInResult, error) {
	if c == nil || c.service == nil {
		return SignInResult{}, errors.New("auth: password client not initialised")
	}
	resp, err := c.service.Relyingparty.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             strings.TrimSpace(email),
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return SignInResult{}, ClassifyIdentityError(err)
	}
	result := SignInResult{
		UID:          resp.LocalId,
		Email:        resp.Email,
		IDToken:      resp.IdToken,
		RefreshToken: resp.RefreshToken,
	}
	if resp.ExpiresIn > 0 {
		result.ExpiresIn = time.Duration(resp.ExpiresIn) * time.Second
	}
	return result, nil
}

// SendPasswordReset asks Firebase to email a password reset link.
func (c *PasswordClient) SendPasswordReset(ctx context.Context, email string) error {
	if c == nil || c.service == nil {
		return errors.New("auth: password client not initialised")
	}
	_, err := c.service.Relyingparty.GetOobConfirmationCode(&identitytoolkit.Relyingparty{
		RequestType: passwordResetRequestType,
		Email:       strings.TrimSpace(email),
	}).Context(ctx).Do()
	if err != nil {
		return ClassifyIdentityError(err)
	}
	return nil
}

// ClassifyIdentityError maps Identity Toolkit error messages onto the package sentinels.
func ClassifyIdentityError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		reason := identityErrorReason(apiErr)
		switch {
		case strings.HasPrefix(reason, "EMAIL_NOT_FOUND"):
			return fmt.Errorf("%w: %s", ErrUserNotFound, reason)
		case strings.HasPrefix(reason, "INVALID_PASSWORD"), strings.HasPrefix(reason, "INVALID_LOGIN_CREDENTIALS"):
			return fmt.Errorf("%w: %s", ErrWrongPassword, reason)
		case strings.HasPrefix(reason, "INVALID_EMAIL"):
			return fmt.Errorf("%w: %s", ErrInvalidEmail, reason)
		case strings.HasPrefix(reason, "TOO_MANY_ATTEMPTS_TRY_LATER"):
			return fmt.Errorf("%w: %s", ErrTooManyAttempts, reason)
		case strings.HasPrefix(reason, "EMAIL_EXISTS"):
			return fmt.Errorf("%w: %s", ErrEmailInUse, reason)
		case strings.HasPrefix(reason, "WEAK_PASSWORD"):
			return fmt.Errorf("%w: %s", ErrWeakPassword, reason)
		case strings.HasPrefix(reason, "USER_DISABLED"):
			return fmt.Errorf("%w: %s", ErrUserDisabled, reason)
		}
		return err
	}
	if isNetworkError(err) {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return err
}

func identityErrorReason(apiErr *googleapi.Error) string {
	if apiErr.Message != "" {
		return strings.ToUpper(strings.TrimSpace(apiErr.Message))
	}
	for _, item := range apiErr.Errors {
		if item.Message != "" {
			return strings.ToUpper(strings.TrimSpace(item.Message))
		}
	}
	return ""
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
