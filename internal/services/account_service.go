package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sneakerhub/storefront/internal/platform/auth"
	"github.com/sneakerhub/storefront/internal/repositories"
)

const (
	minPasswordLength = 6
	defaultUserRole   = "user"
)

// AuthReason classifies account failures.
type AuthReason string

const (
	AuthReasonUserNotFound     AuthReason = "user-not-found"
	AuthReasonWrongPassword    AuthReason = "wrong-password"
	AuthReasonInvalidEmail     AuthReason = "invalid-email"
	AuthReasonTooManyRequests  AuthReason = "too-many-requests"
	AuthReasonEmailInUse       AuthReason = "email-already-in-use"
	AuthReasonWeakPassword     AuthReason = "weak-password"
	AuthReasonNetworkFailure   AuthReason = "network-failure"
	AuthReasonUserDisabled     AuthReason = "user-disabled"
	AuthReasonMissingFields    AuthReason = "missing-fields"
	AuthReasonPasswordMismatch AuthReason = "password-mismatch"
	AuthReasonUnknown          AuthReason = "unknown"
)

var authReasonMessages = map[AuthReason]string{
	AuthReasonUserNotFound:     msgAuthUserNotFound,
	AuthReasonWrongPassword:    msgAuthWrongPassword,
	AuthReasonInvalidEmail:     msgAuthInvalidEmail,
	AuthReasonTooManyRequests:  msgAuthTooMany,
	AuthReasonEmailInUse:       msgAuthEmailInUse,
	AuthReasonWeakPassword:     msgAuthWeakPassword,
	AuthReasonNetworkFailure:   msgAuthNetwork,
	AuthReasonUserDisabled:     msgAuthUserDisabled,
	AuthReasonMissingFields:    msgAuthMissingFields,
	AuthReasonPasswordMismatch: msgAuthPasswordsDiffer,
	AuthReasonUnknown:          msgAuthUnknown,
}

// AuthError is returned by AccountService operations. Message is already localized.
type AuthError struct {
	Reason  AuthReason
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("account: %s: %v", e.Reason, e.Err)
	}
	return "account: " + string(e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ErrAccountNotFound is returned when the user profile document does not exist.
var ErrAccountNotFound = errors.New("account: profile not found")

// PasswordAuthenticator signs users in and sends reset emails. *auth.PasswordClient satisfies it.
type PasswordAuthenticator interface {
	SignIn(ctx context.Context, email, password string) (auth.SignInResult, error)
	SendPasswordReset(ctx context.Context, email string) error
}

// AccountAdmin creates users and revokes sessions. *auth.FirebaseClient satisfies it.
type AccountAdmin interface {
	CreateUser(ctx context.Context, email, password, displayName string) (string, error)
	RevokeRefreshTokens(ctx context.Context, uid string) error
}

// AccountServiceDeps wires the account service.
type AccountServiceDeps struct {
	Passwords PasswordAuthenticator
	Admin     AccountAdmin
	Users     repositories.UserRepository
	Localizer *Localizer
	Clock     func() time.Time
	Logger    EventLogger
}

type accountService struct {
	passwords PasswordAuthenticator
	admin     AccountAdmin
	users     repositories.UserRepository
	localizer *Localizer
	now       func() time.Time
	logger    EventLogger
}

// NewAccountService constructs an AccountService.
func NewAccountService(deps AccountServiceDeps) (AccountService, error) {
	if deps.Passwords == nil {
		return nil, errors.New("account service: password authenticator is required")
	}
	if deps.Admin == nil {
		return nil, errors.New("account service: account admin is required")
	}
	if deps.Users == nil {
		return nil, errors.New("account service: user repository is required")
	}
	localizer := deps.Localizer
	if localizer == nil {
		localizer = NewLocalizer(DefaultLocale)
	}
	return &accountService{
		passwords: deps.Passwords,
		admin:     deps.Admin,
		users:     deps.Users,
		localizer: localizer,
		now:       clockOrNow(deps.Clock),
		logger:    loggerOrNoop(deps.Logger),
	}, nil
}

// Login verifies the credentials and stamps the last login time on the profile.
func (s *accountService) Login(ctx context.Context, cmd LoginCommand) (Session, error) {
	email := strings.TrimSpace(cmd.Email)
	if email == "" || cmd.Password == "" {
		return Session{}, s.authError(ctx, AuthReasonMissingFields, nil)
	}
	result, err := s.passwords.SignIn(ctx, email, cmd.Password)
	if err != nil {
		return Session{}, s.classify(ctx, "account.login_failed", err)
	}

	now := s.now().UTC()
	if err := s.users.TouchLastLogin(ctx, result.UID, now); err != nil {
		s.logger(ctx, "account.last_login_failed", map[string]any{"uid": result.UID, "error": err.Error()})
	}
	user, err := s.users.FindByID(ctx, result.UID)
	if err != nil {
		user = User{UID: result.UID, Email: strings.ToLower(result.Email), Role: defaultUserRole}
	}
	user.LastLogin = now
	s.logger(ctx, "account.login", map[string]any{"uid": result.UID})
	return Session{
		User:         user,
		IDToken:      result.IDToken,
		RefreshToken: result.RefreshToken,
		ExpiresIn:    int64(result.ExpiresIn / time.Second),
	}, nil
}

// Register creates the Firebase account and its profile document.
func (s *accountService) Register(ctx context.Context, cmd RegisterCommand) (User, error) {
	name := strings.TrimSpace(cmd.Name)
	email := strings.TrimSpace(cmd.Email)
	if name == "" || email == "" || cmd.Password == "" || cmd.ConfirmPassword == "" {
		return User{}, s.authError(ctx, AuthReasonMissingFields, nil)
	}
	if cmd.Password != cmd.ConfirmPassword {
		return User{}, s.authError(ctx, AuthReasonPasswordMismatch, nil)
	}
	if len([]rune(cmd.Password)) < minPasswordLength {
		return User{}, s.authError(ctx, AuthReasonWeakPassword, nil)
	}

	uid, err := s.admin.CreateUser(ctx, email, cmd.Password, name)
	if err != nil {
		return User{}, s.classify(ctx, "account.register_failed", err)
	}
	now := s.now().UTC()
	user := User{
		UID:       uid,
		Name:      name,
		Email:     strings.ToLower(email),
		Role:      defaultUserRole,
		CreatedAt: now,
		LastLogin: now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		s.logger(ctx, "account.profile_create_failed", map[string]any{"uid": uid, "error": err.Error()})
		return User{}, s.authError(ctx, AuthReasonUnknown, err)
	}
	s.logger(ctx, "account.registered", map[string]any{"uid": uid})
	return user, nil
}

func (s *accountService) Logout(ctx context.Context, uid string) error {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return s.authError(ctx, AuthReasonMissingFields, nil)
	}
	if err := s.admin.RevokeRefreshTokens(ctx, uid); err != nil {
		return s.classify(ctx, "account.logout_failed", err)
	}
	s.logger(ctx, "account.logout", map[string]any{"uid": uid})
	return nil
}

func (s *accountService) ResetPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return s.authError(ctx, AuthReasonMissingFields, nil)
	}
	if err := s.passwords.SendPasswordReset(ctx, email); err != nil {
		return s.classify(ctx, "account.reset_failed", err)
	}
	return nil
}

func (s *accountService) CurrentUser(ctx context.Context, uid string) (User, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return User{}, s.authError(ctx, AuthReasonMissingFields, nil)
	}
	user, err := s.users.FindByID(ctx, uid)
	if err != nil {
		if repositories.IsNotFound(err) {
			return User{}, ErrAccountNotFound
		}
		return User{}, err
	}
	return user, nil
}

func (s *accountService) classify(ctx context.Context, event string, err error) error {
	reason := ReasonFor(err)
	s.logger(ctx, event, map[string]any{"reason": string(reason), "error": err.Error()})
	return s.authError(ctx, reason, err)
}

func (s *accountService) authError(ctx context.Context, reason AuthReason, err error) *AuthError {
	return &AuthError{
		Reason:  reason,
		Message: s.localizer.Text(ctx, authReasonMessages[reason]),
		Err:     err,
	}
}

// ReasonFor maps identity provider failures onto account failure reasons.
func ReasonFor(err error) AuthReason {
	var authErr *AuthError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &authErr):
		return authErr.Reason
	case errors.Is(err, auth.ErrUserNotFound):
		return AuthReasonUserNotFound
	case errors.Is(err, auth.ErrWrongPassword):
		return AuthReasonWrongPassword
	case errors.Is(err, auth.ErrInvalidEmail):
		return AuthReasonInvalidEmail
	case errors.Is(err, auth.ErrTooManyAttempts):
		return AuthReasonTooManyRequests
	case errors.Is(err, auth.ErrEmailInUse):
		return AuthReasonEmailInUse
	case errors.Is(err, auth.ErrWeakPassword):
		return AuthReasonWeakPassword
	case errors.Is(err, auth.ErrNetwork):
		return AuthReasonNetworkFailure
	case errors.Is(err, auth.ErrUserDisabled):
		return AuthReasonUserDisabled
	default:
		return AuthReasonUnknown
	}
}

// NewAuthError builds an AuthError for reason with its message localized for ctx.
func NewAuthError(ctx context.Context, localizer *Localizer, reason AuthReason) *AuthError {
	if localizer == nil {
		localizer = NewLocalizer(DefaultLocale)
	}
	key, ok := authReasonMessages[reason]
	if !ok {
		key = msgAuthUnknown
	}
	return &AuthError{Reason: reason, Message: localizer.Text(ctx, key)}
}
