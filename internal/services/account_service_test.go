package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sneakerhub/storefront/internal/platform/auth"
	"github.com/sneakerhub/storefront/internal/platform/requestctx"
	"github.com/sneakerhub/storefront/internal/repositories/memory"
)

type stubPasswords struct {
	result   auth.SignInResult
	err      error
	resetErr error
	resets   []string
}

func (s *stubPasswords) SignIn(context.Context, string, string) (auth.SignInResult, error) {
	return s.result, s.err
}

func (s *stubPasswords) SendPasswordReset(_ context.Context, email string) error {
	s.resets = append(s.resets, email)
	return s.resetErr
}

type stubAdmin struct {
	uid       string
	createErr error
	revoked   []string
}

func (s *stubAdmin) CreateUser(context.Context, string, string, string) (string, error) {
	return s.uid, s.createErr
}

func (s *stubAdmin) RevokeRefreshTokens(_ context.Context, uid string) error {
	s.revoked = append(s.revoked, uid)
	return nil
}

type accountFixture struct {
	passwords *stubPasswords
	admin     *stubAdmin
	users     *memory.UserRepository
	now       time.Time
	svc       AccountService
}

func newAccountFixture(t *testing.T) *accountFixture {
	t.Helper()
	f := &accountFixture{
		passwords: &stubPasswords{},
		admin:     &stubAdmin{uid: "uid-1"},
		users:     memory.NewUserRepository(),
		now:       time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC),
	}
	svc, err := NewAccountService(AccountServiceDeps{
		Passwords: f.passwords,
		Admin:     f.admin,
		Users:     f.users,
		Clock:     func() time.Time { return f.now },
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func requireAuthReason(t *testing.T, err error, reason AuthReason) *AuthError {
	t.Helper()
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr), "expected AuthError, got %v", err)
	assert.Equal(t, reason, authErr.Reason)
	return authErr
}

func TestRegisterValidation(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterCommand{Email: "a@b.co", Password: "secret1", ConfirmPassword: "secret1"})
	authErr := requireAuthReason(t, err, AuthReasonMissingFields)
	assert.Equal(t, "Por favor, complete todos los campos", authErr.Message)

	_, err = f.svc.Register(ctx, RegisterCommand{Name: "Ana", Email: "a@b.co", Password: "secret1", ConfirmPassword: "secret2"})
	requireAuthReason(t, err, AuthReasonPasswordMismatch)

	_, err = f.svc.Register(ctx, RegisterCommand{Name: "Ana", Email: "a@b.co", Password: "abc", ConfirmPassword: "abc"})
	authErr = requireAuthReason(t, err, AuthReasonWeakPassword)
	assert.Equal(t, "La contraseña debe tener al menos 6 caracteres", authErr.Message)
}

func TestRegisterCreatesProfile(t *testing.T) {
	f := newAccountFixture(t)
	user, err := f.svc.Register(context.Background(), RegisterCommand{
		Name:            "Ana",
		Email:           "Ana@Example.com",
		Password:        "secret1",
		ConfirmPassword: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, "uid-1", user.UID)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.Equal(t, "user", user.Role)

	stored, err := f.svc.CurrentUser(context.Background(), "uid-1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", stored.Name)
	assert.True(t, stored.CreatedAt.Equal(f.now))
}

func TestRegisterEmailInUse(t *testing.T) {
	f := newAccountFixture(t)
	f.admin.createErr = fmt.Errorf("%w: EMAIL_EXISTS", auth.ErrEmailInUse)

	ctx := requestctx.WithLocale(context.Background(), "en")
	_, err := f.svc.Register(ctx, RegisterCommand{Name: "Ana", Email: "a@b.co", Password: "secret1", ConfirmPassword: "secret1"})
	authErr := requireAuthReason(t, err, AuthReasonEmailInUse)
	assert.Equal(t, "The email address is already registered", authErr.Message)
}

func TestLoginStampsLastLogin(t *testing.T) {
	f := newAccountFixture(t)
	_, err := f.svc.Register(context.Background(), RegisterCommand{Name: "Ana", Email: "a@b.co", Password: "secret1", ConfirmPassword: "secret1"})
	require.NoError(t, err)

	f.now = f.now.Add(time.Hour)
	f.passwords.result = auth.SignInResult{UID: "uid-1", Email: "a@b.co", IDToken: "id", RefreshToken: "refresh", ExpiresIn: time.Hour}

	session, err := f.svc.Login(context.Background(), LoginCommand{Email: "a@b.co", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, int64(3600), session.ExpiresIn)
	assert.Equal(t, "Ana", session.User.Name)

	stored, err := f.users.FindByID(context.Background(), "uid-1")
	require.NoError(t, err)
	assert.True(t, stored.LastLogin.Equal(f.now))
}

func TestLoginFailureReasons(t *testing.T) {
	cases := []struct {
		err    error
		reason AuthReason
	}{
		{fmt.Errorf("%w: EMAIL_NOT_FOUND", auth.ErrUserNotFound), AuthReasonUserNotFound},
		{fmt.Errorf("%w: INVALID_PASSWORD", auth.ErrWrongPassword), AuthReasonWrongPassword},
		{fmt.Errorf("%w: TOO_MANY_ATTEMPTS_TRY_LATER", auth.ErrTooManyAttempts), AuthReasonTooManyRequests},
		{fmt.Errorf("%w: dial tcp", auth.ErrNetwork), AuthReasonNetworkFailure},
		{fmt.Errorf("%w: USER_DISABLED", auth.ErrUserDisabled), AuthReasonUserDisabled},
		{errors.New("teapot"), AuthReasonUnknown},
	}
	for _, tc := range cases {
		t.Run(string(tc.reason), func(t *testing.T) {
			f := newAccountFixture(t)
			f.passwords.err = tc.err
			_, err := f.svc.Login(context.Background(), LoginCommand{Email: "a@b.co", Password: "x"})
			authErr := requireAuthReason(t, err, tc.reason)
			assert.NotEmpty(t, authErr.Message)
		})
	}

	f := newAccountFixture(t)
	_, err := f.svc.Login(context.Background(), LoginCommand{Email: " "})
	requireAuthReason(t, err, AuthReasonMissingFields)
}

func TestLogoutAndReset(t *testing.T) {
	f := newAccountFixture(t)
	require.NoError(t, f.svc.Logout(context.Background(), "uid-1"))
	assert.Equal(t, []string{"uid-1"}, f.admin.revoked)

	require.NoError(t, f.svc.ResetPassword(context.Background(), " a@b.co "))
	assert.Equal(t, []string{"a@b.co"}, f.passwords.resets)

	f.passwords.resetErr = fmt.Errorf("%w: INVALID_EMAIL", auth.ErrInvalidEmail)
	requireAuthReason(t, f.svc.ResetPassword(context.Background(), "bad"), AuthReasonInvalidEmail)
}

func TestCurrentUserNotFound(t *testing.T) {
	f := newAccountFixture(t)
	_, err := f.svc.CurrentUser(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
