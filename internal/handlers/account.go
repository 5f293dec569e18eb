package handlers

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sneakerhub/storefront/internal/platform/auth"
	"github.com/sneakerhub/storefront/internal/platform/httpx"
	"github.com/sneakerhub/storefront/internal/services"
)

const (
	defaultLoginFailureLimit  = 5
	defaultLoginFailureWindow = 15 * time.Minute
)

// AccountHandlers exposes login, registration, logout and password reset.
type AccountHandlers struct {
	authn     *auth.Authenticator
	accounts  services.AccountService
	localizer *services.Localizer
	limiter   failureLimiter
}

// AccountOption customises AccountHandlers.
type AccountOption func(*AccountHandlers)

// WithAccountLocalizer sets the localizer used for messages produced by the handlers themselves.
func WithAccountLocalizer(l *services.Localizer) AccountOption {
	return func(h *AccountHandlers) {
		if l != nil {
			h.localizer = l
		}
	}
}

// WithLoginFailureLimit blocks a client and email pair after limit failed logins within window.
// A non-positive limit disables the check.
func WithLoginFailureLimit(limit int, window time.Duration, clock func() time.Time) AccountOption {
	return func(h *AccountHandlers) {
		h.limiter = newFailureLimiter(limit, window, clock)
	}
}

// NewAccountHandlers constructs account handlers. Logout requires Firebase authentication.
func NewAccountHandlers(authn *auth.Authenticator, accounts services.AccountService, opts ...AccountOption) *AccountHandlers {
	h := &AccountHandlers{
		authn:     authn,
		accounts:  accounts,
		localizer: services.NewLocalizer(services.DefaultLocale),
		limiter:   newFailureLimiter(defaultLoginFailureLimit, defaultLoginFailureWindow, nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the /account endpoints onto the provided router.
func (h *AccountHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/login", h.login)
	r.Post("/register", h.register)
	r.Post("/password-reset", h.resetPassword)
	r.Group(func(r chi.Router) {
		if h.authn != nil {
			r.Use(h.authn.RequireFirebaseAuth())
		}
		r.Post("/logout", h.logout)
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

type userPayload struct {
	UID       string `json:"uid"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt,omitempty"`
	LastLogin string `json:"lastLogin,omitempty"`
}

type sessionResponse struct {
	User         userPayload `json:"user"`
	IDToken      string      `json:"idToken"`
	RefreshToken string      `json:"refreshToken"`
	ExpiresIn    int64       `json:"expiresIn"`
}

func (h *AccountHandlers) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}
	var req loginRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}

	key := clientAddress(r) + "|" + strings.TrimSpace(req.Email)
	if h.limiter != nil && h.limiter.Blocked(key) {
		writeAccountError(ctx, w, services.NewAuthError(ctx, h.localizer, services.AuthReasonTooManyRequests))
		return
	}

	session, err := h.accounts.Login(ctx, services.LoginCommand{Email: req.Email, Password: req.Password})
	if err != nil {
		if h.limiter != nil && countsAsFailedLogin(err) {
			h.limiter.Fail(key)
		}
		writeAccountError(ctx, w, err)
		return
	}
	if h.limiter != nil {
		h.limiter.Reset(key)
	}

	httpx.WriteJSON(w, http.StatusOK, sessionResponse{
		User:         buildUserPayload(session.User),
		IDToken:      session.IDToken,
		RefreshToken: session.RefreshToken,
		ExpiresIn:    session.ExpiresIn,
	})
}

func (h *AccountHandlers) register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}
	var req registerRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}
	user, err := h.accounts.Register(ctx, services.RegisterCommand{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		writeAccountError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, buildUserPayload(user))
}

func (h *AccountHandlers) resetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}
	var req passwordResetRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}
	if err := h.accounts.ResetPassword(ctx, req.Email); err != nil {
		writeAccountError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *AccountHandlers) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}
	if err := h.accounts.Logout(ctx, identity.UID); err != nil {
		writeAccountError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AccountHandlers) ready(ctx context.Context, w http.ResponseWriter) bool {
	if h.accounts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("account_service_unavailable", "account service is unavailable", http.StatusServiceUnavailable))
		return false
	}
	return true
}

func buildUserPayload(user services.User) userPayload {
	return userPayload{
		UID:       user.UID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: formatTime(user.CreatedAt),
		LastLogin: formatTime(user.LastLogin),
	}
}

func countsAsFailedLogin(err error) bool {
	switch services.ReasonFor(err) {
	case services.AuthReasonWrongPassword, services.AuthReasonUserNotFound, services.AuthReasonInvalidEmail:
		return true
	default:
		return false
	}
}

func clientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeAccountError(ctx context.Context, w http.ResponseWriter, err error) {
	var authErr *services.AuthError
	if !errors.As(err, &authErr) {
		if errors.Is(err, services.ErrAccountNotFound) {
			httpx.WriteError(ctx, w, httpx.NewError("account_not_found", "account profile not found", http.StatusNotFound))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("account_error", err.Error(), http.StatusInternalServerError))
		return
	}

	status := http.StatusInternalServerError
	switch authErr.Reason {
	case services.AuthReasonMissingFields,
		services.AuthReasonPasswordMismatch,
		services.AuthReasonWeakPassword,
		services.AuthReasonInvalidEmail:
		status = http.StatusBadRequest
	case services.AuthReasonUserNotFound, services.AuthReasonWrongPassword:
		status = http.StatusUnauthorized
	case services.AuthReasonUserDisabled:
		status = http.StatusForbidden
	case services.AuthReasonEmailInUse:
		status = http.StatusConflict
	case services.AuthReasonTooManyRequests:
		status = http.StatusTooManyRequests
	case services.AuthReasonNetworkFailure:
		status = http.StatusServiceUnavailable
	}
	httpx.WriteError(ctx, w, httpx.NewError(string(authErr.Reason), authErr.Message, status))
}
