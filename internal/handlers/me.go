package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sneakerhub/storefront/internal/platform/auth"
	"github.com/sneakerhub/storefront/internal/platform/httpx"
	"github.com/sneakerhub/storefront/internal/services"
)

// MeHandlers exposes the authenticated profile of the current user.
type MeHandlers struct {
	authn    *auth.Authenticator
	accounts services.AccountService
}

// NewMeHandlers constructs handlers enforcing Firebase authentication before invoking the account service.
func NewMeHandlers(authn *auth.Authenticator, accounts services.AccountService) *MeHandlers {
	return &MeHandlers{
		authn:    authn,
		accounts: accounts,
	}
}

// Routes wires the /me endpoints onto the provided router.
func (h *MeHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.getProfile)
}

func (h *MeHandlers) getProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.accounts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("account_service_unavailable", "account service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	user, err := h.accounts.CurrentUser(ctx, identity.UID)
	if err != nil {
		writeAccountError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildUserPayload(user))
}
