package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sumire/federation/internal/domain"
	"github.com/sumire/federation/internal/provider"
	"github.com/sumire/federation/internal/service"
)

const stateCookieName = "oauth_state"

// AuthHandler handles provider login, local login and logout.
type AuthHandler struct {
	registry    *provider.Registry
	oauth2      *provider.OAuth2Transport
	callbacks   *service.CallbackService
	credentials *service.CredentialVerifier
	sessions    *service.SessionBinder
	frontendURL string
	secure      bool
}

// AuthConfig holds the handler settings that come from configuration.
type AuthConfig struct {
	FrontendURL string
	// SecureCookies marks cookies Secure; set when served over https.
	SecureCookies bool
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(
	registry *provider.Registry,
	oauth2 *provider.OAuth2Transport,
	callbacks *service.CallbackService,
	credentials *service.CredentialVerifier,
	sessions *service.SessionBinder,
	cfg AuthConfig,
) *AuthHandler {
	return &AuthHandler{
		registry:    registry,
		oauth2:      oauth2,
		callbacks:   callbacks,
		credentials: credentials,
		sessions:    sessions,
		frontendURL: strings.TrimRight(cfg.FrontendURL, "/"),
		secure:      cfg.SecureCookies,
	}
}

// Redirect sends the browser to the provider's consent page. Both protocols
// carry a signed state bound to a nonce cookie, and an optional local
// return_to path taken from the query.
func (h *AuthHandler) Redirect(c echo.Context) error {
	kind := domain.ProviderKind(c.Param("provider"))
	entry, err := h.registry.Get(kind)
	if err != nil {
		return err
	}
	if entry.Protocol != provider.ProtocolOAuth2 && entry.Protocol != provider.ProtocolOpenID {
		return echo.NewHTTPError(http.StatusNotImplemented, fmt.Sprintf("%s sign-in is handled by an external strategy", kind))
	}

	state, nonce, err := h.sessions.IssueState(kind, c.QueryParam("return_to"))
	if err != nil {
		return err
	}

	target := ""
	if entry.Protocol == provider.ProtocolOAuth2 {
		target, err = h.oauth2.AuthCodeURL(entry, state)
		if err != nil {
			return err
		}
	} else {
		target = entry.OpenID.RedirectURL(state)
	}
	c.SetCookie(h.cookie(stateCookieName, nonce, 10*time.Minute))
	return c.Redirect(http.StatusTemporaryRedirect, target)
}

// Callback completes a provider handshake and redirects the browser to the
// frontend with the outcome, or back to the return path the flow started
// from when the caller ends up signed in.
func (h *AuthHandler) Callback(c echo.Context) error {
	kind := domain.ProviderKind(c.Param("provider"))
	entry, err := h.registry.Get(kind)
	if err != nil {
		return err
	}
	if entry.Protocol != provider.ProtocolOAuth2 && entry.Protocol != provider.ProtocolOpenID {
		return echo.NewHTTPError(http.StatusNotImplemented, fmt.Sprintf("%s sign-in is handled by an external strategy", kind))
	}
	ctx := c.Request().Context()

	if reason := c.QueryParam("error"); reason != "" {
		return fmt.Errorf("%w: %s denied access: %s", domain.ErrUnauthorized, kind, reason)
	}
	returnTo, err := h.verifyState(c, kind)
	if err != nil {
		return err
	}

	var cb provider.Callback
	if entry.Protocol == provider.ProtocolOAuth2 {
		code := c.QueryParam("code")
		if code == "" {
			return fmt.Errorf("%w: missing code parameter", domain.ErrInvalidInput)
		}
		cb, err = h.oauth2.Complete(ctx, entry, code)
	} else {
		var claimedID string
		claimedID, err = entry.OpenID.Verify(ctx, c.QueryParams())
		cb = provider.Callback{Kind: kind, Payload: provider.AssertionPayload(claimedID)}
	}

	var out domain.Outcome
	if err != nil {
		out, err = h.callbacks.Reject(kind, err)
	} else {
		out, err = h.callbacks.Handle(ctx, cb, sessionContext(c))
	}
	if err != nil {
		return err
	}

	if err := h.applySession(c, out); err != nil {
		return err
	}
	if returnTo != "" && out.Authenticated() {
		return c.Redirect(http.StatusFound, returnTo)
	}
	return c.Redirect(http.StatusFound, outcomeRedirectURL(h.frontendURL, out))
}

// verifyState checks the state query parameter against the nonce cookie set
// by Redirect and clears the cookie. It returns the state's return path.
func (h *AuthHandler) verifyState(c echo.Context, kind domain.ProviderKind) (string, error) {
	nonce := ""
	if cookie, err := c.Cookie(stateCookieName); err == nil {
		nonce = cookie.Value
	}
	c.SetCookie(h.cookie(stateCookieName, "", -1))
	return h.sessions.VerifyState(c.QueryParam("state"), nonce, kind)
}

// LoginRequest is the request body for local login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login signs in with email and password.
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: invalid request body", domain.ErrInvalidInput)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	out, err := h.credentials.Authenticate(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	if !out.Authenticated() {
		return domain.ErrInvalidCredential
	}
	if err := h.applySession(c, out); err != nil {
		return err
	}
	return JSON(c, http.StatusOK, newOutcomeResponse(out))
}

// SignupRequest is the request body for local registration.
type SignupRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// Signup registers a local identity and signs it in.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req SignupRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: invalid request body", domain.ErrInvalidInput)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ident, err := h.credentials.Register(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	out := domain.Outcome{Kind: domain.OutcomeCreated, Provider: domain.ProviderLocal, Identity: ident}
	if err := h.applySession(c, out); err != nil {
		return err
	}
	return JSON(c, http.StatusCreated, newOutcomeResponse(out))
}

// Logout clears the session cookie.
func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(h.cookie(sessionCookieName, "", -1))
	return c.NoContent(http.StatusNoContent)
}

// applySession binds the identity of an authenticated outcome to the browser
// and drops a session the outcome showed to be stale.
func (h *AuthHandler) applySession(c echo.Context, out domain.Outcome) error {
	switch {
	case out.Authenticated():
		token, err := h.sessions.Serialize(out.Identity)
		if err != nil {
			return err
		}
		c.SetCookie(h.cookie(sessionCookieName, token, h.sessions.TTL()))
	case out.Kind == domain.OutcomeSessionInvalid:
		c.SetCookie(h.cookie(sessionCookieName, "", -1))
	}
	return nil
}

// cookie builds an HttpOnly cookie. A negative maxAge deletes it.
func (h *AuthHandler) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge < 0 {
		ck.MaxAge = -1
	} else {
		ck.MaxAge = int(maxAge.Seconds())
	}
	return ck
}
