package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sumire/federation/internal/domain"
	"github.com/sumire/federation/internal/service"
)

// AccountResponse is the public view of an identity. Tokens and the password
// hash never leave the server.
type AccountResponse struct {
	ID          string                         `json:"id"`
	Email       string                         `json:"email"`
	Profile     domain.Profile                 `json:"profile"`
	ProviderIDs map[domain.ProviderKind]string `json:"provider_ids,omitempty"`
	Linked      []domain.ProviderKind          `json:"linked"`
	HasPassword bool                           `json:"has_password"`
	CreatedAt   time.Time                      `json:"created_at"`
}

func newAccountResponse(ident *domain.Identity) *AccountResponse {
	return &AccountResponse{
		ID:          ident.ID,
		Email:       ident.Email,
		Profile:     ident.Profile,
		ProviderIDs: ident.ProviderIDs,
		Linked:      ident.LinkedKinds(),
		HasPassword: ident.Credential != "",
		CreatedAt:   ident.CreatedAt,
	}
}

// AccountHandler serves the signed-in user's own account.
type AccountHandler struct {
	accounts    *service.AccountService
	credentials *service.CredentialVerifier
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accounts *service.AccountService, credentials *service.CredentialVerifier) *AccountHandler {
	return &AccountHandler{accounts: accounts, credentials: credentials}
}

// Get returns the caller's account.
func (h *AccountHandler) Get(c echo.Context) error {
	ident, err := h.accounts.Get(c.Request().Context(), GetIdentity(c).ID)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, newAccountResponse(ident))
}

// ProfileRequest is the request body for profile edits.
type ProfileRequest struct {
	Email    string `json:"email" validate:"omitempty,email"`
	Name     string `json:"name" validate:"max=200"`
	Picture  string `json:"picture" validate:"omitempty,url"`
	Location string `json:"location" validate:"max=200"`
	Website  string `json:"website" validate:"omitempty,url"`
	Gender   string `json:"gender" validate:"max=50"`
}

// UpdateProfile replaces the caller's profile and, when given, their email.
func (h *AccountHandler) UpdateProfile(c echo.Context) error {
	var req ProfileRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: invalid request body", domain.ErrInvalidInput)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ident, err := h.accounts.UpdateProfile(c.Request().Context(), GetIdentity(c).ID, domain.Profile{
		Name:     req.Name,
		Picture:  req.Picture,
		Location: req.Location,
		Website:  req.Website,
		Gender:   req.Gender,
	}, req.Email)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, newAccountResponse(ident))
}

// PasswordRequest is the request body for setting a local password.
type PasswordRequest struct {
	Password        string `json:"password" validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// UpdatePassword sets or replaces the caller's local password.
func (h *AccountHandler) UpdatePassword(c echo.Context) error {
	var req PasswordRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: invalid request body", domain.ErrInvalidInput)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if err := h.credentials.SetPassword(c.Request().Context(), GetIdentity(c).ID, req.Password); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ProviderAPI reports the caller's access to a provider API. It sits behind
// RequireProvider, so the caller holds a token for the provider.
func (h *AccountHandler) ProviderAPI(c echo.Context) error {
	kind := domain.ProviderKind(c.Param("provider"))
	token, _ := GetIdentity(c).TokenFor(kind)
	return JSON(c, http.StatusOK, map[string]any{
		"provider":          kind,
		"has_refresh_token": token.RefreshToken != "",
		"has_token_secret":  token.TokenSecret != "",
	})
}
