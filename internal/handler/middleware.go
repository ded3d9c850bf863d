package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sumire/federation/internal/domain"
	"github.com/sumire/federation/internal/service"
)

const (
	contextKeyIdentity = "identity"
	sessionCookieName  = "fed_session"
)

// RequestLogger logs each HTTP request with structured fields.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				// Write the error response now so the logged status is the one sent.
				c.Error(err)
			}

			attrs := []any{
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			}
			if ident := GetIdentity(c); ident != nil {
				attrs = append(attrs, "identity_id", ident.ID)
			}
			slog.Info("http request", attrs...)

			return nil
		}
	}
}

// LoadSession resolves the session cookie, or a Bearer token, into the
// caller's identity. Invalid or stale sessions leave the request anonymous.
func LoadSession(sessions *service.SessionBinder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := ""
			if cookie, err := c.Cookie(sessionCookieName); err == nil {
				token = cookie.Value
			} else if header := c.Request().Header.Get(echo.HeaderAuthorization); header != "" {
				if scheme, value, ok := strings.Cut(header, " "); ok && scheme == "Bearer" {
					token = value
				}
			}

			if ident := sessions.Deserialize(c.Request().Context(), token); ident != nil {
				c.Set(contextKeyIdentity, ident)
			}
			return next(c)
		}
	}
}

// RequireAuth sends anonymous callers to loginURL.
func RequireAuth(loginURL string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if GetIdentity(c) == nil {
				return c.Redirect(http.StatusFound, loginURL)
			}
			return next(c)
		}
	}
}

// RequireProvider lets the request through only when the caller holds a
// token for the provider named by the last path segment. Otherwise the
// caller is redirected into that provider's linking flow, which returns to
// the requested path once the provider is linked.
func RequireProvider(guard service.Guard) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			kind := domain.ProviderKind(path.Base(c.Request().URL.Path))
			decision := guard.Check(GetIdentity(c), kind)
			if !decision.Allow {
				target := decision.RedirectTo + "?" + url.Values{"return_to": {c.Request().URL.RequestURI()}}.Encode()
				return c.Redirect(http.StatusFound, target)
			}
			return next(c)
		}
	}
}

// GetIdentity returns the authenticated identity from echo context, or nil.
func GetIdentity(c echo.Context) *domain.Identity {
	ident, _ := c.Get(contextKeyIdentity).(*domain.Identity)
	return ident
}

func sessionContext(c echo.Context) domain.SessionContext {
	if ident := GetIdentity(c); ident != nil {
		return domain.SessionContext{CallerIdentityID: ident.ID}
	}
	return domain.SessionContext{}
}
