package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sumire/federation/internal/service"
)

// RouterConfig wires the handlers into an echo instance.
type RouterConfig struct {
	Auth     *AuthHandler
	Account  *AccountHandler
	Sessions *service.SessionBinder
	Guard    service.Guard

	FrontendURL string
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Ping reports store health for /health when set.
	Ping func(ctx context.Context) error
}

// NewRouter builds the HTTP surface.
func NewRouter(cfg RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewAppValidator()
	e.HTTPErrorHandler = HTTPErrorHandler

	e.Use(middleware.RequestID())
	e.Use(RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderContentType},
		ExposeHeaders:    []string{echo.HeaderXRequestID},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	e.Use(LoadSession(cfg.Sessions))

	e.GET("/health", func(c echo.Context) error {
		if cfg.Ping != nil {
			if err := cfg.Ping(c.Request().Context()); err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			}
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(cfg.Metrics))
	}

	// Provider and local auth (public)
	e.GET("/auth/:provider", cfg.Auth.Redirect)
	e.GET("/auth/:provider/callback", cfg.Auth.Callback)
	e.POST("/login", cfg.Auth.Login)
	e.POST("/signup", cfg.Auth.Signup)
	e.POST("/logout", cfg.Auth.Logout)

	// Signed-in routes
	api := e.Group("/api", RequireAuth(cfg.FrontendURL+"/login"))
	api.GET("/account", cfg.Account.Get)
	api.PATCH("/account/profile", cfg.Account.UpdateProfile)
	api.POST("/account/password", cfg.Account.UpdatePassword)
	api.GET("/:provider", cfg.Account.ProviderAPI, RequireProvider(cfg.Guard))

	return e
}
