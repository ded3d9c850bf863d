package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sumire/federation/internal/config"
	"github.com/sumire/federation/internal/handler"
	"github.com/sumire/federation/internal/metrics"
	"github.com/sumire/federation/internal/provider"
	"github.com/sumire/federation/internal/repository"
	"github.com/sumire/federation/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogger(cfg)

	ctx := context.Background()
	store, err := repository.OpenStore(ctx, cfg.StoreDriver, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	slog.Info("store ready", "driver", cfg.StoreDriver)

	httpClient := &http.Client{Timeout: cfg.ProviderFetchTimeout}
	registry, err := provider.NewRegistry(provider.DefaultEntries(provider.Settings{
		BaseURL:      cfg.BaseURL,
		Clients:      cfg.Clients,
		SteamAPIKey:  cfg.SteamAPIKey,
		FetchTimeout: cfg.ProviderFetchTimeout,
		HTTPClient:   httpClient,
	})...)
	if err != nil {
		return fmt.Errorf("build provider registry: %w", err)
	}
	slog.Info("providers registered", "providers", registry.Kinds())

	m := metrics.New(prometheus.DefaultRegisterer)

	sessions := service.NewSessionBinder(store, cfg.SessionSecret, cfg.SessionTTL)
	credentials := service.NewCredentialVerifier(store, m)
	callbacks := service.NewCallbackService(registry, service.NewResolver(store), m, cfg.ProviderFetchTimeout)
	accounts := service.NewAccountService(store)

	e := handler.NewRouter(handler.RouterConfig{
		Auth: handler.NewAuthHandler(registry, provider.NewOAuth2Transport(httpClient), callbacks, credentials, sessions,
			handler.AuthConfig{FrontendURL: cfg.FrontendURL, SecureCookies: cfg.SecureCookies()}),
		Account:     handler.NewAccountHandler(accounts, credentials),
		Sessions:    sessions,
		FrontendURL: cfg.FrontendURL,
		Metrics:     promhttp.Handler(),
		Ping:        store.Ping,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutdown signal received", "signal", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

func setupLogger(cfg config.Config) {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var h slog.Handler
	if cfg.LogFormat == "text" {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(h))
}
