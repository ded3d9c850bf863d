package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sumire/federation/internal/domain"
	"github.com/sumire/federation/internal/provider"
)

// Store drivers accepted in STORE_DRIVER.
const (
	StorePostgres = "pgx"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

// clientKinds are the providers configured through <KIND>_CLIENT_ID and
// <KIND>_CLIENT_SECRET.
var clientKinds = []domain.ProviderKind{
	domain.ProviderGitHub,
	domain.ProviderGoogle,
	domain.ProviderFacebook,
	domain.ProviderLinkedIn,
	domain.ProviderInstagram,
	domain.ProviderTwitter,
	domain.ProviderTumblr,
	domain.ProviderFoursquare,
	domain.ProviderVenmo,
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Port        int
	StoreDriver string
	DatabaseURL string

	SessionSecret        string
	SessionTTL           time.Duration
	ProviderFetchTimeout time.Duration

	// BaseURL is the public origin of this service; FrontendURL the web app's.
	BaseURL     string
	FrontendURL string

	LogLevel  slog.Level
	LogFormat string

	Clients     map[domain.ProviderKind]provider.ClientCredentials
	SteamAPIKey string
}

// Load reads configuration from environment variables and validates required fields.
func Load() (Config, error) {
	port, err := getEnvInt("PORT", 8080)
	if err != nil {
		return Config{}, fmt.Errorf("parse PORT: %w", err)
	}

	ttl, err := getEnvDuration("SESSION_TTL", 14*24*time.Hour)
	if err != nil {
		return Config{}, fmt.Errorf("parse SESSION_TTL: %w", err)
	}

	fetchTimeout, err := getEnvDuration("PROVIDER_FETCH_TIMEOUT", 5*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("parse PROVIDER_FETCH_TIMEOUT: %w", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return Config{}, fmt.Errorf("parse LOG_LEVEL: %w", err)
	}

	cfg := Config{
		Port:                 port,
		StoreDriver:          getEnv("STORE_DRIVER", StoreSQLite),
		DatabaseURL:          getEnv("DATABASE_URL", "federation.db"),
		SessionSecret:        getEnv("SESSION_SECRET", ""),
		SessionTTL:           ttl,
		ProviderFetchTimeout: fetchTimeout,
		BaseURL:              strings.TrimRight(getEnv("BASE_URL", fmt.Sprintf("http://localhost:%d", port)), "/"),
		FrontendURL:          strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:5173"), "/"),
		LogLevel:             level,
		LogFormat:            getEnv("LOG_FORMAT", "json"),
		Clients:              make(map[domain.ProviderKind]provider.ClientCredentials),
		SteamAPIKey:          getEnv("STEAM_API_KEY", ""),
	}

	for _, kind := range clientKinds {
		prefix := strings.ToUpper(string(kind))
		id := getEnv(prefix+"_CLIENT_ID", "")
		if id == "" {
			continue
		}
		cfg.Clients[kind] = provider.ClientCredentials{
			ClientID:     id,
			ClientSecret: getEnv(prefix+"_CLIENT_SECRET", ""),
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// SecureCookies reports whether the service is served over https.
func (c Config) SecureCookies() bool {
	return strings.HasPrefix(c.BaseURL, "https://")
}

func (c Config) validate() error {
	if c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required")
	}
	switch c.StoreDriver {
	case StorePostgres, StoreSQLite:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for STORE_DRIVER=%s", c.StoreDriver)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be one of %s, %s, %s", StorePostgres, StoreSQLite, StoreMemory)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("LOG_FORMAT must be json or text")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	for kind, creds := range c.Clients {
		if creds.ClientSecret == "" {
			return fmt.Errorf("%s_CLIENT_SECRET is required when %s_CLIENT_ID is set",
				strings.ToUpper(string(kind)), strings.ToUpper(string(kind)))
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(v)
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	return time.ParseDuration(v)
}
