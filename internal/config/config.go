// Package config loads service configuration from environment variables.
//
// All variables share the AUTHCORE_ prefix. The struct tags are parsed by
// github.com/caarlos0/env — defaults live in the tags, not in code, so
// `Load()` is the single source of truth for what the process reads.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the immutable process-wide configuration. It is built once in
// main, before any request is served, and only ever read after that.
type Config struct {
	Port   int    `env:"AUTHCORE_PORT"    envDefault:"8080"`
	DBPath string `env:"AUTHCORE_DB_PATH" envDefault:"data/authcore.db"`

	// JWTSecret signs every issued token. Generate with:
	//   AUTHCORE_JWT_SECRET=$(openssl rand -hex 32)
	// Rotation requires a restart; there is no runtime rotation.
	JWTSecret string `env:"AUTHCORE_JWT_SECRET"`

	AccessTokenTTL  time.Duration `env:"AUTHCORE_ACCESS_TOKEN_TTL"  envDefault:"30m"`
	RefreshTokenTTL time.Duration `env:"AUTHCORE_REFRESH_TOKEN_TTL" envDefault:"720h"` // 30 days

	// BaseURL is the externally visible origin, used to build OAuth
	// callback URLs when a provider has no explicit redirect configured.
	BaseURL string `env:"AUTHCORE_BASE_URL"`

	Google   ProviderCredentials `envPrefix:"AUTHCORE_GOOGLE_"`
	Facebook ProviderCredentials `envPrefix:"AUTHCORE_FACEBOOK_"`
	GitHub   ProviderCredentials `envPrefix:"AUTHCORE_GITHUB_"`
	LinkedIn ProviderCredentials `envPrefix:"AUTHCORE_LINKEDIN_"`
}

// ProviderCredentials holds one OAuth provider's client registration.
// A provider with an empty ClientID is simply not registered — the
// server starts fine with zero providers configured.
type ProviderCredentials struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"`
}

// Configured reports whether this provider has credentials set.
func (p ProviderCredentials) Configured() bool {
	return p.ClientID != ""
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing environment: %w", err)
	}

	if cfg.JWTSecret == "" {
		return Config{}, errors.New("config: AUTHCORE_JWT_SECRET must be set")
	}
	if cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenTTL <= 0 {
		return Config{}, errors.New("config: token lifetimes must be positive")
	}
	if cfg.RefreshTokenTTL < cfg.AccessTokenTTL {
		return Config{}, errors.New("config: refresh token lifetime must not be shorter than access token lifetime")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}

	return cfg, nil
}
