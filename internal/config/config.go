// Package config loads application configuration from the environment.
//
// Configuration is an explicit struct passed into the rest of the app at
// construction time — nothing reads os.Getenv outside this package. That
// keeps the auth layer testable: tests construct a Config with a fixed
// secret instead of mutating process globals.
//
// A .env file in the working directory is loaded first (godotenv), then
// real environment variables override it. Every value has a development
// default so `go run ./cmd/server` works out of the box.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// insecureDevSecret is the JWT signing fallback used when JWT_SECRET is
// unset. It is deliberately recognisable so Load can refuse it in
// production — shipping with it would let anyone forge session tokens.
const insecureDevSecret = "tasave-dev-secret-change-in-production"

// Config holds all runtime configuration values.
type Config struct {
	Port      int    // HTTP port to listen on
	Env       string // "development" or "production"
	DBPath    string // path to the SQLite database file (":memory:" allowed)
	JWTSecret string // symmetric secret used to sign session tokens

	// SecureCookies controls the Secure attribute on the auth cookie.
	// True in production (HTTPS only), false for local development.
	SecureCookies bool
}

// Load reads configuration from .env (if present) and the environment.
//
// It fails rather than starting with a config that would be a security
// hole: a production deployment without a real JWT_SECRET is refused.
func Load() (Config, error) {
	// Missing .env is fine — the environment may carry everything.
	_ = godotenv.Load()

	cfg := Config{
		Port:      8080,
		Env:       getEnv("APP_ENV", "development"),
		DBPath:    getEnv("DB_PATH", "data/tasave.db"),
		JWTSecret: getEnv("JWT_SECRET", insecureDevSecret),
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid PORT %q: %w", portStr, err)
		}
		cfg.Port = port
	}

	cfg.SecureCookies = cfg.Env == "production"

	if cfg.Env == "production" && cfg.JWTSecret == insecureDevSecret {
		return Config{}, fmt.Errorf("config: JWT_SECRET must be set in production")
	}

	return cfg, nil
}

// getEnv returns the value of key, or fallback if unset or empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
