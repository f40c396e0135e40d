package config

import (
	"encoding/base64"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr        string
	ProjectID       string
	CredentialsB64  string
	RedisAddr       string
	RedisPassword   string
	ListCacheTTL    time.Duration
	DevJWTSecret    string
	JWTIssuer       string
	ShutdownTimeout time.Duration
}

func Load() Config {
	return Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		ProjectID:       getenv("FIRESTORE_PROJECT_ID", ""),
		CredentialsB64:  getenv("GOOGLE_CREDENTIALS_B64", ""),
		RedisAddr:       getenv("REDIS_ADDR", ""),
		RedisPassword:   getenv("REDIS_PASSWORD", ""),
		ListCacheTTL:    getenvDuration("LIST_CACHE_TTL", time.Minute),
		DevJWTSecret:    getenv("DEV_JWT_SECRET", ""),
		JWTIssuer:       getenv("JWT_ISSUER", "acadia-school"),
		ShutdownTimeout: getenvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// Credentials decodes the base64 service-account blob. An unset blob yields
// nil bytes without error; callers decide whether that is fatal.
func (c Config) Credentials() ([]byte, error) {
	if c.CredentialsB64 == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(c.CredentialsB64))
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}
