// pkg/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	HTTPAddr string

	// Tenant registry (JSON/YAML file by default, Postgres when DATABASE_URL is set)
	ConfigPath string
	// StrictTenantLookup disables the lenient fallback to the default tenant
	// when an unknown tenant id is requested.
	StrictTenantLookup bool

	// Location directory cache
	CacheDir         string
	DirectoryMaxAge  time.Duration // persisted entry considered expired past this age
	RefreshInterval  time.Duration // scheduled refresh driver period
	RefreshOnStartup bool
	FilterPageSize   int

	// Backend platform
	BackendTimeout    time.Duration
	TokenSafetyMargin time.Duration
	SignInURL         string

	// Admin surface auth
	AdminAPIKey   string
	AdminJWKSURL  string
	AdminIssuer   string
	AdminAudience string

	// Optional infrastructure
	DatabaseURL string
	RedisURL    string
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:                env("SCANBRIDGE_ENV", "dev"),
		HTTPAddr:           env("SCANBRIDGE_HTTP_ADDR", ":8080"),
		ConfigPath:         env("TENANT_CONFIG_PATH", "config.json"),
		StrictTenantLookup: envBool("STRICT_TENANT_LOOKUP", false),
		CacheDir:           env("CACHE_DIR", "cache"),
		DirectoryMaxAge:    envDur("CACHE_MAX_AGE_HOURS", 168) * time.Hour,
		RefreshInterval:    envDur("CACHE_REFRESH_INTERVAL_HOURS", 168) * time.Hour,
		RefreshOnStartup:   envBool("CACHE_REFRESH_ON_STARTUP", false),
		FilterPageSize:     envInt("FILTER_PAGE_SIZE", 100),
		BackendTimeout:     envDur("BACKEND_TIMEOUT_SEC", 30) * time.Second,
		TokenSafetyMargin:  envDur("TOKEN_SAFETY_MARGIN_SEC", 300) * time.Second,
		SignInURL:          env("BACKEND_SIGNIN_URL", ""),
		AdminAPIKey:        env("ADMIN_API_KEY", ""),
		AdminJWKSURL:       env("ADMIN_JWKS_URL", ""),
		AdminIssuer:        env("ADMIN_OIDC_ISSUER", ""),
		AdminAudience:      env("ADMIN_OIDC_AUDIENCE", "scanbridge-admin"),
		DatabaseURL:        env("DATABASE_URL", ""),
		RedisURL:           env("REDIS_URL", ""),
	}
	if cfg.DatabaseURL == "" {
		log.Println("[WARN] DATABASE_URL not set, using file-backed tenant registry")
	}
	if cfg.AdminAPIKey == "" && cfg.AdminJWKSURL == "" {
		log.Println("[WARN] no ADMIN_API_KEY or ADMIN_JWKS_URL set, admin surface is open (dev only)")
	}
	return cfg
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func envBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		b, _ := strconv.ParseBool(v)
		return b
	}
	return def
}
func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, _ := strconv.Atoi(v)
		return time.Duration(i)
	}
	return time.Duration(def)
}
