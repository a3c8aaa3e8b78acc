package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Port        string
	Environment string

	StoreDriver string
	SQLitePath  string
	MongoURI    string
	MongoDB     string
	RedisURL    string

	JWTSecret        string
	JWTRefreshSecret string
	AccessTokenTTL   time.Duration
	SessionTTL       time.Duration
	RememberMeTTL    time.Duration
	BcryptCost       int

	SessionSweepInterval   time.Duration
	AllowAdminRegistration bool
	AllowedOrigins         []string
	AuthRateLimit          int

	AdminEmail    string
	AdminPassword string
}

// Development reports whether internal error detail may be shown.
func (c *Config) Development() bool {
	return c.Environment == "development"
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	var errs []error
	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		Environment:      getEnv("ENVIRONMENT", "development"),
		StoreDriver:      strings.ToLower(getEnv("STORE_DRIVER", "sqlite")),
		SQLitePath:       getEnv("SQLITE_PATH", "./sanitrack.db"),
		MongoURI:         os.Getenv("MONGO_URI"),
		MongoDB:          getEnv("MONGO_DB", "sanitrack"),
		RedisURL:         os.Getenv("REDIS_URL"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		JWTRefreshSecret: os.Getenv("JWT_REFRESH_SECRET"),
		AdminEmail:       os.Getenv("ADMIN_EMAIL"),
		AdminPassword:    os.Getenv("ADMIN_PASSWORD"),
		AllowedOrigins:   splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
	}

	cfg.AccessTokenTTL = getDuration("ACCESS_TOKEN_TTL", 15*time.Minute, &errs)
	cfg.SessionTTL = getDuration("SESSION_TTL", 7*24*time.Hour, &errs)
	cfg.RememberMeTTL = getDuration("REMEMBER_ME_TTL", 30*24*time.Hour, &errs)
	cfg.SessionSweepInterval = getDuration("SESSION_SWEEP_INTERVAL", 10*time.Minute, &errs)
	cfg.BcryptCost = getInt("BCRYPT_COST", 10, &errs)
	cfg.AuthRateLimit = getInt("AUTH_RATE_LIMIT", 5, &errs)
	cfg.AllowAdminRegistration = getBool("ALLOW_ADMIN_REGISTRATION", false, &errs)

	// Validate required fields
	if cfg.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET environment variable is required"))
	}
	if cfg.JWTRefreshSecret == "" {
		errs = append(errs, errors.New("JWT_REFRESH_SECRET environment variable is required"))
	}
	if cfg.JWTSecret != "" && cfg.JWTSecret == cfg.JWTRefreshSecret {
		errs = append(errs, errors.New("JWT_SECRET and JWT_REFRESH_SECRET must differ"))
	}

	switch cfg.StoreDriver {
	case "sqlite":
	case "mongo":
		if cfg.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI environment variable is required for STORE_DRIVER=mongo"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be sqlite or mongo, got %q", cfg.StoreDriver))
	}

	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", cfg.BcryptCost))
	}
	if cfg.AuthRateLimit < 1 {
		errs = append(errs, fmt.Errorf("AUTH_RATE_LIMIT must be positive, got %d", cfg.AuthRateLimit))
	}
	if cfg.RememberMeTTL < cfg.SessionTTL {
		errs = append(errs, errors.New("REMEMBER_ME_TTL must not be shorter than SESSION_TTL"))
	}
	if (cfg.AdminEmail == "") != (cfg.AdminPassword == "") {
		errs = append(errs, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together"))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, raw))
		return fallback
	}
	return d
}

func getInt(key string, fallback int, errs *[]error) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid integer %q", key, raw))
		return fallback
	}
	return n
}

func getBool(key string, fallback bool, errs *[]error) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid boolean %q", key, raw))
		return fallback
	}
	return b
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
