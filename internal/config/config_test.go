package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("JWT_SECRET", "access-secret")
	t.Setenv("JWT_REFRESH_SECRET", "refresh-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.Equal(t, "./sanitrack.db", cfg.SQLitePath)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.RememberMeTTL)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, 5, cfg.AuthRateLimit)
	assert.False(t, cfg.AllowAdminRegistration)
	assert.True(t, cfg.Development())
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("STORE_DRIVER", "Mongo")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("SESSION_TTL", "24h")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("ALLOW_ADMIN_REGISTRATION", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "mongo", cfg.StoreDriver)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.True(t, cfg.AllowAdminRegistration)
	assert.False(t, cfg.Development())
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret":    {"JWT_SECRET": ""},
		"shared secret":     {"JWT_REFRESH_SECRET": "access-secret"},
		"bad duration":      {"SESSION_TTL": "a week"},
		"bad int":           {"BCRYPT_COST": "ten"},
		"cost out of range": {"BCRYPT_COST": "40"},
		"unknown driver":    {"STORE_DRIVER": "postgres"},
		"mongo without uri": {"STORE_DRIVER": "mongo"},
		"half admin seed":   {"ADMIN_EMAIL": "root@example.com"},
		"bad bool":          {"ALLOW_ADMIN_REGISTRATION": "sure"},
		"short remember me": {"REMEMBER_ME_TTL": "1h"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			setRequired(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
