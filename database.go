package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"sanitrack/internal/apperr"
	"sanitrack/internal/config"
	"sanitrack/internal/models"
	"sanitrack/internal/store"
	"sanitrack/internal/store/mongostore"
	"sanitrack/internal/store/redisstore"
	"sanitrack/internal/store/sqlite"
)

// openStore opens the configured backend. When REDIS_URL is set,
// sessions are kept in Redis instead.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	var base store.Store
	switch cfg.StoreDriver {
	case "mongo":
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		m, err := mongostore.Connect(connectCtx, cfg.MongoURI, cfg.MongoDB, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		base = m
	default:
		db, err := sqlite.Open(cfg.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		base = db
	}

	if cfg.RedisURL == "" {
		return base, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	sessions, err := redisstore.Open(connectCtx, cfg.RedisURL, logger)
	if err != nil {
		base.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return store.WithSessions(base, sessions), nil
}

// nativeSessionExpiry reports whether the session backend expires
// records by itself, making the sweeper unnecessary.
func nativeSessionExpiry(cfg *config.Config) bool {
	return cfg.RedisURL != "" || cfg.StoreDriver == "mongo"
}

// seedAdmin creates the configured admin account if it does not exist.
func seedAdmin(ctx context.Context, cfg *config.Config, s store.Store, logger *slog.Logger) error {
	if cfg.AdminEmail == "" {
		return nil
	}
	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))

	_, err := s.AccountByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if apperr.KindOf(err) != apperr.NotFound {
		return err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), cfg.BcryptCost)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	err = s.CreateAccount(ctx, &models.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hashedPassword),
		DisplayName:  "Administrator",
		Role:         models.RoleAdmin,
		Verified:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if apperr.KindOf(err) == apperr.Conflict {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to seed admin: %w", err)
	}

	logger.Info("admin account seeded", "email", email)
	return nil
}
