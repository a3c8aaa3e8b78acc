// Package redisstore keeps refresh sessions in Redis. Each session key
// carries a TTL matching the session expiry, so expired sessions vanish
// without a sweeper.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"sanitrack/internal/apperr"
	"sanitrack/internal/models"
	"sanitrack/internal/store"
)

const keyPrefix = "sanitrack:session:"

type Sessions struct {
	rdb *redis.Client
	log *slog.Logger
	now func() time.Time
}

var _ store.SessionsCloser = (*Sessions)(nil)

// Open parses a redis:// URL, connects and pings.
func Open(ctx context.Context, rawURL string, logger *slog.Logger) (*Sessions, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info("redis session store ready", "addr", opts.Addr, "db", opts.DB)
	return New(rdb, logger), nil
}

// New wraps an existing client.
func New(rdb *redis.Client, logger *slog.Logger) *Sessions {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sessions{rdb: rdb, log: logger, now: time.Now}
}

func hashKey(hash string) string { return keyPrefix + "hash:" + hash }
func idKey(id string) string     { return keyPrefix + "id:" + id }

func (s *Sessions) CreateSession(ctx context.Context, sess *models.Session) error {
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(record{
		ID: sess.ID, AccountID: sess.AccountID, RefreshTokenHash: sess.RefreshTokenHash,
		ExpiresAt: sess.ExpiresAt, CreatedAt: sess.CreatedAt,
	})
	if err != nil {
		return apperr.Wrap(err, "encode session")
	}

	ok, err := s.rdb.SetNX(ctx, hashKey(sess.RefreshTokenHash), payload, ttl).Result()
	if err != nil {
		return apperr.Wrap(err, "store session")
	}
	if !ok {
		return apperr.Conflictf("session already exists")
	}
	if err := s.rdb.Set(ctx, idKey(sess.ID), sess.RefreshTokenHash, ttl).Err(); err != nil {
		return apperr.Wrap(err, "index session")
	}
	return nil
}

func (s *Sessions) SessionByTokenHash(ctx context.Context, hash string) (*models.Session, error) {
	raw, err := s.rdb.Get(ctx, hashKey(hash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperr.NotFoundf("session not found")
	}
	if err != nil {
		return nil, apperr.Wrap(err, "load session")
	}
	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, apperr.Wrap(err, "decode session")
	}
	return &models.Session{
		ID: r.ID, AccountID: r.AccountID, RefreshTokenHash: r.RefreshTokenHash,
		ExpiresAt: r.ExpiresAt.UTC(), CreatedAt: r.CreatedAt.UTC(),
	}, nil
}

func (s *Sessions) DeleteSession(ctx context.Context, id string) error {
	hash, err := s.rdb.Get(ctx, idKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return apperr.Wrap(err, "load session index")
	}
	if err := s.rdb.Del(ctx, idKey(id), hashKey(hash)).Err(); err != nil {
		return apperr.Wrap(err, "delete session")
	}
	return nil
}

func (s *Sessions) DeleteSessionByTokenHash(ctx context.Context, hash string) error {
	sess, err := s.SessionByTokenHash(ctx, hash)
	if apperr.KindOf(err) == apperr.NotFound {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.rdb.Del(ctx, hashKey(hash), idKey(sess.ID)).Err(); err != nil {
		return apperr.Wrap(err, "delete session")
	}
	return nil
}

// DeleteExpiredSessions is a no-op: Redis expires the keys itself.
func (s *Sessions) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

func (s *Sessions) Close() error {
	return s.rdb.Close()
}

type record struct {
	ID               string    `json:"id"`
	AccountID        string    `json:"account_id"`
	RefreshTokenHash string    `json:"refresh_token_hash"`
	ExpiresAt        time.Time `json:"expires_at"`
	CreatedAt        time.Time `json:"created_at"`
}
