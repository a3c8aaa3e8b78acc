package redisstore

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sanitrack/internal/apperr"
	"sanitrack/internal/models"
)

func newTestSessions(t *testing.T) *Sessions {
	t.Helper()
	url := os.Getenv("SANITRACK_TEST_REDIS_URL")
	if url == "" {
		t.Skip("SANITRACK_TEST_REDIS_URL not set")
	}
	s, err := Open(context.Background(), url, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestSessions(t)
	ctx := context.Background()
	now := time.Now().UTC()

	sess := &models.Session{ID: uuid.NewString(), AccountID: "acct", RefreshTokenHash: uuid.NewString(),
		ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	require.NoError(t, s.CreateSession(ctx, sess))

	got, err := s.SessionByTokenHash(ctx, sess.RefreshTokenHash)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, "acct", got.AccountID)
	assert.WithinDuration(t, sess.ExpiresAt, got.ExpiresAt, time.Millisecond)

	ttl, err := s.rdb.TTL(ctx, hashKey(sess.RefreshTokenHash)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)

	dup := *sess
	dup.ID = uuid.NewString()
	assert.Equal(t, apperr.Conflict, apperr.KindOf(s.CreateSession(ctx, &dup)))

	require.NoError(t, s.DeleteSession(ctx, sess.ID))
	_, err = s.SessionByTokenHash(ctx, sess.RefreshTokenHash)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
	require.NoError(t, s.DeleteSession(ctx, sess.ID))
}

func TestDeleteByTokenHashIsIdempotent(t *testing.T) {
	s := newTestSessions(t)
	ctx := context.Background()
	now := time.Now().UTC()

	sess := &models.Session{ID: uuid.NewString(), AccountID: "acct", RefreshTokenHash: uuid.NewString(),
		ExpiresAt: now.Add(time.Minute), CreatedAt: now}
	require.NoError(t, s.CreateSession(ctx, sess))
	require.NoError(t, s.DeleteSessionByTokenHash(ctx, sess.RefreshTokenHash))
	require.NoError(t, s.DeleteSessionByTokenHash(ctx, sess.RefreshTokenHash))

	n, err := s.rdb.Exists(ctx, idKey(sess.ID)).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}
