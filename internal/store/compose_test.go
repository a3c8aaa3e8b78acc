package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sanitrack/internal/apperr"
	"sanitrack/internal/models"
	"sanitrack/internal/store"
	"sanitrack/internal/store/storetest"
)

type memSessions struct {
	byHash map[string]*models.Session
	closed bool
}

func (m *memSessions) CreateSession(_ context.Context, s *models.Session) error {
	m.byHash[s.RefreshTokenHash] = s
	return nil
}

func (m *memSessions) SessionByTokenHash(_ context.Context, hash string) (*models.Session, error) {
	s, ok := m.byHash[hash]
	if !ok {
		return nil, apperr.NotFoundf("session not found")
	}
	return s, nil
}

func (m *memSessions) DeleteSession(_ context.Context, id string) error {
	for h, s := range m.byHash {
		if s.ID == id {
			delete(m.byHash, h)
		}
	}
	return nil
}

func (m *memSessions) DeleteSessionByTokenHash(_ context.Context, hash string) error {
	delete(m.byHash, hash)
	return nil
}

func (m *memSessions) DeleteExpiredSessions(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (m *memSessions) Close() error {
	m.closed = true
	return nil
}

func TestWithSessionsRoutesSessions(t *testing.T) {
	ctx := context.Background()
	base := storetest.New(t)
	sessions := &memSessions{byHash: map[string]*models.Session{}}
	s := store.WithSessions(base, sessions)

	acct := storetest.Account(t, s, models.RoleCitizen)
	sess := &models.Session{
		ID:               "s1",
		AccountID:        acct.ID,
		RefreshTokenHash: "hash-1",
		ExpiresAt:        time.Now().Add(time.Hour),
		CreatedAt:        time.Now(),
	}
	require.NoError(t, s.CreateSession(ctx, sess))
	assert.Contains(t, sessions.byHash, "hash-1")

	_, err := base.SessionByTokenHash(ctx, "hash-1")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	err = s.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		got, err := tx.SessionByTokenHash(ctx, "hash-1")
		if err != nil {
			return err
		}
		assert.Equal(t, "s1", got.ID)
		_, err = tx.AccountByID(ctx, acct.ID)
		return err
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteSession(ctx, "s1"))
	assert.Empty(t, sessions.byHash)

	require.NoError(t, s.Close())
	assert.True(t, sessions.closed)
}
