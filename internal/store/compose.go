package store

import (
	"context"
	"time"

	"sanitrack/internal/models"
)

// SessionsCloser is a session backend with its own connection.
type SessionsCloser interface {
	Sessions
	Close() error
}

// WithSessions returns a Store that keeps sessions in a separate backend
// (for example Redis with native key expiry) and everything else in base.
func WithSessions(base Store, sessions SessionsCloser) Store {
	return &split{Store: base, sessions: sessions}
}

type split struct {
	Store
	sessions SessionsCloser
}

func (s *split) CreateSession(ctx context.Context, sess *models.Session) error {
	return s.sessions.CreateSession(ctx, sess)
}

func (s *split) SessionByTokenHash(ctx context.Context, hash string) (*models.Session, error) {
	return s.sessions.SessionByTokenHash(ctx, hash)
}

func (s *split) DeleteSession(ctx context.Context, id string) error {
	return s.sessions.DeleteSession(ctx, id)
}

func (s *split) DeleteSessionByTokenHash(ctx context.Context, hash string) error {
	return s.sessions.DeleteSessionByTokenHash(ctx, hash)
}

func (s *split) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	return s.sessions.DeleteExpiredSessions(ctx, now)
}

func (s *split) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return s.Store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
		return fn(ctx, &split{Store: tx, sessions: s.sessions})
	})
}

func (s *split) Close() error {
	err := s.sessions.Close()
	if berr := s.Store.Close(); berr != nil {
		return berr
	}
	return err
}
