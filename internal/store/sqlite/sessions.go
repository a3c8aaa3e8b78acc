package sqlite

import (
	"context"
	"time"

	"sanitrack/internal/apperr"
	"sanitrack/internal/models"
)

func (s *Store) CreateSession(ctx context.Context, sess *models.Session) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO sessions (id, account_id, refresh_token_hash, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, sess.ID, sess.AccountID, sess.RefreshTokenHash, unixNano(sess.ExpiresAt), unixNano(sess.CreatedAt))
	return translate(err, "session")
}

func (s *Store) SessionByTokenHash(ctx context.Context, hash string) (*models.Session, error) {
	var (
		sess             models.Session
		expires, created int64
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT id, account_id, refresh_token_hash, expires_at, created_at
		FROM sessions
		WHERE refresh_token_hash = ?
	`, hash).Scan(&sess.ID, &sess.AccountID, &sess.RefreshTokenHash, &expires, &created)
	if err != nil {
		return nil, translate(err, "session")
	}
	sess.ExpiresAt = fromUnixNano(expires)
	sess.CreatedAt = fromUnixNano(created)
	return &sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return translate(err, "session")
}

func (s *Store) DeleteSessionByTokenHash(ctx context.Context, hash string) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM sessions WHERE refresh_token_hash = ?`, hash)
	return translate(err, "session")
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.q.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, unixNano(now))
	if err != nil {
		return 0, translate(err, "session")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Wrap(err, "session sweep")
	}
	return n, nil
}
