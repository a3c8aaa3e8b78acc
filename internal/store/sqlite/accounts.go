package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"sanitrack/internal/apperr"
	"sanitrack/internal/models"
)

func (s *Store) CreateAccount(ctx context.Context, a *models.Account) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO accounts (id, email, password_hash, display_name, role, phone, verified, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Email, a.PasswordHash, a.DisplayName, string(a.Role), nullString(a.Phone),
		boolInt(a.Verified), unixNano(a.CreatedAt), unixNano(a.UpdatedAt))

	if err != nil {
		err = translate(err, "account")
		if apperr.KindOf(err) == apperr.Conflict {
			return apperr.Conflictf("email already registered")
		}
		return err
	}
	return nil
}

func (s *Store) AccountByID(ctx context.Context, id string) (*models.Account, error) {
	return s.scanAccount(s.q.QueryRowContext(ctx, accountSelect+` WHERE id = ?`, id))
}

func (s *Store) AccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.scanAccount(s.q.QueryRowContext(ctx, accountSelect+` WHERE email = ?`, strings.ToLower(email)))
}

const accountSelect = `
	SELECT id, email, password_hash, display_name, role, phone, verified, created_at, updated_at
	FROM accounts`

func (s *Store) scanAccount(row *sql.Row) (*models.Account, error) {
	var (
		a                models.Account
		role             string
		phone            sql.NullString
		verified         int
		created, updated int64
	)
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.DisplayName, &role, &phone, &verified, &created, &updated)
	if err != nil {
		return nil, translate(err, "account")
	}
	a.Role = models.Role(role)
	a.Phone = phone.String
	a.Verified = verified != 0
	a.CreatedAt = fromUnixNano(created)
	a.UpdatedAt = fromUnixNano(updated)
	return &a, nil
}
