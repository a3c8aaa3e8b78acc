// Package auth is the credential authority: it registers accounts, logs
// them in, and issues, verifies and revokes the tokens that identify a
// caller.
//
// Access tokens are short-lived signed JWTs that are never stored.
// Refresh tokens are JWTs signed with a separate secret; only their
// SHA-256 digest is persisted, as the session's refresh token hash, and
// the session record decides how long a refresh token stays usable.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"sanitrack/internal/apperr"
	"sanitrack/internal/models"
	"sanitrack/internal/store"
)

const (
	MinPasswordLen   = 6
	MaxPasswordBytes = 72
	DefaultZone      = "unassigned"
)

type Options struct {
	AccessSecret  []byte
	RefreshSecret []byte

	AccessTTL     time.Duration
	SessionTTL    time.Duration
	RememberMeTTL time.Duration
	BcryptCost    int

	// AllowAdminRegistration lets Register create admin accounts.
	AllowAdminRegistration bool
}

func (o *Options) setDefaults() {
	if o.AccessTTL <= 0 {
		o.AccessTTL = 15 * time.Minute
	}
	if o.SessionTTL <= 0 {
		o.SessionTTL = 7 * 24 * time.Hour
	}
	if o.RememberMeTTL <= 0 {
		o.RememberMeTTL = 30 * 24 * time.Hour
	}
	if o.BcryptCost == 0 {
		o.BcryptCost = bcrypt.DefaultCost
	}
}

type Authority struct {
	store store.Store
	opts  Options
	log   *slog.Logger
	now   func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

func New(s store.Store, opts Options, logger *slog.Logger) *Authority {
	opts.setDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Authority{store: s, opts: opts, log: logger, now: time.Now}
}

// Result is returned by Register and Login.
type Result struct {
	Account      *models.Account `json:"user"`
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	Session      *models.Session `json:"-"`
}

type RegisterInput struct {
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Name     string      `json:"name"`
	Role     models.Role `json:"role,omitempty"`
	Phone    string      `json:"phone,omitempty"`
	Zone     string      `json:"zone,omitempty"`
}

func (in *RegisterInput) normalize() error {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Zone = strings.TrimSpace(in.Zone)
	if in.Role == "" {
		in.Role = models.RoleCitizen
	}

	addr, err := mail.ParseAddress(in.Email)
	if err != nil || addr.Address != in.Email {
		return apperr.Validation("invalid email address")
	}
	switch {
	case len(in.Password) < MinPasswordLen:
		return apperr.Validation("password must be at least %d characters", MinPasswordLen)
	case len(in.Password) > MaxPasswordBytes:
		return apperr.Validation("password must be at most %d bytes", MaxPasswordBytes)
	case in.Name == "":
		return apperr.Validation("name is required")
	case !in.Role.Valid():
		return apperr.Validation("invalid role %q", in.Role)
	}
	return nil
}

// Register creates an account and logs it in. A worker account gets its
// Worker profile in the same transaction.
func (a *Authority) Register(ctx context.Context, in RegisterInput) (*Result, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if in.Role == models.RoleAdmin && !a.opts.AllowAdminRegistration {
		return nil, apperr.Authorization("admin accounts cannot be self-registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), a.opts.BcryptCost)
	if err != nil {
		return nil, apperr.Wrap(err, "hash password")
	}

	now := a.now().UTC()
	acct := &models.Account{
		ID:           uuid.NewString(),
		Email:        in.Email,
		PasswordHash: string(hash),
		DisplayName:  in.Name,
		Role:         in.Role,
		Phone:        in.Phone,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = a.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		if err := tx.CreateAccount(ctx, acct); err != nil {
			return err
		}
		if acct.Role != models.RoleWorker {
			return nil
		}
		zone := in.Zone
		if zone == "" {
			zone = DefaultZone
		}
		return tx.CreateWorker(ctx, &models.Worker{
			ID:              uuid.NewString(),
			AccountID:       acct.ID,
			Zone:            zone,
			Level:           models.LevelLocal,
			ActiveReportIDs: []string{},
			Status:          models.WorkerOffline,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	})
	if err != nil {
		return nil, err
	}

	a.log.Info("account registered", "account_id", acct.ID, "role", acct.Role)
	return a.openSession(ctx, acct, a.opts.SessionTTL)
}

// Login checks credentials. Unknown email and wrong password fail the
// same way and take about the same time.
func (a *Authority) Login(ctx context.Context, email, password string, rememberMe bool) (*Result, error) {
	invalid := apperr.Authentication("invalid email or password")

	acct, err := a.store.AccountByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if apperr.KindOf(err) == apperr.NotFound {
		_ = bcrypt.CompareHashAndPassword(a.dummy(), []byte(password))
		return nil, invalid
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return nil, invalid
	}

	ttl := a.opts.SessionTTL
	if rememberMe {
		ttl = a.opts.RememberMeTTL
	}
	return a.openSession(ctx, acct, ttl)
}

func (a *Authority) dummy() []byte {
	a.dummyOnce.Do(func() {
		a.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("sanitrack-timing-equalizer"), a.opts.BcryptCost)
	})
	return a.dummyHash
}

func (a *Authority) openSession(ctx context.Context, acct *models.Account, ttl time.Duration) (*Result, error) {
	now := a.now().UTC()
	expires := now.Add(ttl)

	refresh, err := a.signRefresh(acct.ID, expires)
	if err != nil {
		return nil, apperr.Wrap(err, "sign refresh token")
	}
	access, err := a.signAccess(acct)
	if err != nil {
		return nil, apperr.Wrap(err, "sign access token")
	}

	sess := &models.Session{
		ID:               uuid.NewString(),
		AccountID:        acct.ID,
		RefreshTokenHash: hashToken(refresh),
		ExpiresAt:        expires,
		CreatedAt:        now,
	}
	if err := a.store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	return &Result{Account: acct, AccessToken: access, RefreshToken: refresh, Session: sess}, nil
}

// Refresh exchanges a live refresh token for a new access token. The
// refresh token itself is not rotated.
func (a *Authority) Refresh(ctx context.Context, refreshToken string) (string, error) {
	invalid := apperr.Authentication("invalid refresh token")
	if refreshToken == "" {
		return "", apperr.Authentication("refresh token required")
	}

	claims, err := a.parseRefresh(refreshToken)
	if err != nil {
		return "", invalid
	}

	sess, err := a.store.SessionByTokenHash(ctx, hashToken(refreshToken))
	if apperr.KindOf(err) == apperr.NotFound {
		return "", invalid
	}
	if err != nil {
		return "", err
	}
	if sess.AccountID != claims.Subject {
		return "", invalid
	}
	if sess.Expired(a.now()) {
		if err := a.store.DeleteSession(ctx, sess.ID); err != nil {
			a.log.Warn("delete expired session", "session_id", sess.ID, "error", err)
		}
		return "", apperr.Authentication("session expired")
	}

	acct, err := a.store.AccountByID(ctx, sess.AccountID)
	if apperr.KindOf(err) == apperr.NotFound {
		return "", invalid
	}
	if err != nil {
		return "", err
	}

	access, err := a.signAccess(acct)
	if err != nil {
		return "", apperr.Wrap(err, "sign access token")
	}
	return access, nil
}

// Logout deletes the session behind refreshToken. Logging out twice, or
// with an unknown token, succeeds.
func (a *Authority) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return a.store.DeleteSessionByTokenHash(ctx, hashToken(refreshToken))
}

// Verify checks an access token and returns the identity it carries.
func (a *Authority) Verify(accessToken string) (*models.Identity, error) {
	if accessToken == "" {
		return nil, apperr.Authentication("no token provided")
	}
	claims, err := a.parseAccess(accessToken)
	if err != nil {
		return nil, apperr.Authentication("invalid or expired token")
	}
	return &models.Identity{AccountID: claims.AccountID, Email: claims.Email, Role: claims.Role}, nil
}

// Me returns the caller's account.
func (a *Authority) Me(ctx context.Context, id *models.Identity) (*models.Account, error) {
	if id == nil {
		return nil, apperr.Authentication("not authenticated")
	}
	acct, err := a.store.AccountByID(ctx, id.AccountID)
	if err != nil {
		if apperr.KindOf(err) == apperr.NotFound {
			return nil, apperr.NotFoundf("user not found")
		}
		return nil, err
	}
	return acct, nil
}

// SweepExpiredSessions removes sessions past their expiry.
func (a *Authority) SweepExpiredSessions(ctx context.Context) (int64, error) {
	return a.store.DeleteExpiredSessions(ctx, a.now().UTC())
}

// RunSessionSweeper sweeps every interval until ctx is done.
func (a *Authority) RunSessionSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.SweepExpiredSessions(ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					a.log.Error("session sweep failed", "error", err)
				}
				continue
			}
			if n > 0 {
				a.log.Info("expired sessions removed", "count", n)
			}
		}
	}
}
