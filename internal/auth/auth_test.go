package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"sanitrack/internal/apperr"
	"sanitrack/internal/models"
	"sanitrack/internal/store"
	"sanitrack/internal/store/storetest"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newAuthority(t *testing.T) (*Authority, store.Store, *clock) {
	t.Helper()
	s := storetest.New(t)
	a := New(s, Options{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		BcryptCost:    bcrypt.MinCost,
	}, storetest.Logger())
	c := &clock{t: time.Now()}
	a.now = c.now
	return a, s, c
}

func register(t *testing.T, a *Authority, email string, role models.Role) *Result {
	t.Helper()
	res, err := a.Register(context.Background(), RegisterInput{
		Email: email, Password: "secret123", Name: "Test User", Role: role,
	})
	require.NoError(t, err)
	return res
}

func TestRegisterIssuesCredentials(t *testing.T) {
	a, s, _ := newAuthority(t)

	res := register(t, a, "Alice@Example.com", "")
	assert.Equal(t, "alice@example.com", res.Account.Email)
	assert.Equal(t, models.RoleCitizen, res.Account.Role)
	assert.NotEqual(t, "secret123", res.Account.PasswordHash)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)

	id, err := a.Verify(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.Account.ID, id.AccountID)
	assert.Equal(t, models.RoleCitizen, id.Role)

	sess, err := s.SessionByTokenHash(context.Background(), hashToken(res.RefreshToken))
	require.NoError(t, err)
	assert.Equal(t, res.Account.ID, sess.AccountID)
	assert.NotEqual(t, res.RefreshToken, sess.RefreshTokenHash)

	_, err = s.WorkerByAccountID(context.Background(), res.Account.ID)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	a, _, _ := newAuthority(t)
	register(t, a, "bob@example.com", models.RoleCitizen)

	_, err := a.Register(context.Background(), RegisterInput{
		Email: "BOB@example.com", Password: "another1", Name: "Bob Again",
	})
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
}

func TestRegisterWorkerCreatesProfile(t *testing.T) {
	a, s, _ := newAuthority(t)
	ctx := context.Background()

	res := register(t, a, "worker@example.com", models.RoleWorker)
	w, err := s.WorkerByAccountID(ctx, res.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkerOffline, w.Status)
	assert.Equal(t, DefaultZone, w.Zone)
	assert.Equal(t, models.LevelLocal, w.Level)
	assert.Empty(t, w.ActiveReportIDs)

	zoned, err := a.Register(ctx, RegisterInput{
		Email: "zoned@example.com", Password: "secret123", Name: "Zoned", Role: models.RoleWorker, Zone: "north",
	})
	require.NoError(t, err)
	w, err = s.WorkerByAccountID(ctx, zoned.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, "north", w.Zone)
}

func TestRegisterAdminRequiresOptIn(t *testing.T) {
	a, _, _ := newAuthority(t)
	_, err := a.Register(context.Background(), RegisterInput{
		Email: "root@example.com", Password: "secret123", Name: "Root", Role: models.RoleAdmin,
	})
	assert.Equal(t, apperr.AuthorizationDenied, apperr.KindOf(err))

	a.opts.AllowAdminRegistration = true
	res := register(t, a, "root@example.com", models.RoleAdmin)
	assert.Equal(t, models.RoleAdmin, res.Account.Role)
}

func TestRegisterValidation(t *testing.T) {
	a, _, _ := newAuthority(t)
	cases := []struct {
		name string
		in   RegisterInput
	}{
		{"bad email", RegisterInput{Email: "not-an-email", Password: "secret123", Name: "X"}},
		{"display form email", RegisterInput{Email: "X <x@example.com>", Password: "secret123", Name: "X"}},
		{"short password", RegisterInput{Email: "x@example.com", Password: "12345", Name: "X"}},
		{"long password", RegisterInput{Email: "x@example.com", Password: string(make([]byte, 73)), Name: "X"}},
		{"missing name", RegisterInput{Email: "x@example.com", Password: "secret123", Name: "  "}},
		{"unknown role", RegisterInput{Email: "x@example.com", Password: "secret123", Name: "X", Role: "mayor"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := a.Register(context.Background(), tc.in)
			assert.Equal(t, apperr.ValidationFailed, apperr.KindOf(err))
		})
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	a, _, _ := newAuthority(t)
	register(t, a, "carol@example.com", models.RoleCitizen)
	ctx := context.Background()

	_, wrongPass := a.Login(ctx, "carol@example.com", "nope-nope", false)
	_, unknown := a.Login(ctx, "nobody@example.com", "secret123", false)

	require.Error(t, wrongPass)
	require.Error(t, unknown)
	assert.Equal(t, apperr.AuthenticationFailed, apperr.KindOf(wrongPass))
	assert.Equal(t, wrongPass.Error(), unknown.Error())
}

func TestLoginSessionLifetime(t *testing.T) {
	a, _, c := newAuthority(t)
	register(t, a, "dave@example.com", models.RoleCitizen)
	ctx := context.Background()

	short, err := a.Login(ctx, "DAVE@example.com", "secret123", false)
	require.NoError(t, err)
	assert.WithinDuration(t, c.t.Add(7*24*time.Hour), short.Session.ExpiresAt, time.Second)

	long, err := a.Login(ctx, "dave@example.com", "secret123", true)
	require.NoError(t, err)
	assert.WithinDuration(t, c.t.Add(30*24*time.Hour), long.Session.ExpiresAt, time.Second)

	assert.NotEqual(t, short.RefreshToken, long.RefreshToken)
}

func TestRefreshAndLogout(t *testing.T) {
	a, _, _ := newAuthority(t)
	res := register(t, a, "erin@example.com", models.RoleWorker)
	ctx := context.Background()

	access, err := a.Refresh(ctx, res.RefreshToken)
	require.NoError(t, err)
	id, err := a.Verify(access)
	require.NoError(t, err)
	assert.Equal(t, models.RoleWorker, id.Role)

	require.NoError(t, a.Logout(ctx, res.RefreshToken))
	require.NoError(t, a.Logout(ctx, res.RefreshToken))

	_, err = a.Refresh(ctx, res.RefreshToken)
	assert.Equal(t, apperr.AuthenticationFailed, apperr.KindOf(err))
}

func TestRefreshRejectsBadTokens(t *testing.T) {
	a, _, _ := newAuthority(t)
	res := register(t, a, "frank@example.com", models.RoleCitizen)
	ctx := context.Background()

	for name, tok := range map[string]string{
		"empty":        "",
		"garbage":      "not.a.jwt",
		"access token": res.AccessToken,
		"tampered":     res.RefreshToken + "x",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := a.Refresh(ctx, tok)
			assert.Equal(t, apperr.AuthenticationFailed, apperr.KindOf(err))
		})
	}
}

func TestRefreshExpiredSessionIsDeleted(t *testing.T) {
	a, s, c := newAuthority(t)
	res := register(t, a, "gina@example.com", models.RoleCitizen)
	ctx := context.Background()

	c.t = c.t.Add(8 * 24 * time.Hour)
	_, err := a.Refresh(ctx, res.RefreshToken)
	assert.Equal(t, apperr.AuthenticationFailed, apperr.KindOf(err))

	_, err = s.SessionByTokenHash(ctx, hashToken(res.RefreshToken))
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestVerifyRejectsExpiredAndForeignTokens(t *testing.T) {
	a, _, c := newAuthority(t)
	res := register(t, a, "hank@example.com", models.RoleCitizen)

	_, err := a.Verify("")
	assert.Equal(t, apperr.AuthenticationFailed, apperr.KindOf(err))

	_, err = a.Verify(res.RefreshToken)
	assert.Equal(t, apperr.AuthenticationFailed, apperr.KindOf(err))

	c.t = c.t.Add(16 * time.Minute)
	_, err = a.Verify(res.AccessToken)
	assert.Equal(t, apperr.AuthenticationFailed, apperr.KindOf(err))
}

func TestMe(t *testing.T) {
	a, _, _ := newAuthority(t)
	res := register(t, a, "ivy@example.com", models.RoleCitizen)

	acct, err := a.Me(context.Background(), &models.Identity{AccountID: res.Account.ID})
	require.NoError(t, err)
	assert.Equal(t, "ivy@example.com", acct.Email)

	_, err = a.Me(context.Background(), nil)
	assert.Equal(t, apperr.AuthenticationFailed, apperr.KindOf(err))
}

func TestSweepExpiredSessions(t *testing.T) {
	a, _, c := newAuthority(t)
	register(t, a, "jack@example.com", models.RoleCitizen)
	_, err := a.Login(context.Background(), "jack@example.com", "secret123", true)
	require.NoError(t, err)

	c.t = c.t.Add(8 * 24 * time.Hour)
	n, err := a.SweepExpiredSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestIdentityContext(t *testing.T) {
	_, ok := IdentityFrom(context.Background())
	assert.False(t, ok)

	id := &models.Identity{AccountID: "a", Role: models.RoleAdmin}
	got, ok := IdentityFrom(WithIdentity(context.Background(), id))
	require.True(t, ok)
	assert.Same(t, id, got)
}
