package mongostore

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

func newTestStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("SANITRACK_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("SANITRACK_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	dbName := "sanitrack_test_" + uuid.NewString()[:8]
	s, err := Connect(ctx, uri, dbName, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.db.Drop(context.Background())
		_ = s.Close()
	})
	return s
}

func TestRedactURI(t *testing.T) {
	redacted := redactURI("mongodb://user:secret@db:27017/x")
	assert.NotContains(t, redacted, "secret")
	assert.NotContains(t, redacted, "user")
	assert.Contains(t, redacted, "@db:27017/x")
	assert.Equal(t, "mongodb://localhost:27017", redactURI("mongodb://localhost:27017"))
}

func TestPointRoundTrip(t *testing.T) {
	loc := models.Location{Lng: -73.9, Lat: 40.7, Address: "Test Address"}
	p := toPoint(loc)
	assert.Equal(t, "Point", p.Type)
	assert.Equal(t, []float64{-73.9, 40.7}, p.Coordinates)
	assert.Equal(t, loc, p.location())
}

func TestAccountsAndSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	a := &models.Account{ID: uuid.NewString(), Email: "Bob@Example.com", PasswordHash: "h",
		DisplayName: "Bob", Role: models.RoleCitizen, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateAccount(ctx, a))
	got, err := s.AccountByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	dup := *a
	dup.ID = uuid.NewString()
	assert.Equal(t, apperr.Conflict, apperr.KindOf(s.CreateAccount(ctx, &dup)))

	sess := &models.Session{ID: uuid.NewString(), AccountID: a.ID, RefreshTokenHash: "h1",
		ExpiresAt: now.Add(-time.Second), CreatedAt: now}
	require.NoError(t, s.CreateSession(ctx, sess))
	n, err := s.DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = s.SessionByTokenHash(ctx, "h1")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestNearbyUsesGeoIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	mk := func(lng, lat float64) *models.Report {
		r := &models.Report{ID: uuid.NewString(), Title: "t", Description: "d",
			Category: models.CategoryOther, Location: models.Location{Lng: lng, Lat: lat, Address: "Test Address"},
			Status: models.StatusPending, Priority: models.PriorityMedium, IsAnonymous: true,
			CreatedAt: now, UpdatedAt: now}
		require.NoError(t, s.CreateReport(ctx, r))
		return r
	}
	near := mk(-73.935242, 40.730610)
	mk(-73.8, 40.7306)

	got, err := s.NearbyReports(ctx, models.NearbyQuery{Lng: -73.935, Lat: 40.7306, RadiusMeters: 1000, Limit: 50})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, near.ID, got[0].ID)
	assert.Equal(t, near.Location, got[0].Location)
}

func TestConditionalWrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	w := &models.Worker{ID: uuid.NewString(), AccountID: uuid.NewString(), Zone: "north",
		Level: models.LevelLocal, ActiveReportIDs: []string{"r1"}, Status: models.WorkerBusy,
		CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateWorker(ctx, w))
	require.NoError(t, s.SetWorkerStatus(ctx, w.AccountID, models.WorkerOffline, now))
	got, err := s.WorkerByAccountID(ctx, w.AccountID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkerOffline, got.Status)
	assert.Equal(t, []string{"r1"}, got.ActiveReportIDs)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(s.SetWorkerStatus(ctx, "missing", models.WorkerOffline, now)))

	a := &models.EmergencyAlert{ID: uuid.NewString(), Message: "Gas leak",
		Location: models.Location{Lng: -73.9, Lat: 40.7, Address: "Test Address"},
		Severity: models.SeverityHigh, Status: models.AlertActive, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateAlert(ctx, a))
	require.NoError(t, s.ResolveAlert(ctx, a.ID, now))
	assert.Equal(t, apperr.Conflict, apperr.KindOf(s.ResolveAlert(ctx, a.ID, now)))
	assert.Equal(t, apperr.NotFound, apperr.KindOf(s.ResolveAlert(ctx, "missing", now)))
}
