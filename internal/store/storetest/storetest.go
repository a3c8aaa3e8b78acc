// Package storetest builds throwaway stores and fixtures for package tests.
package storetest

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"sanitrack/internal/models"
	"sanitrack/internal/store"
	"sanitrack/internal/store/sqlite"
)

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// New opens a sqlite store in a fresh temp directory. It is closed when
// the test ends.
func New(t testing.TB) store.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), Logger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// Account inserts an account with the given role.
func Account(t testing.TB, s store.Store, role models.Role) *models.Account {
	t.Helper()
	now := time.Now().UTC()
	id := uuid.NewString()
	a := &models.Account{
		ID:           id,
		Email:        id[:8] + "@example.com",
		PasswordHash: "x",
		DisplayName:  string(role) + " " + id[:4],
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, s.CreateAccount(context.Background(), a))
	return a
}

// Worker inserts a worker account and its profile.
func Worker(t testing.TB, s store.Store, status models.WorkerStatus, level models.WorkerLevel) *models.Worker {
	t.Helper()
	acct := Account(t, s, models.RoleWorker)
	now := time.Now().UTC()
	w := &models.Worker{
		ID:              uuid.NewString(),
		AccountID:       acct.ID,
		Zone:            "zone-a",
		Level:           level,
		ActiveReportIDs: []string{},
		Status:          status,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, s.CreateWorker(context.Background(), w))
	return w
}

// Report inserts a pending report at lng/lat.
func Report(t testing.TB, s store.Store, ownerID string, lng, lat float64) *models.Report {
	t.Helper()
	now := time.Now().UTC()
	r := &models.Report{
		ID:             uuid.NewString(),
		Title:          "Overflowing bin",
		Description:    "Not emptied for a week",
		Category:       models.CategoryGarbageOverflow,
		Location:       models.Location{Lng: lng, Lat: lat, Address: "Test Address"},
		Status:         models.StatusPending,
		Priority:       models.PriorityMedium,
		Images:         []string{},
		OwnerAccountID: ownerID,
		IsAnonymous:    ownerID == "",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, s.CreateReport(context.Background(), r))
	return r
}
