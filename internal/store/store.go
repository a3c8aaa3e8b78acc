// Package store defines the storage boundary of the incident core.
//
// Backends (sqlite, mongostore, redisstore) are the sole arbiters of
// per-record atomicity. Every backend reports missing records as
// apperr.NotFound and unique-key violations as apperr.Conflict, so the
// services above never inspect driver errors.
package store

import (
	"context"
	"time"

	"sanitrack/internal/models"
)

type Accounts interface {
	CreateAccount(ctx context.Context, a *models.Account) error
	AccountByID(ctx context.Context, id string) (*models.Account, error)
	AccountByEmail(ctx context.Context, email string) (*models.Account, error)
}

type Sessions interface {
	CreateSession(ctx context.Context, s *models.Session) error
	SessionByTokenHash(ctx context.Context, hash string) (*models.Session, error)
	// DeleteSession removes a session by id. Missing sessions are not an error.
	DeleteSession(ctx context.Context, id string) error
	// DeleteSessionByTokenHash removes the session holding hash, if any.
	DeleteSessionByTokenHash(ctx context.Context, hash string) error
	// DeleteExpiredSessions removes sessions whose expiry is not after now.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

type Reports interface {
	CreateReport(ctx context.Context, r *models.Report) error
	ReportByID(ctx context.Context, id string) (*models.Report, error)
	UpdateReport(ctx context.Context, r *models.Report) error
	DeleteReport(ctx context.Context, id string) error
	ListReports(ctx context.Context, q models.ReportQuery) ([]models.Report, int64, error)
	// NearbyReports returns reports within the radius, nearest first.
	NearbyReports(ctx context.Context, q models.NearbyQuery) ([]models.Report, error)
	// CompletedReportsByWorker returns completed reports of a worker,
	// most recently completed first.
	CompletedReportsByWorker(ctx context.Context, workerAccountID string) ([]models.Report, error)
}

type Alerts interface {
	CreateAlert(ctx context.Context, a *models.EmergencyAlert) error
	AlertByID(ctx context.Context, id string) (*models.EmergencyAlert, error)
	// ResolveAlert moves an active alert to resolved in one conditional
	// write. An alert that is already resolved yields a Conflict.
	ResolveAlert(ctx context.Context, id string, at time.Time) error
	DeleteAlert(ctx context.Context, id string) error
	// ListAlerts orders by severity, highest first, then newest first.
	ListAlerts(ctx context.Context, q models.AlertQuery) ([]models.EmergencyAlert, int64, error)
	// NearbyActiveAlerts returns active alerts within the radius, nearest first.
	NearbyActiveAlerts(ctx context.Context, q models.NearbyQuery) ([]models.EmergencyAlert, error)
}

type Workers interface {
	CreateWorker(ctx context.Context, w *models.Worker) error
	WorkerByAccountID(ctx context.Context, accountID string) (*models.Worker, error)
	UpdateWorker(ctx context.Context, w *models.Worker) error
	// SetWorkerStatus changes only the status of the worker owned by
	// accountID, leaving its report bookkeeping untouched.
	SetWorkerStatus(ctx context.Context, accountID string, status models.WorkerStatus, at time.Time) error
	// ListWorkers orders by rating, highest first.
	ListWorkers(ctx context.Context, q models.WorkerQuery) ([]models.Worker, int64, error)
	// AvailableWorkers returns up to limit workers with status available,
	// in storage retrieval order.
	AvailableWorkers(ctx context.Context, limit int) ([]models.Worker, error)
}

// Store is the full storage boundary.
type Store interface {
	Accounts
	Sessions
	Reports
	Alerts
	Workers

	// RunInTx runs fn so that its writes commit together or not at all.
	// fn must use the ctx and Store it is handed.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	Ping(ctx context.Context) error
	Close() error
}
