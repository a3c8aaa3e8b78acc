package assignment

import (
	"context"
	"math"

	"sanitrack/internal/apperr"
	"sanitrack/internal/models"
	"sanitrack/internal/policy"
)

func (e *Engine) ListWorkers(ctx context.Context, actor *models.Identity, q models.WorkerQuery) (models.Page[models.Worker], error) {
	if err := policy.Check(actor, policy.ListWorkers, policy.Resource{}); err != nil {
		return models.Page[models.Worker]{}, err
	}
	if err := q.Normalize(); err != nil {
		return models.Page[models.Worker]{}, err
	}
	workers, total, err := e.store.ListWorkers(ctx, q)
	if err != nil {
		return models.Page[models.Worker]{}, err
	}
	return models.NewPage(workers, q.Pagination, total), nil
}

func (e *Engine) GetWorker(ctx context.Context, actor *models.Identity, accountID string) (*models.Worker, error) {
	if err := policy.Check(actor, policy.ViewWorker, policy.Resource{WorkerAccountID: accountID}); err != nil {
		return nil, err
	}
	return e.worker(ctx, accountID)
}

// MyWorker returns the worker profile of the calling worker account.
func (e *Engine) MyWorker(ctx context.Context, actor *models.Identity) (*models.Worker, error) {
	if err := policy.Check(actor, policy.ViewOwnWorker, policy.Resource{}); err != nil {
		return nil, err
	}
	w, err := e.store.WorkerByAccountID(ctx, actor.AccountID)
	if apperr.KindOf(err) == apperr.NotFound {
		return nil, apperr.NotFoundf("worker profile not found")
	}
	return w, err
}

// UpdateWorkerStatus lets a worker (or an admin) set availability.
func (e *Engine) UpdateWorkerStatus(ctx context.Context, actor *models.Identity, accountID string, status models.WorkerStatus) (*models.Worker, error) {
	if err := policy.Check(actor, policy.UpdateWorkerStatus, policy.Resource{WorkerAccountID: accountID}); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, apperr.Validation("invalid status %q", status)
	}

	if err := e.store.SetWorkerStatus(ctx, accountID, status, e.now().UTC()); err != nil {
		return nil, err
	}
	w, err := e.worker(ctx, accountID)
	if err != nil {
		return nil, err
	}

	e.events.Publish(models.Event{Type: models.EventWorkerStatus, ID: accountID, Data: w, At: w.UpdatedAt})
	return w, nil
}

type Stats struct {
	CompletedReports   int             `json:"completed_reports"`
	ActiveReports      int             `json:"active_reports"`
	Rating             float64         `json:"rating"`
	AvgCompletionHours float64         `json:"avg_completion_hours"`
	RecentCompletions  []models.Report `json:"recent_completions"`
}

type WorkerStats struct {
	Worker *models.Worker `json:"worker"`
	Stats  Stats          `json:"stats"`
}

// WorkerStats summarises a worker's record. Average completion time is
// measured from report creation, in whole hours.
func (e *Engine) WorkerStats(ctx context.Context, actor *models.Identity, accountID string) (*WorkerStats, error) {
	if err := policy.Check(actor, policy.WorkerStats, policy.Resource{WorkerAccountID: accountID}); err != nil {
		return nil, err
	}
	w, err := e.worker(ctx, accountID)
	if err != nil {
		return nil, err
	}
	completed, err := e.store.CompletedReportsByWorker(ctx, accountID)
	if err != nil {
		return nil, err
	}

	var total float64
	var counted int
	for _, r := range completed {
		if r.CompletedAt == nil {
			continue
		}
		total += r.CompletedAt.Sub(r.CreatedAt).Hours()
		counted++
	}
	var avg float64
	if counted > 0 {
		avg = math.Round(total / float64(counted))
	}

	recent := completed
	if len(recent) > RecentCompletions {
		recent = recent[:RecentCompletions]
	}
	if recent == nil {
		recent = []models.Report{}
	}

	return &WorkerStats{
		Worker: w,
		Stats: Stats{
			CompletedReports:   w.CompletedReportCount,
			ActiveReports:      len(w.ActiveReportIDs),
			Rating:             w.Rating,
			AvgCompletionHours: avg,
			RecentCompletions:  recent,
		},
	}, nil
}

func (e *Engine) worker(ctx context.Context, accountID string) (*models.Worker, error) {
	w, err := e.store.WorkerByAccountID(ctx, accountID)
	if apperr.KindOf(err) == apperr.NotFound {
		return nil, apperr.NotFoundf("worker not found")
	}
	return w, err
}
