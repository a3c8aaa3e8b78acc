// Package assignment pairs reports with field workers and keeps each
// worker's load in step with the reports assigned to it.
package assignment

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"sanitrack/internal/apperr"
	"sanitrack/internal/models"
	"sanitrack/internal/policy"
	"sanitrack/internal/store"
)

const (
	MaxRecommendations  = 10
	MaxNearbyReports    = 50
	MaxNearbyAlerts     = 20
	DefaultRadiusMeters = 5000
	RecentCompletions   = 10
)

type Engine struct {
	store  store.Store
	events models.Publisher
	log    *slog.Logger
	now    func() time.Time
}

func New(s store.Store, events models.Publisher, logger *slog.Logger) *Engine {
	if events == nil {
		events = models.Discard{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: s, events: events, log: logger, now: time.Now}
}

// Assign puts a report in the assigned state under workerAccountID.
// Re-assigning the same worker leaves its active list unchanged;
// assigning a different worker releases the previous one.
func (e *Engine) Assign(ctx context.Context, actor *models.Identity, reportID, workerAccountID string) (*models.Report, error) {
	if err := policy.Check(actor, policy.AssignWorker, policy.Resource{}); err != nil {
		return nil, err
	}
	if workerAccountID == "" {
		return nil, apperr.Validation("worker id is required")
	}

	var updated *models.Report
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		report, err := tx.ReportByID(ctx, reportID)
		if err != nil {
			return err
		}
		if _, err := tx.WorkerByAccountID(ctx, workerAccountID); err != nil {
			if apperr.KindOf(err) == apperr.NotFound {
				return apperr.NotFoundf("worker not found")
			}
			return err
		}

		prev := *report
		report.Status = models.StatusAssigned
		report.AssignedWorkerID = workerAccountID
		report.CompletedAt = nil
		report.UpdatedAt = e.now().UTC()
		if err := tx.UpdateReport(ctx, report); err != nil {
			return err
		}
		if err := e.Reconcile(ctx, tx, &prev, report); err != nil {
			return err
		}
		updated = report
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("worker assigned", "report_id", reportID, "worker_id", workerAccountID, "by", actor.AccountID)
	e.events.Publish(models.Event{Type: models.EventReportAssigned, ID: reportID, Data: updated, At: updated.UpdatedAt})
	return updated, nil
}

// Reconcile brings worker records in line with a report moving from prev
// to next. Either side may be nil for creation or deletion. It must run
// inside the transaction that stored next.
//
// A report leaving a worker's active set is removed from that worker; a
// report entering it is added (once) and the worker becomes busy; a
// report newly completed bumps the worker's completed count. Worker
// status is never reset here.
func (e *Engine) Reconcile(ctx context.Context, tx store.Store, prev, next *models.Report) error {
	workers := map[string]*models.Worker{}
	var order []string
	load := func(accountID string, required bool) (*models.Worker, error) {
		if w, ok := workers[accountID]; ok {
			return w, nil
		}
		w, err := tx.WorkerByAccountID(ctx, accountID)
		if err != nil {
			if apperr.KindOf(err) != apperr.NotFound {
				return nil, err
			}
			if required {
				return nil, apperr.NotFoundf("worker not found")
			}
			e.log.Warn("report references missing worker", "worker_id", accountID)
			return nil, nil
		}
		workers[accountID] = w
		order = append(order, accountID)
		return w, nil
	}

	prevWorker, nextWorker := activeWorker(prev), activeWorker(next)
	if prevWorker != "" && prevWorker != nextWorker {
		w, err := load(prevWorker, false)
		if err != nil {
			return err
		}
		if w != nil {
			w.RemoveActive(prev.ID)
		}
	}
	if nextWorker != "" {
		w, err := load(nextWorker, true)
		if err != nil {
			return err
		}
		w.AddActive(next.ID)
		w.Status = models.WorkerBusy
	}

	completed := next != nil && next.Status == models.StatusCompleted &&
		(prev == nil || prev.Status != models.StatusCompleted)
	if completed && next.AssignedWorkerID != "" {
		w, err := load(next.AssignedWorkerID, false)
		if err != nil {
			return err
		}
		if w != nil {
			onReportCompleted(w, next.ID)
		}
	}

	now := e.now().UTC()
	for _, id := range order {
		w := workers[id]
		w.UpdatedAt = now
		if err := tx.UpdateWorker(ctx, w); err != nil {
			return err
		}
	}
	return nil
}

// onReportCompleted counts the completion and drops the report from the
// active list. The worker's status is left as it was.
func onReportCompleted(w *models.Worker, reportID string) {
	w.CompletedReportCount++
	w.RemoveActive(reportID)
}

// activeWorker returns the worker carrying r in its active list, if any.
func activeWorker(r *models.Report) string {
	if r == nil || !r.Status.Active() {
		return ""
	}
	return r.AssignedWorkerID
}

// RecommendWorkers returns up to ten available workers for a report,
// local workers first, then state, then national.
func (e *Engine) RecommendWorkers(ctx context.Context, actor *models.Identity, reportID string) ([]models.Worker, error) {
	if err := policy.Check(actor, policy.Recommend, policy.Resource{}); err != nil {
		return nil, err
	}
	if _, err := e.store.ReportByID(ctx, reportID); err != nil {
		return nil, err
	}
	workers, err := e.store.AvailableWorkers(ctx, MaxRecommendations)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(workers, func(i, j int) bool {
		return workers[i].Level.Rank() < workers[j].Level.Rank()
	})
	if workers == nil {
		workers = []models.Worker{}
	}
	return workers, nil
}

// NearbyInput is a radius search request. Zero RadiusMeters means the
// default radius.
type NearbyInput struct {
	Lng          float64
	Lat          float64
	RadiusMeters float64
}

func (in NearbyInput) query(limit int) (models.NearbyQuery, error) {
	if err := models.ValidateCoordinates(in.Lng, in.Lat); err != nil {
		return models.NearbyQuery{}, err
	}
	radius := in.RadiusMeters
	if radius == 0 {
		radius = DefaultRadiusMeters
	}
	if radius < 0 || math.IsNaN(radius) || math.IsInf(radius, 0) {
		return models.NearbyQuery{}, apperr.Validation("radius must be positive")
	}
	return models.NearbyQuery{Lng: in.Lng, Lat: in.Lat, RadiusMeters: radius, Limit: limit}, nil
}

// NearbyReports returns up to 50 reports within the radius, nearest first.
func (e *Engine) NearbyReports(ctx context.Context, actor *models.Identity, in NearbyInput) ([]models.Report, error) {
	if err := policy.Check(actor, policy.NearbyReports, policy.Resource{}); err != nil {
		return nil, err
	}
	q, err := in.query(MaxNearbyReports)
	if err != nil {
		return nil, err
	}
	reports, err := e.store.NearbyReports(ctx, q)
	if err != nil {
		return nil, err
	}
	if reports == nil {
		reports = []models.Report{}
	}
	return reports, nil
}

// NearbyAlerts returns up to 20 active alerts within the radius, nearest
// first.
func (e *Engine) NearbyAlerts(ctx context.Context, actor *models.Identity, in NearbyInput) ([]models.EmergencyAlert, error) {
	if err := policy.Check(actor, policy.NearbyAlerts, policy.Resource{}); err != nil {
		return nil, err
	}
	q, err := in.query(MaxNearbyAlerts)
	if err != nil {
		return nil, err
	}
	alerts, err := e.store.NearbyActiveAlerts(ctx, q)
	if err != nil {
		return nil, err
	}
	if alerts == nil {
		alerts = []models.EmergencyAlert{}
	}
	return alerts, nil
}
