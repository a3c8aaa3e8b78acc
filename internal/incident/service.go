// Package incident runs the report and emergency alert lifecycles.
// Every mutation is gated by the policy table, and report changes that
// touch a worker's load are reconciled by the assignment engine in the
// same storage transaction.
package incident

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"sanitrack/internal/apperr"
	"sanitrack/internal/assignment"
	"sanitrack/internal/models"
	"sanitrack/internal/policy"
	"sanitrack/internal/store"
)

type Service struct {
	store  store.Store
	engine *assignment.Engine
	events models.Publisher
	log    *slog.Logger
	now    func() time.Time
}

func New(s store.Store, engine *assignment.Engine, events models.Publisher, logger *slog.Logger) *Service {
	if events == nil {
		events = models.Discard{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: s, engine: engine, events: events, log: logger, now: time.Now}
}

// CreateReport files a report. Unauthenticated callers always file
// anonymously; an anonymous report never records its owner.
func (s *Service) CreateReport(ctx context.Context, actor *models.Identity, in models.NewReport) (*models.Report, error) {
	if err := policy.Check(actor, policy.CreateReport, policy.Resource{}); err != nil {
		return nil, err
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	r := &models.Report{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		Location:    in.Location,
		Status:      models.StatusPending,
		Priority:    in.Priority,
		Images:      in.Images,
		IsAnonymous: in.IsAnonymous || actor == nil,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if r.Images == nil {
		r.Images = []string{}
	}
	if !r.IsAnonymous {
		r.OwnerAccountID = actor.AccountID
	}

	if err := s.store.CreateReport(ctx, r); err != nil {
		return nil, err
	}
	s.log.Info("report created", "report_id", r.ID, "category", r.Category, "anonymous", r.IsAnonymous)
	s.events.Publish(models.Event{Type: models.EventReportCreated, ID: r.ID, Data: r, At: now})
	return r, nil
}

func (s *Service) GetReport(ctx context.Context, actor *models.Identity, id string) (*models.Report, error) {
	r, err := s.store.ReportByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Check(actor, policy.ViewReport, policy.ReportResource(r)); err != nil {
		return nil, err
	}
	return r, nil
}

// ListReports pages through reports. Citizens only see their own reports
// and anonymous ones.
func (s *Service) ListReports(ctx context.Context, actor *models.Identity, q models.ReportQuery) (models.Page[models.Report], error) {
	if err := policy.Check(actor, policy.ListReports, policy.Resource{}); err != nil {
		return models.Page[models.Report]{}, err
	}
	if visibleTo, restricted := policy.ReportScope(actor); restricted {
		q.VisibleTo = visibleTo
	}
	return s.listReports(ctx, q)
}

// MyReports pages through the reports the caller filed under their name.
func (s *Service) MyReports(ctx context.Context, actor *models.Identity, q models.ReportQuery) (models.Page[models.Report], error) {
	if err := policy.Check(actor, policy.ListOwnReports, policy.Resource{}); err != nil {
		return models.Page[models.Report]{}, err
	}
	q.OwnerID = actor.AccountID
	q.VisibleTo = ""
	return s.listReports(ctx, q)
}

func (s *Service) listReports(ctx context.Context, q models.ReportQuery) (models.Page[models.Report], error) {
	if err := q.Normalize(); err != nil {
		return models.Page[models.Report]{}, err
	}
	reports, total, err := s.store.ListReports(ctx, q)
	if err != nil {
		return models.Page[models.Report]{}, err
	}
	return models.NewPage(reports, q.Pagination, total), nil
}

// UpdateReport applies an operator's patch. Changing the assigned worker
// also needs the assign permission.
func (s *Service) UpdateReport(ctx context.Context, actor *models.Identity, id string, patch models.ReportPatch) (*models.Report, error) {
	if err := policy.Check(actor, policy.UpdateReport, policy.Resource{}); err != nil {
		return nil, err
	}
	if patch.AssignedWorkerID != nil {
		if err := policy.Check(actor, policy.AssignWorker, policy.Resource{}); err != nil {
			return nil, err
		}
	}

	var updated *models.Report
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		r, err := tx.ReportByID(ctx, id)
		if err != nil {
			return err
		}
		prev := *r
		if err := ApplyReportPatch(r, patch, s.now()); err != nil {
			return err
		}
		if r.AssignedWorkerID != "" && r.AssignedWorkerID != prev.AssignedWorkerID {
			if _, err := tx.WorkerByAccountID(ctx, r.AssignedWorkerID); err != nil {
				if apperr.KindOf(err) == apperr.NotFound {
					return apperr.NotFoundf("worker not found")
				}
				return err
			}
		}
		if err := tx.UpdateReport(ctx, r); err != nil {
			return err
		}
		if err := s.engine.Reconcile(ctx, tx, &prev, r); err != nil {
			return err
		}
		updated = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("report updated", "report_id", id, "status", updated.Status, "by", actor.AccountID)
	s.events.Publish(models.Event{Type: models.EventReportUpdated, ID: id, Data: updated, At: updated.UpdatedAt})
	return updated, nil
}

// DeleteReport removes a report and releases its worker.
func (s *Service) DeleteReport(ctx context.Context, actor *models.Identity, id string) error {
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		r, err := tx.ReportByID(ctx, id)
		if err != nil {
			return err
		}
		if err := policy.Check(actor, policy.DeleteReport, policy.ReportResource(r)); err != nil {
			return err
		}
		if err := tx.DeleteReport(ctx, id); err != nil {
			return err
		}
		return s.engine.Reconcile(ctx, tx, r, nil)
	})
	if err != nil {
		return err
	}

	s.log.Info("report deleted", "report_id", id, "by", actor.AccountID)
	s.events.Publish(models.Event{Type: models.EventReportDeleted, ID: id, At: s.now().UTC()})
	return nil
}
