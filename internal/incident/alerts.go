package incident

import (
	"context"

	"github.com/google/uuid"

	"sanitrack/internal/models"
	"sanitrack/internal/policy"
)

// CreateAlert raises an emergency alert. Anyone may raise one.
func (s *Service) CreateAlert(ctx context.Context, actor *models.Identity, in models.NewAlert) (*models.EmergencyAlert, error) {
	if err := policy.Check(actor, policy.CreateAlert, policy.Resource{}); err != nil {
		return nil, err
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	a := &models.EmergencyAlert{
		ID:        uuid.NewString(),
		Message:   in.Message,
		Location:  in.Location,
		Severity:  in.Severity,
		Status:    models.AlertActive,
		Images:    in.Images,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if a.Images == nil {
		a.Images = []string{}
	}
	if actor != nil {
		a.ReporterAccountID = actor.AccountID
	}

	if err := s.store.CreateAlert(ctx, a); err != nil {
		return nil, err
	}
	s.log.Warn("emergency alert raised", "alert_id", a.ID, "severity", a.Severity)
	s.events.Publish(models.Event{Type: models.EventAlertCreated, ID: a.ID, Data: a, At: now})
	return a, nil
}

func (s *Service) GetAlert(ctx context.Context, actor *models.Identity, id string) (*models.EmergencyAlert, error) {
	if err := policy.Check(actor, policy.ViewAlert, policy.Resource{}); err != nil {
		return nil, err
	}
	return s.store.AlertByID(ctx, id)
}

// ListAlerts pages through alerts, most severe first, then newest.
func (s *Service) ListAlerts(ctx context.Context, actor *models.Identity, q models.AlertQuery) (models.Page[models.EmergencyAlert], error) {
	if err := policy.Check(actor, policy.ListAlerts, policy.Resource{}); err != nil {
		return models.Page[models.EmergencyAlert]{}, err
	}
	if err := q.Normalize(); err != nil {
		return models.Page[models.EmergencyAlert]{}, err
	}
	alerts, total, err := s.store.ListAlerts(ctx, q)
	if err != nil {
		return models.Page[models.EmergencyAlert]{}, err
	}
	return models.NewPage(alerts, q.Pagination, total), nil
}

// ResolveAlert moves an active alert to resolved. Resolution is one-way.
func (s *Service) ResolveAlert(ctx context.Context, actor *models.Identity, id string) (*models.EmergencyAlert, error) {
	if err := policy.Check(actor, policy.ResolveAlert, policy.Resource{}); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if err := s.store.ResolveAlert(ctx, id, now); err != nil {
		return nil, err
	}
	a, err := s.store.AlertByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.log.Info("emergency alert resolved", "alert_id", id, "by", actor.AccountID)
	s.events.Publish(models.Event{Type: models.EventAlertResolved, ID: id, Data: a, At: now})
	return a, nil
}

func (s *Service) DeleteAlert(ctx context.Context, actor *models.Identity, id string) error {
	if err := policy.Check(actor, policy.DeleteAlert, policy.Resource{}); err != nil {
		return err
	}
	if err := s.store.DeleteAlert(ctx, id); err != nil {
		return err
	}
	s.log.Info("emergency alert deleted", "alert_id", id, "by", actor.AccountID)
	s.events.Publish(models.Event{Type: models.EventAlertDeleted, ID: id, At: s.now().UTC()})
	return nil
}
