package incident

import (
	"time"

	"sanitrack/internal/apperr"
	"sanitrack/internal/models"
)

// ApplyReportPatch applies p to r in place. It only touches the report;
// worker bookkeeping is the assignment engine's job.
//
// A report sent back to pending or rejected loses its worker. Naming a
// worker on a pending or rejected report moves it to assigned. Entering
// completed stamps CompletedAt; leaving completed clears it.
func ApplyReportPatch(r *models.Report, p models.ReportPatch, now time.Time) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.Empty() {
		return apperr.Validation("no fields to update")
	}

	wasCompleted := r.Status == models.StatusCompleted

	if p.Priority != nil {
		r.Priority = *p.Priority
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.AssignedWorkerID != nil {
		if p.Status != nil && !p.Status.Staffed() {
			return apperr.Validation("cannot assign a worker to a %s report", *p.Status)
		}
		r.AssignedWorkerID = *p.AssignedWorkerID
		if !r.Status.Staffed() {
			r.Status = models.StatusAssigned
		}
	}

	if !r.Status.Staffed() {
		r.AssignedWorkerID = ""
	}
	switch {
	case r.Status == models.StatusCompleted && !wasCompleted:
		t := now.UTC()
		r.CompletedAt = &t
	case r.Status != models.StatusCompleted:
		r.CompletedAt = nil
	}
	r.UpdatedAt = now.UTC()
	return nil
}
