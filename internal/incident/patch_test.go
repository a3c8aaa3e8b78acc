package incident

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sanitrack/internal/apperr"
	"sanitrack/internal/models"
)

func statusPtr(s models.ReportStatus) *models.ReportStatus { return &s }

func strPtr(s string) *string { return &s }

func TestApplyReportPatch(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	earlier := now.Add(-time.Hour)

	tests := []struct {
		name          string
		start         models.Report
		patch         models.ReportPatch
		wantStatus    models.ReportStatus
		wantWorker    string
		wantCompleted *time.Time
		wantKind      apperr.Kind
		wantErr       bool
	}{
		{
			name:          "entering completed stamps time",
			start:         models.Report{Status: models.StatusInProgress, AssignedWorkerID: "w1"},
			patch:         models.ReportPatch{Status: statusPtr(models.StatusCompleted)},
			wantStatus:    models.StatusCompleted,
			wantWorker:    "w1",
			wantCompleted: &now,
		},
		{
			name:          "completed again keeps first time",
			start:         models.Report{Status: models.StatusCompleted, AssignedWorkerID: "w1", CompletedAt: &earlier},
			patch:         models.ReportPatch{Status: statusPtr(models.StatusCompleted)},
			wantStatus:    models.StatusCompleted,
			wantWorker:    "w1",
			wantCompleted: &earlier,
		},
		{
			name:       "leaving completed clears time",
			start:      models.Report{Status: models.StatusCompleted, AssignedWorkerID: "w1", CompletedAt: &earlier},
			patch:      models.ReportPatch{Status: statusPtr(models.StatusInProgress)},
			wantStatus: models.StatusInProgress,
			wantWorker: "w1",
		},
		{
			name:       "back to pending drops worker",
			start:      models.Report{Status: models.StatusAssigned, AssignedWorkerID: "w1"},
			patch:      models.ReportPatch{Status: statusPtr(models.StatusPending)},
			wantStatus: models.StatusPending,
		},
		{
			name:       "rejected drops worker",
			start:      models.Report{Status: models.StatusInProgress, AssignedWorkerID: "w1"},
			patch:      models.ReportPatch{Status: statusPtr(models.StatusRejected)},
			wantStatus: models.StatusRejected,
		},
		{
			name:       "worker on pending report assigns it",
			start:      models.Report{Status: models.StatusPending},
			patch:      models.ReportPatch{AssignedWorkerID: strPtr("w2")},
			wantStatus: models.StatusAssigned,
			wantWorker: "w2",
		},
		{
			name:     "worker with rejected status",
			start:    models.Report{Status: models.StatusAssigned, AssignedWorkerID: "w1"},
			patch:    models.ReportPatch{Status: statusPtr(models.StatusRejected), AssignedWorkerID: strPtr("w2")},
			wantErr:  true,
			wantKind: apperr.ValidationFailed,
		},
		{
			name:     "empty patch",
			start:    models.Report{Status: models.StatusPending},
			wantErr:  true,
			wantKind: apperr.ValidationFailed,
		},
		{
			name:     "unknown status",
			start:    models.Report{Status: models.StatusPending},
			patch:    models.ReportPatch{Status: statusPtr("closed")},
			wantErr:  true,
			wantKind: apperr.ValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.start
			err := ApplyReportPatch(&r, tt.patch, now)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, apperr.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, r.Status)
			assert.Equal(t, tt.wantWorker, r.AssignedWorkerID)
			assert.Equal(t, tt.wantCompleted, r.CompletedAt)
			assert.Equal(t, now, r.UpdatedAt)
		})
	}
}

func TestApplyReportPatchPriority(t *testing.T) {
	r := models.Report{Status: models.StatusPending, Priority: models.PriorityLow}
	p := models.PriorityEmergency
	require.NoError(t, ApplyReportPatch(&r, models.ReportPatch{Priority: &p}, time.Now()))
	assert.Equal(t, models.PriorityEmergency, r.Priority)
	assert.Equal(t, models.StatusPending, r.Status)
}
