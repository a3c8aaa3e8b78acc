package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sanitrack/internal/apperr"
	"sanitrack/internal/models"
)

var (
	citizen  = &models.Identity{AccountID: "citizen-1", Role: models.RoleCitizen}
	stranger = &models.Identity{AccountID: "citizen-2", Role: models.RoleCitizen}
	worker   = &models.Identity{AccountID: "worker-1", Role: models.RoleWorker}
	admin1   = &models.Identity{AccountID: "admin-1", Role: models.RoleAdmin}
)

func TestReportTruthTable(t *testing.T) {
	owned := Resource{OwnerAccountID: "citizen-1"}
	anon := Resource{IsAnonymous: true}

	cases := []struct {
		name   string
		actor  *models.Identity
		action Action
		res    Resource
		want   bool
	}{
		{"owner views own", citizen, ViewReport, owned, true},
		{"stranger views owned", stranger, ViewReport, owned, false},
		{"stranger views anonymous", stranger, ViewReport, anon, true},
		{"worker views owned", worker, ViewReport, owned, true},
		{"admin views owned", admin1, ViewReport, owned, true},
		{"unauthenticated views anonymous", nil, ViewReport, anon, true},
		{"unauthenticated views owned", nil, ViewReport, owned, false},

		{"owner updates own", citizen, UpdateReport, owned, false},
		{"worker updates", worker, UpdateReport, owned, true},
		{"admin updates", admin1, UpdateReport, owned, true},

		{"owner deletes own", citizen, DeleteReport, owned, true},
		{"stranger deletes", stranger, DeleteReport, owned, false},
		{"worker deletes other", worker, DeleteReport, owned, false},
		{"worker deletes own", worker, DeleteReport, Resource{OwnerAccountID: "worker-1"}, true},
		{"admin deletes", admin1, DeleteReport, owned, true},
		{"nobody owns anonymous", stranger, DeleteReport, anon, false},

		{"admin assigns", admin1, AssignWorker, owned, true},
		{"worker assigns", worker, AssignWorker, owned, false},
		{"citizen assigns", citizen, AssignWorker, owned, false},

		{"unauthenticated creates report", nil, CreateReport, Resource{}, true},
		{"unauthenticated lists reports", nil, ListReports, Resource{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Allow(tc.actor, tc.action, tc.res))
		})
	}
}

func TestAlertAndWorkerRules(t *testing.T) {
	assert.True(t, Allow(nil, CreateAlert, Resource{}))
	assert.True(t, Allow(worker, ResolveAlert, Resource{}))
	assert.True(t, Allow(admin1, ResolveAlert, Resource{}))
	assert.False(t, Allow(citizen, ResolveAlert, Resource{}))
	assert.True(t, Allow(admin1, DeleteAlert, Resource{}))
	assert.False(t, Allow(worker, DeleteAlert, Resource{}))

	self := Resource{WorkerAccountID: "worker-1"}
	other := Resource{WorkerAccountID: "worker-2"}
	assert.True(t, Allow(worker, UpdateWorkerStatus, self))
	assert.False(t, Allow(worker, UpdateWorkerStatus, other))
	assert.True(t, Allow(admin1, UpdateWorkerStatus, other))
	assert.False(t, Allow(citizen, UpdateWorkerStatus, Resource{WorkerAccountID: "citizen-1"}))

	assert.True(t, Allow(worker, ViewOwnWorker, Resource{}))
	assert.False(t, Allow(admin1, ViewOwnWorker, Resource{}))
	assert.True(t, Allow(admin1, MonitorIncidents, Resource{}))
	assert.False(t, Allow(worker, MonitorIncidents, Resource{}))
	assert.False(t, Allow(admin1, Action("report:teleport"), Resource{}))
}

func TestCheckErrorKinds(t *testing.T) {
	assert.NoError(t, Check(admin1, DeleteAlert, Resource{}))
	assert.Equal(t, apperr.AuthenticationFailed, apperr.KindOf(Check(nil, ListAlerts, Resource{})))
	assert.Equal(t, apperr.AuthorizationDenied, apperr.KindOf(Check(citizen, UpdateReport, Resource{})))
}

func TestReportScope(t *testing.T) {
	id, restricted := ReportScope(citizen)
	assert.True(t, restricted)
	assert.Equal(t, "citizen-1", id)

	for _, actor := range []*models.Identity{worker, admin1} {
		id, restricted = ReportScope(actor)
		assert.False(t, restricted)
		assert.Empty(t, id)
	}

	_, restricted = ReportScope(nil)
	assert.True(t, restricted)
}
