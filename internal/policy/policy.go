// Package policy decides whether an actor may perform an action on a
// resource. It is a pure table of predicates: no storage, no clock.
package policy

import (
	"sanitrack/internal/apperr"
	"sanitrack/internal/models"
)

type Action string

const (
	CreateReport   Action = "report:create"
	ViewReport     Action = "report:view"
	ListReports    Action = "report:list"
	ListOwnReports Action = "report:list-own"
	UpdateReport   Action = "report:update"
	DeleteReport   Action = "report:delete"
	AssignWorker   Action = "report:assign"
	Recommend      Action = "report:recommend"
	NearbyReports  Action = "report:nearby"

	CreateAlert  Action = "alert:create"
	ViewAlert    Action = "alert:view"
	ListAlerts   Action = "alert:list"
	ResolveAlert Action = "alert:resolve"
	DeleteAlert  Action = "alert:delete"
	NearbyAlerts Action = "alert:nearby"

	ListWorkers        Action = "worker:list"
	ViewWorker         Action = "worker:view"
	ViewOwnWorker      Action = "worker:view-own"
	WorkerStats        Action = "worker:stats"
	UpdateWorkerStatus Action = "worker:update-status"

	MonitorIncidents Action = "incident:monitor"
)

// Resource carries the attributes predicates look at. Only the fields
// relevant to an action need to be set.
type Resource struct {
	OwnerAccountID  string
	IsAnonymous     bool
	WorkerAccountID string
}

// ReportResource describes r for policy checks.
func ReportResource(r *models.Report) Resource {
	return Resource{OwnerAccountID: r.OwnerAccountID, IsAnonymous: r.IsAnonymous}
}

// A predicate grants access when it returns true. actor is nil for an
// unauthenticated caller.
type predicate func(actor *models.Identity, res Resource) bool

func anyone(*models.Identity, Resource) bool { return true }

func authenticated(actor *models.Identity, _ Resource) bool { return actor != nil }

func role(roles ...models.Role) predicate {
	return func(actor *models.Identity, _ Resource) bool {
		if actor == nil {
			return false
		}
		for _, r := range roles {
			if actor.Role == r {
				return true
			}
		}
		return false
	}
}

func owner(actor *models.Identity, res Resource) bool {
	return actor != nil && res.OwnerAccountID != "" && res.OwnerAccountID == actor.AccountID
}

func anonymousReport(_ *models.Identity, res Resource) bool { return res.IsAnonymous }

func selfWorker(actor *models.Identity, res Resource) bool {
	return actor != nil && actor.Role == models.RoleWorker &&
		res.WorkerAccountID != "" && res.WorkerAccountID == actor.AccountID
}

var (
	admin         = role(models.RoleAdmin)
	staff         = role(models.RoleWorker, models.RoleAdmin)
	workerAccount = role(models.RoleWorker)
)

// rules maps every action to predicates of which any one suffices.
var rules = map[Action][]predicate{
	CreateReport:   {anyone},
	ViewReport:     {owner, staff, anonymousReport},
	ListReports:    {authenticated},
	ListOwnReports: {authenticated},
	UpdateReport:   {staff},
	DeleteReport:   {admin, owner},
	AssignWorker:   {admin},
	Recommend:      {authenticated},
	NearbyReports:  {authenticated},

	CreateAlert:  {anyone},
	ViewAlert:    {authenticated},
	ListAlerts:   {authenticated},
	ResolveAlert: {staff},
	DeleteAlert:  {admin},
	NearbyAlerts: {authenticated},

	ListWorkers:        {authenticated},
	ViewWorker:         {authenticated},
	ViewOwnWorker:      {workerAccount},
	WorkerStats:        {authenticated},
	UpdateWorkerStatus: {selfWorker, admin},

	MonitorIncidents: {admin},
}

// Allow reports whether actor may perform action on res. Unknown actions
// are denied.
func Allow(actor *models.Identity, action Action, res Resource) bool {
	for _, p := range rules[action] {
		if p(actor, res) {
			return true
		}
	}
	return false
}

// Check is Allow returning the error a caller should see: authentication
// failure when there is no actor, authorization denial otherwise.
func Check(actor *models.Identity, action Action, res Resource) error {
	if Allow(actor, action, res) {
		return nil
	}
	if actor == nil {
		return apperr.Authentication("authentication required")
	}
	return apperr.Authorization("not authorized to perform this action")
}

// ReportScope tells a report listing whom to restrict to. Citizens see
// their own reports plus anonymous ones; workers and admins see all.
func ReportScope(actor *models.Identity) (visibleTo string, restricted bool) {
	if actor != nil && (actor.Role == models.RoleWorker || actor.Role == models.RoleAdmin) {
		return "", false
	}
	if actor == nil {
		return "", true
	}
	return actor.AccountID, true
}
