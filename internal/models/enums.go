package models

// Role is the closed set of account roles. It is fixed at registration.
type Role string

const (
	RoleCitizen Role = "citizen"
	RoleWorker  Role = "worker"
	RoleAdmin   Role = "admin"
)

// Roles lists every role, in privilege order.
var Roles = []Role{RoleCitizen, RoleWorker, RoleAdmin}

func (r Role) Valid() bool {
	switch r {
	case RoleCitizen, RoleWorker, RoleAdmin:
		return true
	}
	return false
}

type Category string

const (
	CategoryGarbageOverflow Category = "garbage_overflow"
	CategoryBrokenEquipment Category = "broken_equipment"
	CategoryIllegalDumping  Category = "illegal_dumping"
	CategoryBlockedDrain    Category = "blocked_drain"
	CategoryOther           Category = "other"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryGarbageOverflow, CategoryBrokenEquipment, CategoryIllegalDumping,
		CategoryBlockedDrain, CategoryOther:
		return true
	}
	return false
}

// ReportStatus is the lifecycle state of a Report.
type ReportStatus string

const (
	StatusPending    ReportStatus = "pending"
	StatusAssigned   ReportStatus = "assigned"
	StatusInProgress ReportStatus = "in_progress"
	StatusCompleted  ReportStatus = "completed"
	StatusRejected   ReportStatus = "rejected"
)

func (s ReportStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAssigned, StatusInProgress, StatusCompleted, StatusRejected:
		return true
	}
	return false
}

// Active reports count toward a worker's load.
func (s ReportStatus) Active() bool {
	return s == StatusAssigned || s == StatusInProgress
}

// Staffed reports may carry an assigned worker.
func (s ReportStatus) Staffed() bool {
	return s.Active() || s == StatusCompleted
}

type Priority string

const (
	PriorityLow       Priority = "low"
	PriorityMedium    Priority = "medium"
	PriorityHigh      Priority = "high"
	PriorityEmergency Priority = "emergency"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityEmergency:
		return true
	}
	return false
}

// Rank orders priorities low to emergency.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityEmergency:
		return 4
	}
	return 0
}

type Severity string

const (
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

func (s Severity) Rank() int {
	switch s {
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	}
	return 0
}

type AlertStatus string

const (
	AlertActive   AlertStatus = "active"
	AlertResolved AlertStatus = "resolved"
)

func (s AlertStatus) Valid() bool {
	return s == AlertActive || s == AlertResolved
}

// WorkerLevel is the authority tier used when ranking recommendations.
type WorkerLevel string

const (
	LevelLocal    WorkerLevel = "local"
	LevelState    WorkerLevel = "state"
	LevelNational WorkerLevel = "national"
)

func (l WorkerLevel) Valid() bool {
	switch l {
	case LevelLocal, LevelState, LevelNational:
		return true
	}
	return false
}

// Rank is local(1) < state(2) < national(3). Unknown levels rank as local.
func (l WorkerLevel) Rank() int {
	switch l {
	case LevelState:
		return 2
	case LevelNational:
		return 3
	}
	return 1
}

type WorkerStatus string

const (
	WorkerAvailable WorkerStatus = "available"
	WorkerBusy      WorkerStatus = "busy"
	WorkerOffline   WorkerStatus = "offline"
)

func (s WorkerStatus) Valid() bool {
	switch s {
	case WorkerAvailable, WorkerBusy, WorkerOffline:
		return true
	}
	return false
}
