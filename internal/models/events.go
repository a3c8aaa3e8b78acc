package models

import "time"

// Event types published on incident changes.
const (
	EventReportCreated  = "report.created"
	EventReportUpdated  = "report.updated"
	EventReportDeleted  = "report.deleted"
	EventReportAssigned = "report.assigned"
	EventAlertCreated   = "alert.created"
	EventAlertResolved  = "alert.resolved"
	EventAlertDeleted   = "alert.deleted"
	EventWorkerStatus   = "worker.status"
)

type Event struct {
	Type string    `json:"type"`
	ID   string    `json:"id"`
	Data any       `json:"data,omitempty"`
	At   time.Time `json:"at"`
}

// Publisher receives events after the change they describe is stored.
// Publish must not block.
type Publisher interface {
	Publish(Event)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(Event) {}
