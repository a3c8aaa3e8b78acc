package models

import (
	"math"
	"strings"
	"unicode/utf8"

	"sanitrack/internal/apperr"
)

const (
	MaxReportImages  = 5
	MaxAlertImages   = 3
	MaxTitleLen      = 200
	MaxDescriptionLn = 2000
	MaxMessageLen    = 500
)

// ValidateCoordinates checks WGS84 bounds.
func ValidateCoordinates(lng, lat float64) error {
	if !finite(lng) || lng < -180 || lng > 180 {
		return apperr.Validation("longitude must be between -180 and 180")
	}
	if !finite(lat) || lat < -90 || lat > 90 {
		return apperr.Validation("latitude must be between -90 and 90")
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (l Location) Validate() error {
	if err := ValidateCoordinates(l.Lng, l.Lat); err != nil {
		return err
	}
	if strings.TrimSpace(l.Address) == "" {
		return apperr.Validation("location address is required")
	}
	return nil
}

// NewReport is the input accepted when a report is filed.
type NewReport struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
	Location    Location `json:"location"`
	Priority    Priority `json:"priority,omitempty"`
	Images      []string `json:"images,omitempty"`
	IsAnonymous bool     `json:"is_anonymous"`
}

// Normalize trims text fields and applies defaults.
func (n *NewReport) Normalize() {
	n.Title = strings.TrimSpace(n.Title)
	n.Description = strings.TrimSpace(n.Description)
	n.Location.Address = strings.TrimSpace(n.Location.Address)
	if n.Priority == "" {
		n.Priority = PriorityMedium
	}
}

func (n *NewReport) Validate() error {
	switch {
	case n.Title == "":
		return apperr.Validation("title is required")
	case utf8.RuneCountInString(n.Title) > MaxTitleLen:
		return apperr.Validation("title must be at most %d characters", MaxTitleLen)
	case n.Description == "":
		return apperr.Validation("description is required")
	case utf8.RuneCountInString(n.Description) > MaxDescriptionLn:
		return apperr.Validation("description must be at most %d characters", MaxDescriptionLn)
	case !n.Category.Valid():
		return apperr.Validation("invalid category %q", n.Category)
	case !n.Priority.Valid():
		return apperr.Validation("invalid priority %q", n.Priority)
	case len(n.Images) > MaxReportImages:
		return apperr.Validation("maximum %d images allowed per report", MaxReportImages)
	}
	return n.Location.Validate()
}

// NewAlert is the input accepted when an emergency alert is raised.
type NewAlert struct {
	Message  string   `json:"message"`
	Location Location `json:"location"`
	Severity Severity `json:"severity,omitempty"`
	Images   []string `json:"images,omitempty"`
}

func (n *NewAlert) Normalize() {
	n.Message = strings.TrimSpace(n.Message)
	n.Location.Address = strings.TrimSpace(n.Location.Address)
	if n.Severity == "" {
		n.Severity = SeverityHigh
	}
}

func (n *NewAlert) Validate() error {
	switch {
	case n.Message == "":
		return apperr.Validation("message is required")
	case utf8.RuneCountInString(n.Message) > MaxMessageLen:
		return apperr.Validation("message must be at most %d characters", MaxMessageLen)
	case !n.Severity.Valid():
		return apperr.Validation("invalid severity %q", n.Severity)
	case len(n.Images) > MaxAlertImages:
		return apperr.Validation("maximum %d images allowed per alert", MaxAlertImages)
	}
	return n.Location.Validate()
}

// ReportPatch carries the fields an operator may change. Nil means
// unchanged.
type ReportPatch struct {
	Status           *ReportStatus `json:"status,omitempty"`
	Priority         *Priority     `json:"priority,omitempty"`
	AssignedWorkerID *string       `json:"assigned_worker_id,omitempty"`
}

func (p *ReportPatch) Empty() bool {
	return p.Status == nil && p.Priority == nil && p.AssignedWorkerID == nil
}

func (p *ReportPatch) Validate() error {
	if p.Status != nil && !p.Status.Valid() {
		return apperr.Validation("invalid status %q", *p.Status)
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return apperr.Validation("invalid priority %q", *p.Priority)
	}
	if p.AssignedWorkerID != nil && strings.TrimSpace(*p.AssignedWorkerID) == "" {
		return apperr.Validation("assigned_worker_id must not be empty")
	}
	return nil
}
