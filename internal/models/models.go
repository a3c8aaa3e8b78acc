// Package models holds the records shared by the credential authority,
// the incident state machine and the assignment engine.
package models

import (
	"time"
)

// Account is an identity. PasswordHash is never serialized.
type Account struct {
	ID           string    `json:"id" bson:"_id"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	DisplayName  string    `json:"name" bson:"display_name"`
	Role         Role      `json:"role" bson:"role"`
	Phone        string    `json:"phone,omitempty" bson:"phone,omitempty"`
	Verified     bool      `json:"verified" bson:"verified"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}

// Session backs a refresh token. Only the token's hash is stored.
type Session struct {
	ID               string    `json:"id" bson:"_id"`
	AccountID        string    `json:"account_id" bson:"account_id"`
	RefreshTokenHash string    `json:"-" bson:"refresh_token_hash"`
	ExpiresAt        time.Time `json:"expires_at" bson:"expires_at"`
	CreatedAt        time.Time `json:"created_at" bson:"created_at"`
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Location is a WGS84 point with a postal address.
type Location struct {
	Lng     float64 `json:"lng" bson:"lng"`
	Lat     float64 `json:"lat" bson:"lat"`
	Address string  `json:"address" bson:"address"`
}

type Report struct {
	ID               string       `json:"id" bson:"_id"`
	Title            string       `json:"title" bson:"title"`
	Description      string       `json:"description" bson:"description"`
	Category         Category     `json:"category" bson:"category"`
	Location         Location     `json:"location" bson:"location"`
	Status           ReportStatus `json:"status" bson:"status"`
	Priority         Priority     `json:"priority" bson:"priority"`
	Images           []string     `json:"images" bson:"images"`
	OwnerAccountID   string       `json:"owner_account_id,omitempty" bson:"owner_account_id,omitempty"`
	IsAnonymous      bool         `json:"is_anonymous" bson:"is_anonymous"`
	AssignedWorkerID string       `json:"assigned_worker_id,omitempty" bson:"assigned_worker_id,omitempty"`
	CompletedAt      *time.Time   `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	CreatedAt        time.Time    `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at" bson:"updated_at"`
}

type EmergencyAlert struct {
	ID                string      `json:"id" bson:"_id"`
	Message           string      `json:"message" bson:"message"`
	Location          Location    `json:"location" bson:"location"`
	Severity          Severity    `json:"severity" bson:"severity"`
	Status            AlertStatus `json:"status" bson:"status"`
	Images            []string    `json:"images" bson:"images"`
	ReporterAccountID string      `json:"reporter_account_id,omitempty" bson:"reporter_account_id,omitempty"`
	ResolvedAt        *time.Time  `json:"resolved_at,omitempty" bson:"resolved_at,omitempty"`
	CreatedAt         time.Time   `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at" bson:"updated_at"`
}

// Worker is the field profile paired one-to-one with a worker Account.
type Worker struct {
	ID                   string       `json:"id" bson:"_id"`
	AccountID            string       `json:"account_id" bson:"account_id"`
	Zone                 string       `json:"zone" bson:"zone"`
	Level                WorkerLevel  `json:"level" bson:"level"`
	Jurisdiction         string       `json:"jurisdiction,omitempty" bson:"jurisdiction,omitempty"`
	ActiveReportIDs      []string     `json:"active_report_ids" bson:"active_report_ids"`
	CompletedReportCount int          `json:"completed_report_count" bson:"completed_report_count"`
	Rating               float64      `json:"rating" bson:"rating"`
	Status               WorkerStatus `json:"status" bson:"status"`
	CreatedAt            time.Time    `json:"created_at" bson:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at" bson:"updated_at"`
}

// HasActive reports whether reportID is in the worker's active list.
func (w *Worker) HasActive(reportID string) bool {
	for _, id := range w.ActiveReportIDs {
		if id == reportID {
			return true
		}
	}
	return false
}

// AddActive appends reportID unless it is already present.
func (w *Worker) AddActive(reportID string) bool {
	if w.HasActive(reportID) {
		return false
	}
	w.ActiveReportIDs = append(w.ActiveReportIDs, reportID)
	return true
}

// RemoveActive drops every occurrence of reportID.
func (w *Worker) RemoveActive(reportID string) bool {
	kept := w.ActiveReportIDs[:0]
	removed := false
	for _, id := range w.ActiveReportIDs {
		if id == reportID {
			removed = true
			continue
		}
		kept = append(kept, id)
	}
	w.ActiveReportIDs = kept
	return removed
}

// Identity is the verified caller carried by an access token.
type Identity struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
}
