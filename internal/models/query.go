package models

import (
	"sanitrack/internal/apperr"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Pagination is a 1-based page request.
type Pagination struct {
	Page  int
	Limit int
}

// Normalize fills defaults and clamps the limit.
func (p *Pagination) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Page is one page of results with its totals.
type Page[T any] struct {
	Items []T   `json:"items"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

// NewPage builds a Page, computing pages = ceil(total/limit).
func NewPage[T any](items []T, p Pagination, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	var pages int64
	if p.Limit > 0 {
		pages = (total + int64(p.Limit) - 1) / int64(p.Limit)
	}
	return Page[T]{Items: items, Page: p.Page, Limit: p.Limit, Total: total, Pages: pages}
}

type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// ReportSortField names the columns reports may be sorted by.
type ReportSortField string

const (
	SortCreatedAt ReportSortField = "createdAt"
	SortUpdatedAt ReportSortField = "updatedAt"
	SortPriority  ReportSortField = "priority"
	SortStatus    ReportSortField = "status"
)

func (f ReportSortField) Valid() bool {
	switch f {
	case SortCreatedAt, SortUpdatedAt, SortPriority, SortStatus:
		return true
	}
	return false
}

// ReportQuery selects reports. When VisibleTo is set only reports owned
// by that account or filed anonymously match.
type ReportQuery struct {
	Status    ReportStatus
	Priority  Priority
	Category  Category
	OwnerID   string
	VisibleTo string
	SortBy    ReportSortField
	Order     SortOrder
	Pagination
}

func (q *ReportQuery) Normalize() error {
	q.Pagination.Normalize()
	if q.SortBy == "" {
		q.SortBy = SortCreatedAt
	}
	if q.Order == "" {
		q.Order = Desc
	}
	switch {
	case !q.SortBy.Valid():
		return apperr.Validation("invalid sort field %q", q.SortBy)
	case q.Order != Asc && q.Order != Desc:
		return apperr.Validation("invalid sort order %q", q.Order)
	case q.Status != "" && !q.Status.Valid():
		return apperr.Validation("invalid status %q", q.Status)
	case q.Priority != "" && !q.Priority.Valid():
		return apperr.Validation("invalid priority %q", q.Priority)
	case q.Category != "" && !q.Category.Valid():
		return apperr.Validation("invalid category %q", q.Category)
	}
	return nil
}

type AlertQuery struct {
	Status   AlertStatus
	Severity Severity
	Pagination
}

func (q *AlertQuery) Normalize() error {
	q.Pagination.Normalize()
	if q.Status != "" && !q.Status.Valid() {
		return apperr.Validation("invalid status %q", q.Status)
	}
	if q.Severity != "" && !q.Severity.Valid() {
		return apperr.Validation("invalid severity %q", q.Severity)
	}
	return nil
}

type WorkerQuery struct {
	Status WorkerStatus
	Zone   string
	Pagination
}

func (q *WorkerQuery) Normalize() error {
	q.Pagination.Normalize()
	if q.Status != "" && !q.Status.Valid() {
		return apperr.Validation("invalid status %q", q.Status)
	}
	return nil
}

// NearbyQuery is a radius search around a point.
type NearbyQuery struct {
	Lng          float64
	Lat          float64
	RadiusMeters float64
	Limit        int
}
