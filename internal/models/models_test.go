package models

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sanitrack/internal/apperr"
)

func validReport() NewReport {
	return NewReport{
		Title:       "Overflowing bin",
		Description: "Bin on the corner has not been emptied for a week",
		Category:    CategoryGarbageOverflow,
		Location:    Location{Lng: -73.935242, Lat: 40.730610, Address: "Test Address"},
	}
}

func TestNewReportDefaults(t *testing.T) {
	n := validReport()
	n.Title = "  padded  "
	n.Normalize()
	assert.Equal(t, "padded", n.Title)
	assert.Equal(t, PriorityMedium, n.Priority)
	require.NoError(t, n.Validate())
}

func TestNewReportValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*NewReport)
	}{
		{"missing title", func(n *NewReport) { n.Title = "" }},
		{"missing description", func(n *NewReport) { n.Description = "" }},
		{"bad category", func(n *NewReport) { n.Category = "graffiti" }},
		{"bad priority", func(n *NewReport) { n.Priority = "urgent" }},
		{"longitude out of range", func(n *NewReport) { n.Location.Lng = 180.5 }},
		{"latitude out of range", func(n *NewReport) { n.Location.Lat = -90.1 }},
		{"longitude NaN", func(n *NewReport) { n.Location.Lng = math.NaN() }},
		{"latitude infinite", func(n *NewReport) { n.Location.Lat = math.Inf(1) }},
		{"title too long", func(n *NewReport) { n.Title = strings.Repeat("a", MaxTitleLen+1) }},
		{"missing address", func(n *NewReport) { n.Location.Address = "" }},
		{"too many images", func(n *NewReport) { n.Images = []string{"a", "b", "c", "d", "e", "f"} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n := validReport()
			n.Normalize()
			tc.mutate(&n)
			err := n.Validate()
			require.Error(t, err)
			assert.Equal(t, apperr.ValidationFailed, apperr.KindOf(err))
		})
	}
}

func TestFiveImagesAllowed(t *testing.T) {
	n := validReport()
	n.Normalize()
	n.Images = []string{"1", "2", "3", "4", "5"}
	assert.NoError(t, n.Validate())
}

func TestCoordinateBoundsInclusive(t *testing.T) {
	assert.NoError(t, ValidateCoordinates(-180, -90))
	assert.NoError(t, ValidateCoordinates(180, 90))
	assert.Error(t, ValidateCoordinates(181, 0))
}

func TestTextLimitsCountCharacters(t *testing.T) {
	n := validReport()
	n.Normalize()
	n.Title = strings.Repeat("é", MaxTitleLen)
	n.Description = strings.Repeat("नल", MaxDescriptionLn/2)
	assert.NoError(t, n.Validate())

	a := NewAlert{
		Message:  strings.Repeat("水", MaxMessageLen),
		Location: Location{Lng: 77.2, Lat: 28.6, Address: "Ring Road"},
	}
	a.Normalize()
	assert.NoError(t, a.Validate())

	a.Message += "水"
	assert.Equal(t, apperr.ValidationFailed, apperr.KindOf(a.Validate()))
}

func TestNewAlertDefaults(t *testing.T) {
	n := NewAlert{Message: " fire at depot ", Location: Location{Lng: 1, Lat: 1, Address: "Depot"}}
	n.Normalize()
	assert.Equal(t, SeverityHigh, n.Severity)
	assert.Equal(t, "fire at depot", n.Message)
	require.NoError(t, n.Validate())

	n.Images = []string{"a", "b", "c", "d"}
	assert.Error(t, n.Validate())
}

func TestNewPage(t *testing.T) {
	p := Pagination{Page: 2, Limit: 20}
	page := NewPage([]int{1, 2}, p, 41)
	assert.Equal(t, int64(3), page.Pages)
	assert.Equal(t, 2, page.Page)

	empty := NewPage[int](nil, Pagination{Page: 1, Limit: 20}, 0)
	assert.NotNil(t, empty.Items)
	assert.Equal(t, int64(0), empty.Pages)
}

func TestPaginationNormalize(t *testing.T) {
	p := Pagination{Page: 0, Limit: 1000}
	p.Normalize()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, MaxPageLimit, p.Limit)
	assert.Equal(t, 0, p.Offset())
}

func TestWorkerActiveSet(t *testing.T) {
	w := &Worker{}
	assert.True(t, w.AddActive("r1"))
	assert.False(t, w.AddActive("r1"))
	assert.True(t, w.AddActive("r2"))
	assert.Equal(t, []string{"r1", "r2"}, w.ActiveReportIDs)
	assert.True(t, w.RemoveActive("r1"))
	assert.False(t, w.RemoveActive("r1"))
	assert.Equal(t, []string{"r2"}, w.ActiveReportIDs)
}

func TestLevelRank(t *testing.T) {
	assert.Less(t, LevelLocal.Rank(), LevelState.Rank())
	assert.Less(t, LevelState.Rank(), LevelNational.Rank())
}

func TestReportQueryNormalize(t *testing.T) {
	q := ReportQuery{}
	require.NoError(t, q.Normalize())
	assert.Equal(t, SortCreatedAt, q.SortBy)
	assert.Equal(t, Desc, q.Order)

	bad := ReportQuery{SortBy: "password_hash"}
	assert.Error(t, bad.Normalize())
}
