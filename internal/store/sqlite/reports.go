package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"sanitrack/internal/apperr"
	"sanitrack/internal/geo"
	"sanitrack/internal/models"
)

const reportColumns = `id, title, description, category, lng, lat, address, status, priority, images,
	owner_account_id, is_anonymous, assigned_worker_id, completed_at, created_at, updated_at`

func (s *Store) CreateReport(ctx context.Context, r *models.Report) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO reports (`+reportColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Title, r.Description, string(r.Category), r.Location.Lng, r.Location.Lat, r.Location.Address,
		string(r.Status), string(r.Priority), encodeList(r.Images), nullString(r.OwnerAccountID),
		boolInt(r.IsAnonymous), nullString(r.AssignedWorkerID), nullTime(r.CompletedAt),
		unixNano(r.CreatedAt), unixNano(r.UpdatedAt))
	return translate(err, "report")
}

func (s *Store) ReportByID(ctx context.Context, id string) (*models.Report, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id)
	return scanReport(row)
}

func (s *Store) UpdateReport(ctx context.Context, r *models.Report) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE reports
		SET title = ?, description = ?, category = ?, lng = ?, lat = ?, address = ?,
		    status = ?, priority = ?, images = ?, owner_account_id = ?, is_anonymous = ?,
		    assigned_worker_id = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`, r.Title, r.Description, string(r.Category), r.Location.Lng, r.Location.Lat, r.Location.Address,
		string(r.Status), string(r.Priority), encodeList(r.Images), nullString(r.OwnerAccountID),
		boolInt(r.IsAnonymous), nullString(r.AssignedWorkerID), nullTime(r.CompletedAt),
		unixNano(r.UpdatedAt), r.ID)
	if err != nil {
		return translate(err, "report")
	}
	return mustAffect(res, "report")
}

func (s *Store) DeleteReport(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return translate(err, "report")
	}
	return mustAffect(res, "report")
}

var reportSortColumns = map[models.ReportSortField]string{
	models.SortCreatedAt: "created_at",
	models.SortUpdatedAt: "updated_at",
	models.SortStatus:    "status",
	models.SortPriority: `CASE priority
		WHEN 'low' THEN 1 WHEN 'medium' THEN 2 WHEN 'high' THEN 3 WHEN 'emergency' THEN 4 END`,
}

func (s *Store) ListReports(ctx context.Context, q models.ReportQuery) ([]models.Report, int64, error) {
	var (
		where []string
		args  []any
	)
	if q.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(q.Status))
	}
	if q.Priority != "" {
		where = append(where, "priority = ?")
		args = append(args, string(q.Priority))
	}
	if q.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(q.Category))
	}
	if q.OwnerID != "" {
		where = append(where, "owner_account_id = ?")
		args = append(args, q.OwnerID)
	}
	if q.VisibleTo != "" {
		where = append(where, "(owner_account_id = ? OR is_anonymous = 1)")
		args = append(args, q.VisibleTo)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports`+clause, args...).Scan(&total); err != nil {
		return nil, 0, translate(err, "report")
	}

	col, ok := reportSortColumns[q.SortBy]
	if !ok {
		return nil, 0, apperr.Validation("invalid sort field %q", q.SortBy)
	}
	dir := "DESC"
	if q.Order == models.Asc {
		dir = "ASC"
	}
	query := fmt.Sprintf(`SELECT %s FROM reports%s ORDER BY %s %s, created_at DESC, id LIMIT ? OFFSET ?`,
		reportColumns, clause, col, dir)

	rows, err := s.q.QueryContext(ctx, query, append(args, q.Limit, q.Offset())...)
	if err != nil {
		return nil, 0, translate(err, "report")
	}
	defer rows.Close()

	reports, err := collectReports(rows)
	if err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

func (s *Store) NearbyReports(ctx context.Context, q models.NearbyQuery) ([]models.Report, error) {
	box := geo.BoundingBox(q.Lng, q.Lat, q.RadiusMeters)
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+reportColumns+`
		FROM reports
		WHERE lat BETWEEN ? AND ? AND lng BETWEEN ? AND ?
	`, box.MinLat, box.MaxLat, box.MinLng, box.MaxLng)
	if err != nil {
		return nil, translate(err, "report")
	}
	defer rows.Close()

	candidates, err := collectReports(rows)
	if err != nil {
		return nil, err
	}

	type hit struct {
		report   models.Report
		distance float64
	}
	hits := make([]hit, 0, len(candidates))
	for _, r := range candidates {
		d := geo.Distance(q.Lng, q.Lat, r.Location.Lng, r.Location.Lat)
		if d <= q.RadiusMeters {
			hits = append(hits, hit{report: r, distance: d})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].distance < hits[j].distance })

	if q.Limit > 0 && len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	reports := make([]models.Report, len(hits))
	for i, h := range hits {
		reports[i] = h.report
	}
	return reports, nil
}

func (s *Store) CompletedReportsByWorker(ctx context.Context, workerAccountID string) ([]models.Report, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+reportColumns+`
		FROM reports
		WHERE assigned_worker_id = ? AND status = 'completed'
		ORDER BY completed_at DESC
	`, workerAccountID)
	if err != nil {
		return nil, translate(err, "report")
	}
	defer rows.Close()
	return collectReports(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(row scanner) (*models.Report, error) {
	var (
		r                models.Report
		category, status string
		priority, images string
		owner, worker    sql.NullString
		anonymous        int
		completed        sql.NullInt64
		created, updated int64
	)
	err := row.Scan(&r.ID, &r.Title, &r.Description, &category, &r.Location.Lng, &r.Location.Lat,
		&r.Location.Address, &status, &priority, &images, &owner, &anonymous, &worker, &completed,
		&created, &updated)
	if err != nil {
		return nil, translate(err, "report")
	}

	list, err := decodeList(images)
	if err != nil {
		return nil, apperr.Wrap(err, "decode report images")
	}
	r.Category = models.Category(category)
	r.Status = models.ReportStatus(status)
	r.Priority = models.Priority(priority)
	r.Images = list
	r.OwnerAccountID = owner.String
	r.IsAnonymous = anonymous != 0
	r.AssignedWorkerID = worker.String
	r.CompletedAt = timePtr(completed)
	r.CreatedAt = fromUnixNano(created)
	r.UpdatedAt = fromUnixNano(updated)
	return &r, nil
}

func collectReports(rows *sql.Rows) ([]models.Report, error) {
	var reports []models.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, "report")
	}
	return reports, nil
}
