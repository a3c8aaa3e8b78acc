package sqlite

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"sanitrack/internal/apperr"
	"sanitrack/internal/geo"
	"sanitrack/internal/models"
)

const alertColumns = `id, message, lng, lat, address, severity, status, images,
	reporter_account_id, resolved_at, created_at, updated_at`

func (s *Store) CreateAlert(ctx context.Context, a *models.EmergencyAlert) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO emergency_alerts (`+alertColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Message, a.Location.Lng, a.Location.Lat, a.Location.Address, string(a.Severity),
		string(a.Status), encodeList(a.Images), nullString(a.ReporterAccountID), nullTime(a.ResolvedAt),
		unixNano(a.CreatedAt), unixNano(a.UpdatedAt))
	return translate(err, "emergency alert")
}

func (s *Store) AlertByID(ctx context.Context, id string) (*models.EmergencyAlert, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM emergency_alerts WHERE id = ?`, id)
	return scanAlert(row)
}

func (s *Store) ResolveAlert(ctx context.Context, id string, at time.Time) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE emergency_alerts
		SET status = ?, resolved_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(models.AlertResolved), unixNano(at), unixNano(at), id, string(models.AlertActive))
	if err != nil {
		return translate(err, "emergency alert")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Wrap(err, "emergency alert")
	}
	if n > 0 {
		return nil
	}
	if _, err := s.AlertByID(ctx, id); err != nil {
		return err
	}
	return apperr.Conflictf("alert already resolved")
}

func (s *Store) DeleteAlert(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM emergency_alerts WHERE id = ?`, id)
	if err != nil {
		return translate(err, "emergency alert")
	}
	return mustAffect(res, "emergency alert")
}

func (s *Store) ListAlerts(ctx context.Context, q models.AlertQuery) ([]models.EmergencyAlert, int64, error) {
	var (
		where []string
		args  []any
	)
	if q.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(q.Status))
	}
	if q.Severity != "" {
		where = append(where, "severity = ?")
		args = append(args, string(q.Severity))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM emergency_alerts`+clause, args...).Scan(&total); err != nil {
		return nil, 0, translate(err, "emergency alert")
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT `+alertColumns+`
		FROM emergency_alerts`+clause+`
		ORDER BY CASE severity WHEN 'critical' THEN 3 WHEN 'high' THEN 2 ELSE 1 END DESC, created_at DESC, id
		LIMIT ? OFFSET ?
	`, append(args, q.Limit, q.Offset())...)
	if err != nil {
		return nil, 0, translate(err, "emergency alert")
	}
	defer rows.Close()

	alerts, err := collectAlerts(rows)
	if err != nil {
		return nil, 0, err
	}
	return alerts, total, nil
}

func (s *Store) NearbyActiveAlerts(ctx context.Context, q models.NearbyQuery) ([]models.EmergencyAlert, error) {
	box := geo.BoundingBox(q.Lng, q.Lat, q.RadiusMeters)
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+alertColumns+`
		FROM emergency_alerts
		WHERE status = 'active' AND lat BETWEEN ? AND ? AND lng BETWEEN ? AND ?
	`, box.MinLat, box.MaxLat, box.MinLng, box.MaxLng)
	if err != nil {
		return nil, translate(err, "emergency alert")
	}
	defer rows.Close()

	candidates, err := collectAlerts(rows)
	if err != nil {
		return nil, err
	}

	distances := make(map[string]float64, len(candidates))
	alerts := candidates[:0]
	for _, a := range candidates {
		d := geo.Distance(q.Lng, q.Lat, a.Location.Lng, a.Location.Lat)
		if d <= q.RadiusMeters {
			distances[a.ID] = d
			alerts = append(alerts, a)
		}
	}
	sort.SliceStable(alerts, func(i, j int) bool { return distances[alerts[i].ID] < distances[alerts[j].ID] })

	if q.Limit > 0 && len(alerts) > q.Limit {
		alerts = alerts[:q.Limit]
	}
	return alerts, nil
}

func scanAlert(row scanner) (*models.EmergencyAlert, error) {
	var (
		a                models.EmergencyAlert
		severity, status string
		images           string
		reporter         sql.NullString
		resolved         sql.NullInt64
		created, updated int64
	)
	err := row.Scan(&a.ID, &a.Message, &a.Location.Lng, &a.Location.Lat, &a.Location.Address,
		&severity, &status, &images, &reporter, &resolved, &created, &updated)
	if err != nil {
		return nil, translate(err, "emergency alert")
	}
	list, err := decodeList(images)
	if err != nil {
		return nil, apperr.Wrap(err, "decode alert images")
	}
	a.Severity = models.Severity(severity)
	a.Status = models.AlertStatus(status)
	a.Images = list
	a.ReporterAccountID = reporter.String
	a.ResolvedAt = timePtr(resolved)
	a.CreatedAt = fromUnixNano(created)
	a.UpdatedAt = fromUnixNano(updated)
	return &a, nil
}

func collectAlerts(rows *sql.Rows) ([]models.EmergencyAlert, error) {
	var alerts []models.EmergencyAlert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, "emergency alert")
	}
	return alerts, nil
}
