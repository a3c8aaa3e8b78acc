package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"sanitrack/internal/apperr"
	"sanitrack/internal/models"
)

const workerColumns = `id, account_id, zone, level, jurisdiction, active_report_ids,
	completed_report_count, rating, status, created_at, updated_at`

func (s *Store) CreateWorker(ctx context.Context, w *models.Worker) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO workers (`+workerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, w.ID, w.AccountID, w.Zone, string(w.Level), w.Jurisdiction, encodeList(w.ActiveReportIDs),
		w.CompletedReportCount, w.Rating, string(w.Status), unixNano(w.CreatedAt), unixNano(w.UpdatedAt))
	return translate(err, "worker")
}

func (s *Store) WorkerByAccountID(ctx context.Context, accountID string) (*models.Worker, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+workerColumns+` FROM workers WHERE account_id = ?`, accountID)
	return scanWorker(row)
}

func (s *Store) UpdateWorker(ctx context.Context, w *models.Worker) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE workers
		SET zone = ?, level = ?, jurisdiction = ?, active_report_ids = ?, completed_report_count = ?,
		    rating = ?, status = ?, updated_at = ?
		WHERE id = ?
	`, w.Zone, string(w.Level), w.Jurisdiction, encodeList(w.ActiveReportIDs), w.CompletedReportCount,
		w.Rating, string(w.Status), unixNano(w.UpdatedAt), w.ID)
	if err != nil {
		return translate(err, "worker")
	}
	return mustAffect(res, "worker")
}

func (s *Store) SetWorkerStatus(ctx context.Context, accountID string, status models.WorkerStatus, at time.Time) error {
	res, err := s.q.ExecContext(ctx, `UPDATE workers SET status = ?, updated_at = ? WHERE account_id = ?`,
		string(status), unixNano(at), accountID)
	if err != nil {
		return translate(err, "worker")
	}
	return mustAffect(res, "worker")
}

func (s *Store) ListWorkers(ctx context.Context, q models.WorkerQuery) ([]models.Worker, int64, error) {
	var (
		where []string
		args  []any
	)
	if q.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(q.Status))
	}
	if q.Zone != "" {
		where = append(where, "zone = ?")
		args = append(args, q.Zone)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM workers`+clause, args...).Scan(&total); err != nil {
		return nil, 0, translate(err, "worker")
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT `+workerColumns+`
		FROM workers`+clause+`
		ORDER BY rating DESC, created_at, id
		LIMIT ? OFFSET ?
	`, append(args, q.Limit, q.Offset())...)
	if err != nil {
		return nil, 0, translate(err, "worker")
	}
	defer rows.Close()

	workers, err := collectWorkers(rows)
	if err != nil {
		return nil, 0, err
	}
	return workers, total, nil
}

func (s *Store) AvailableWorkers(ctx context.Context, limit int) ([]models.Worker, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+workerColumns+`
		FROM workers
		WHERE status = 'available'
		ORDER BY rowid
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, translate(err, "worker")
	}
	defer rows.Close()
	return collectWorkers(rows)
}

func scanWorker(row scanner) (*models.Worker, error) {
	var (
		w                models.Worker
		level, status    string
		active           string
		created, updated int64
	)
	err := row.Scan(&w.ID, &w.AccountID, &w.Zone, &level, &w.Jurisdiction, &active,
		&w.CompletedReportCount, &w.Rating, &status, &created, &updated)
	if err != nil {
		return nil, translate(err, "worker")
	}
	list, err := decodeList(active)
	if err != nil {
		return nil, apperr.Wrap(err, "decode active reports")
	}
	w.Level = models.WorkerLevel(level)
	w.Status = models.WorkerStatus(status)
	w.ActiveReportIDs = list
	w.CreatedAt = fromUnixNano(created)
	w.UpdatedAt = fromUnixNano(updated)
	return &w, nil
}

func collectWorkers(rows *sql.Rows) ([]models.Worker, error) {
	var workers []models.Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		workers = append(workers, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, "worker")
	}
	return workers, nil
}
