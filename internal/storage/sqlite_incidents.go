package storage

import (
	"context"
	"database/sql"
	"fmt"
)

const incidentCols = `id, title, status, impact, message, started_at, resolved_at, created_at`

func scanIncident(row scanner) (*Incident, error) {
	var inc Incident
	var resolved sql.NullInt64
	err := row.Scan(&inc.ID, &inc.Title, &inc.Status, &inc.Impact, &inc.Message,
		&inc.StartedAt, &resolved, &inc.CreatedAt)
	if err != nil {
		return nil, err
	}
	inc.ResolvedAt = int64Ptr(resolved)
	return &inc, nil
}

func (s *SQLiteStore) CreateIncident(ctx context.Context, inc *Incident) error {
	tx, err := s.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO incidents (title, status, impact, message, started_at, resolved_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		inc.Title, inc.Status, inc.Impact, inc.Message, inc.StartedAt,
		nullInt64(inc.ResolvedAt), inc.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}
	inc.ID, err = res.LastInsertId()
	if err != nil {
		return err
	}

	for _, mid := range inc.MonitorIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO incident_monitors (incident_id, monitor_id) VALUES (?, ?)`,
			inc.ID, mid); err != nil {
			return fmt.Errorf("link incident monitor: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetIncident(ctx context.Context, id int64) (*Incident, error) {
	row := s.readDB.QueryRowContext(ctx, `SELECT `+incidentCols+` FROM incidents WHERE id = ?`, id)
	inc, err := scanIncident(row)
	if err != nil {
		return nil, notFound(err)
	}
	if err := s.attachIncidentDetails(ctx, []*Incident{inc}); err != nil {
		return nil, err
	}
	return inc, nil
}

// ListIncidents pages newest first, unresolved before resolved. The
// cursor is the last seen id; zero means the first page.
func (s *SQLiteStore) ListIncidents(ctx context.Context, resolvedOnly bool, cursor int64, limit int) ([]*Incident, error) {
	query := `SELECT ` + incidentCols + ` FROM incidents`
	var args []any
	var conds []string
	if resolvedOnly {
		conds = append(conds, `status = 'resolved'`)
	}
	if cursor > 0 {
		conds = append(conds, `id < ?`)
		args = append(args, cursor)
	}
	for i, c := range conds {
		if i == 0 {
			query += ` WHERE ` + c
		} else {
			query += ` AND ` + c
		}
	}
	query += ` ORDER BY (status = 'resolved') ASC, id DESC LIMIT ?`
	args = append(args, limit)

	list, err := s.queryIncidents(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if err := s.attachIncidentDetails(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *SQLiteStore) ListUnresolvedIncidents(ctx context.Context, limit int) ([]*Incident, error) {
	list, err := s.queryIncidents(ctx, `
		SELECT `+incidentCols+` FROM incidents
		WHERE status != 'resolved'
		ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	if err := s.attachIncidentDetails(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *SQLiteStore) queryIncidents(ctx context.Context, query string, args ...any) ([]*Incident, error) {
	rows, err := s.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query incidents: %w", err)
	}
	defer rows.Close()

	var out []*Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) attachIncidentDetails(ctx context.Context, incs []*Incident) error {
	byID := make(map[int64]*Incident, len(incs))
	for _, inc := range incs {
		inc.MonitorIDs = []int64{}
		byID[inc.ID] = inc
	}
	if len(incs) == 0 {
		return nil
	}

	// Two full-table passes keep this simple; incidents stay small.
	rows, err := s.readDB.QueryContext(ctx,
		`SELECT incident_id, monitor_id FROM incident_monitors ORDER BY incident_id, monitor_id`)
	if err != nil {
		return fmt.Errorf("query incident monitors: %w", err)
	}
	for rows.Next() {
		var incID, monID int64
		if err := rows.Scan(&incID, &monID); err != nil {
			rows.Close()
			return err
		}
		if inc, ok := byID[incID]; ok {
			inc.MonitorIDs = append(inc.MonitorIDs, monID)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = s.readDB.QueryContext(ctx, `
		SELECT id, incident_id, status, message, created_at
		FROM incident_updates ORDER BY incident_id, id`)
	if err != nil {
		return fmt.Errorf("query incident updates: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var u IncidentUpdate
		if err := rows.Scan(&u.ID, &u.IncidentID, &u.Status, &u.Message, &u.CreatedAt); err != nil {
			return err
		}
		if inc, ok := byID[u.IncidentID]; ok {
			inc.Updates = append(inc.Updates, u)
		}
	}
	return rows.Err()
}

// AddIncidentUpdate appends a progress note and, when the update
// carries a status, moves the incident to it.
func (s *SQLiteStore) AddIncidentUpdate(ctx context.Context, u *IncidentUpdate) error {
	tx, err := s.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT count(*) FROM incidents WHERE id = ?`, u.IncidentID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO incident_updates (incident_id, status, message, created_at)
		VALUES (?, ?, ?, ?)`, u.IncidentID, u.Status, u.Message, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert incident update: %w", err)
	}
	u.ID, err = res.LastInsertId()
	if err != nil {
		return err
	}

	if u.Status != "" {
		if u.Status == IncidentResolved {
			_, err = tx.ExecContext(ctx, `
				UPDATE incidents SET status = ?, resolved_at = COALESCE(resolved_at, ?)
				WHERE id = ?`, u.Status, u.CreatedAt, u.IncidentID)
		} else {
			_, err = tx.ExecContext(ctx, `
				UPDATE incidents SET status = ?, resolved_at = NULL WHERE id = ?`,
				u.Status, u.IncidentID)
		}
		if err != nil {
			return fmt.Errorf("move incident status: %w", err)
		}
	}

	return tx.Commit()
}

// ResolveIncident marks an incident resolved. Resolving an already
// resolved incident keeps the original resolved_at.
func (s *SQLiteStore) ResolveIncident(ctx context.Context, id, now int64) (int64, bool, error) {
	tx, err := s.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, err
	}
	defer tx.Rollback()

	var status string
	var resolved sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT status, resolved_at FROM incidents WHERE id = ?`, id).Scan(&status, &resolved)
	if err != nil {
		return 0, false, notFound(err)
	}

	if status == IncidentResolved && resolved.Valid {
		return resolved.Int64, true, nil
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE incidents SET status = 'resolved', resolved_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return 0, false, fmt.Errorf("resolve incident: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, false, err
	}
	return now, false, nil
}

func (s *SQLiteStore) DeleteIncident(ctx context.Context, id int64) error {
	res, err := s.writeDB.ExecContext(ctx, `DELETE FROM incidents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete incident: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
