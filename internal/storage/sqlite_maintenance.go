package storage

import (
	"context"
	"fmt"
)

const maintenanceCols = `id, title, message, starts_at, ends_at, created_at`

func scanMaintenance(row scanner) (*MaintenanceWindow, error) {
	var mw MaintenanceWindow
	err := row.Scan(&mw.ID, &mw.Title, &mw.Message, &mw.StartsAt, &mw.EndsAt, &mw.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &mw, nil
}

func (s *SQLiteStore) CreateMaintenanceWindow(ctx context.Context, mw *MaintenanceWindow) error {
	tx, err := s.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO maintenance_windows (title, message, starts_at, ends_at, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		mw.Title, mw.Message, mw.StartsAt, mw.EndsAt, mw.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert maintenance window: %w", err)
	}
	mw.ID, err = res.LastInsertId()
	if err != nil {
		return err
	}

	for _, mid := range mw.MonitorIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO maintenance_monitors (maintenance_id, monitor_id) VALUES (?, ?)`,
			mw.ID, mid); err != nil {
			return fmt.Errorf("link maintenance monitor: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetMaintenanceWindow(ctx context.Context, id int64) (*MaintenanceWindow, error) {
	row := s.readDB.QueryRowContext(ctx,
		`SELECT `+maintenanceCols+` FROM maintenance_windows WHERE id = ?`, id)
	mw, err := scanMaintenance(row)
	if err != nil {
		return nil, notFound(err)
	}
	if err := s.attachMaintenanceMonitors(ctx, []*MaintenanceWindow{mw}); err != nil {
		return nil, err
	}
	return mw, nil
}

func (s *SQLiteStore) ListMaintenanceWindows(ctx context.Context) ([]*MaintenanceWindow, error) {
	return s.queryMaintenance(ctx,
		`SELECT `+maintenanceCols+` FROM maintenance_windows ORDER BY starts_at DESC`)
}

func (s *SQLiteStore) ListActiveMaintenanceWindows(ctx context.Context, now int64, limit int) ([]*MaintenanceWindow, error) {
	return s.queryMaintenance(ctx, `
		SELECT `+maintenanceCols+` FROM maintenance_windows
		WHERE starts_at <= ? AND ends_at > ?
		ORDER BY starts_at LIMIT ?`, now, now, limit)
}

func (s *SQLiteStore) ListUpcomingMaintenanceWindows(ctx context.Context, now int64, limit int) ([]*MaintenanceWindow, error) {
	return s.queryMaintenance(ctx, `
		SELECT `+maintenanceCols+` FROM maintenance_windows
		WHERE starts_at > ?
		ORDER BY starts_at LIMIT ?`, now, limit)
}

func (s *SQLiteStore) queryMaintenance(ctx context.Context, query string, args ...any) ([]*MaintenanceWindow, error) {
	rows, err := s.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query maintenance windows: %w", err)
	}
	defer rows.Close()

	var out []*MaintenanceWindow
	for rows.Next() {
		mw, err := scanMaintenance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, mw)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.attachMaintenanceMonitors(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) attachMaintenanceMonitors(ctx context.Context, mws []*MaintenanceWindow) error {
	byID := make(map[int64]*MaintenanceWindow, len(mws))
	for _, mw := range mws {
		mw.MonitorIDs = []int64{}
		byID[mw.ID] = mw
	}
	if len(mws) == 0 {
		return nil
	}

	rows, err := s.readDB.QueryContext(ctx,
		`SELECT maintenance_id, monitor_id FROM maintenance_monitors ORDER BY maintenance_id, monitor_id`)
	if err != nil {
		return fmt.Errorf("query maintenance monitors: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var mwID, monID int64
		if err := rows.Scan(&mwID, &monID); err != nil {
			return err
		}
		if mw, ok := byID[mwID]; ok {
			mw.MonitorIDs = append(mw.MonitorIDs, monID)
		}
	}
	return rows.Err()
}

func (s *SQLiteStore) UpdateMaintenanceWindow(ctx context.Context, mw *MaintenanceWindow) error {
	tx, err := s.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE maintenance_windows SET title = ?, message = ?, starts_at = ?, ends_at = ?
		WHERE id = ?`, mw.Title, mw.Message, mw.StartsAt, mw.EndsAt, mw.ID)
	if err != nil {
		return fmt.Errorf("update maintenance window: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM maintenance_monitors WHERE maintenance_id = ?`, mw.ID); err != nil {
		return fmt.Errorf("clear maintenance monitors: %w", err)
	}
	for _, mid := range mw.MonitorIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO maintenance_monitors (maintenance_id, monitor_id) VALUES (?, ?)`,
			mw.ID, mid); err != nil {
			return fmt.Errorf("link maintenance monitor: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) DeleteMaintenanceWindow(ctx context.Context, id int64) error {
	res, err := s.writeDB.ExecContext(ctx, `DELETE FROM maintenance_windows WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete maintenance window: %w", err)
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

// ActiveMaintenanceMonitorIDs returns the set of monitors inside a
// currently active window.
func (s *SQLiteStore) ActiveMaintenanceMonitorIDs(ctx context.Context, now int64) (map[int64]bool, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT DISTINCT mm.monitor_id
		FROM maintenance_monitors mm
		JOIN maintenance_windows mw ON mw.id = mm.maintenance_id
		WHERE mw.starts_at <= ? AND mw.ends_at > ?`, now, now)
	if err != nil {
		return nil, fmt.Errorf("query active maintenance: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}
