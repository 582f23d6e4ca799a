package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// ApplyCheck persists one completed check atomically: the check row,
// the refreshed state row, and the outage action. The outage open is
// guarded so replaying the same batch cannot create a second ongoing
// outage for the monitor.
func (s *SQLiteStore) ApplyCheck(ctx context.Context, b *CheckBatch) error {
	tx, err := s.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	c := &b.Check
	_, err = tx.ExecContext(ctx, `
		INSERT INTO check_results (monitor_id, checked_at, status, latency_ms, http_status, error, attempt, location)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL)`,
		c.MonitorID, c.CheckedAt, c.Status, nullInt64(c.LatencyMs), nullInt(c.HTTPStatus), c.Error, c.Attempt)
	if err != nil {
		return fmt.Errorf("insert check: %w", err)
	}

	st := &b.State
	_, err = tx.ExecContext(ctx, `
		INSERT INTO monitor_states (monitor_id, status, last_checked_at, last_changed_at,
			last_latency_ms, last_error, consecutive_failures, consecutive_successes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(monitor_id) DO UPDATE SET
			status = excluded.status,
			last_checked_at = excluded.last_checked_at,
			last_changed_at = excluded.last_changed_at,
			last_latency_ms = excluded.last_latency_ms,
			last_error = excluded.last_error,
			consecutive_failures = excluded.consecutive_failures,
			consecutive_successes = excluded.consecutive_successes`,
		st.MonitorID, st.Status, nullInt64(st.LastCheckedAt), nullInt64(st.LastChangedAt),
		nullInt64(st.LastLatencyMs), st.LastError, st.ConsecutiveFailures, st.ConsecutiveSuccesses)
	if err != nil {
		return fmt.Errorf("upsert state: %w", err)
	}

	switch b.Action {
	case OutageOpen:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO outages (monitor_id, started_at, initial_error, last_error)
			SELECT ?, ?, ?, ?
			WHERE NOT EXISTS (SELECT 1 FROM outages WHERE monitor_id = ? AND ended_at IS NULL)`,
			c.MonitorID, c.CheckedAt, c.Error, c.Error, c.MonitorID)
		if err != nil {
			return fmt.Errorf("open outage: %w", err)
		}
	case OutageClose:
		_, err = tx.ExecContext(ctx, `
			UPDATE outages SET ended_at = ? WHERE monitor_id = ? AND ended_at IS NULL`,
			c.CheckedAt, c.MonitorID)
		if err != nil {
			return fmt.Errorf("close outage: %w", err)
		}
	case OutageUpdate:
		_, err = tx.ExecContext(ctx, `
			UPDATE outages SET last_error = ? WHERE monitor_id = ? AND ended_at IS NULL`,
			c.Error, c.MonitorID)
		if err != nil {
			return fmt.Errorf("update outage: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) ListChecksInRange(ctx context.Context, monitorID, from, to int64) ([]*CheckResult, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT id, monitor_id, checked_at, status, latency_ms, http_status, error, attempt, location
		FROM check_results
		WHERE monitor_id = ? AND checked_at >= ? AND checked_at < ?
		ORDER BY checked_at`, monitorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query checks: %w", err)
	}
	defer rows.Close()

	var out []*CheckResult
	for rows.Next() {
		var c CheckResult
		var latency, httpStatus sql.NullInt64
		var loc sql.NullString
		err := rows.Scan(&c.ID, &c.MonitorID, &c.CheckedAt, &c.Status, &latency,
			&httpStatus, &c.Error, &c.Attempt, &loc)
		if err != nil {
			return nil, err
		}
		c.LatencyMs = int64Ptr(latency)
		c.HTTPStatus = intPtr(httpStatus)
		if loc.Valid {
			v := loc.String
			c.Location = &v
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// ListHeartbeats returns the most recent checks per monitor since the
// cutoff, up to limit each, oldest first.
func (s *SQLiteStore) ListHeartbeats(ctx context.Context, since int64, limit int) (map[int64][]Heartbeat, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT monitor_id, checked_at, status, latency_ms FROM (
			SELECT monitor_id, checked_at, status, latency_ms,
				ROW_NUMBER() OVER (PARTITION BY monitor_id ORDER BY checked_at DESC) AS rn
			FROM check_results
			WHERE checked_at >= ?
		) WHERE rn <= ?
		ORDER BY monitor_id, checked_at`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query heartbeats: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]Heartbeat)
	for rows.Next() {
		var monitorID int64
		var hb Heartbeat
		var latency sql.NullInt64
		if err := rows.Scan(&monitorID, &hb.CheckedAt, &hb.Status, &latency); err != nil {
			return nil, err
		}
		hb.LatencyMs = int64Ptr(latency)
		out[monitorID] = append(out[monitorID], hb)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) PurgeChecksBefore(ctx context.Context, ts int64) (int64, error) {
	res, err := s.writeDB.ExecContext(ctx, `DELETE FROM check_results WHERE checked_at < ?`, ts)
	if err != nil {
		return 0, fmt.Errorf("purge checks: %w", err)
	}
	return res.RowsAffected()
}
