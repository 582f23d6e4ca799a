package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

const monitorCols = `id, name, type, target, interval_sec, timeout_ms, is_active,
	http_method, http_headers, http_body, expected_status,
	response_keyword, response_forbidden_keyword, created_at, updated_at`

func scanMonitor(row scanner) (*Monitor, error) {
	var m Monitor
	var method, headers, body, expected, keyword, forbidden sql.NullString
	err := row.Scan(&m.ID, &m.Name, &m.Type, &m.Target, &m.IntervalSec, &m.TimeoutMs,
		&m.IsActive, &method, &headers, &body, &expected, &keyword, &forbidden,
		&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.HTTPMethod = strOrEmpty(method)
	m.HTTPBody = strOrEmpty(body)
	m.ResponseKeyword = strOrEmpty(keyword)
	m.ResponseForbiddenKeyword = strOrEmpty(forbidden)
	if headers.Valid && headers.String != "" {
		if err := json.Unmarshal([]byte(headers.String), &m.HTTPHeaders); err != nil {
			return nil, fmt.Errorf("monitor %d headers: %w", m.ID, err)
		}
	}
	if expected.Valid && expected.String != "" {
		if err := json.Unmarshal([]byte(expected.String), &m.ExpectedStatus); err != nil {
			return nil, fmt.Errorf("monitor %d expected_status: %w", m.ID, err)
		}
	}
	return &m, nil
}

func monitorArgs(m *Monitor) []any {
	var headers, expected any
	if len(m.HTTPHeaders) > 0 {
		headers = marshalJSON(m.HTTPHeaders)
	}
	if len(m.ExpectedStatus) > 0 {
		expected = marshalJSON(m.ExpectedStatus)
	}
	return []any{m.Name, m.Type, m.Target, m.IntervalSec, m.TimeoutMs,
		boolToInt(m.IsActive), nullStr(m.HTTPMethod), headers, nullStr(m.HTTPBody),
		expected, nullStr(m.ResponseKeyword), nullStr(m.ResponseForbiddenKeyword)}
}

func (s *SQLiteStore) CreateMonitor(ctx context.Context, m *Monitor) error {
	args := append(monitorArgs(m), m.CreatedAt, m.UpdatedAt)
	res, err := s.writeDB.ExecContext(ctx, `
		INSERT INTO monitors (name, type, target, interval_sec, timeout_ms, is_active,
			http_method, http_headers, http_body, expected_status,
			response_keyword, response_forbidden_keyword, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return fmt.Errorf("insert monitor: %w", err)
	}
	m.ID, err = res.LastInsertId()
	return err
}

func (s *SQLiteStore) GetMonitor(ctx context.Context, id int64) (*Monitor, error) {
	row := s.readDB.QueryRowContext(ctx, `SELECT `+monitorCols+` FROM monitors WHERE id = ?`, id)
	m, err := scanMonitor(row)
	if err != nil {
		return nil, notFound(err)
	}
	return m, nil
}

func (s *SQLiteStore) ListMonitors(ctx context.Context) ([]*Monitor, error) {
	return s.queryMonitors(ctx, `SELECT `+monitorCols+` FROM monitors ORDER BY id`)
}

func (s *SQLiteStore) ListMonitorsCreatedBefore(ctx context.Context, ts int64) ([]*Monitor, error) {
	return s.queryMonitors(ctx, `SELECT `+monitorCols+` FROM monitors WHERE created_at < ? ORDER BY id`, ts)
}

func (s *SQLiteStore) queryMonitors(ctx context.Context, query string, args ...any) ([]*Monitor, error) {
	rows, err := s.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query monitors: %w", err)
	}
	defer rows.Close()

	var out []*Monitor
	for rows.Next() {
		m, err := scanMonitor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateMonitor(ctx context.Context, m *Monitor) error {
	args := append(monitorArgs(m), m.UpdatedAt, m.ID)
	res, err := s.writeDB.ExecContext(ctx, `
		UPDATE monitors SET name = ?, type = ?, target = ?, interval_sec = ?,
			timeout_ms = ?, is_active = ?, http_method = ?, http_headers = ?,
			http_body = ?, expected_status = ?, response_keyword = ?,
			response_forbidden_keyword = ?, updated_at = ?
		WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update monitor: %w", err)
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

func (s *SQLiteStore) DeleteMonitor(ctx context.Context, id int64) error {
	res, err := s.writeDB.ExecContext(ctx, `DELETE FROM monitors WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete monitor: %w", err)
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

const stateCols = `monitor_id, status, last_checked_at, last_changed_at,
	last_latency_ms, last_error, consecutive_failures, consecutive_successes`

func scanState(row scanner) (*MonitorState, error) {
	var st MonitorState
	var checked, changed, latency sql.NullInt64
	err := row.Scan(&st.MonitorID, &st.Status, &checked, &changed, &latency,
		&st.LastError, &st.ConsecutiveFailures, &st.ConsecutiveSuccesses)
	if err != nil {
		return nil, err
	}
	st.LastCheckedAt = int64Ptr(checked)
	st.LastChangedAt = int64Ptr(changed)
	st.LastLatencyMs = int64Ptr(latency)
	return &st, nil
}

func (s *SQLiteStore) GetMonitorState(ctx context.Context, monitorID int64) (*MonitorState, error) {
	row := s.readDB.QueryRowContext(ctx, `SELECT `+stateCols+` FROM monitor_states WHERE monitor_id = ?`, monitorID)
	st, err := scanState(row)
	if err != nil {
		return nil, notFound(err)
	}
	return st, nil
}

// SetMonitorPaused flips only the state row: a paused monitor stays
// active, keeps its place on the public page, and is skipped by due
// selection through its status. Unpausing resets to unknown; the next
// tick re-evaluates.
func (s *SQLiteStore) SetMonitorPaused(ctx context.Context, monitorID int64, paused bool, now int64) error {
	var one int
	err := s.readDB.QueryRowContext(ctx, `SELECT 1 FROM monitors WHERE id = ?`, monitorID).Scan(&one)
	if err != nil {
		return notFound(err)
	}

	status := StatusUnknown
	if paused {
		status = StatusPaused
	}
	_, err = s.writeDB.ExecContext(ctx, `
		INSERT INTO monitor_states (monitor_id, status, last_changed_at, consecutive_failures, consecutive_successes)
		VALUES (?, ?, ?, 0, 0)
		ON CONFLICT(monitor_id) DO UPDATE SET
			status = excluded.status,
			last_changed_at = excluded.last_changed_at,
			consecutive_failures = 0,
			consecutive_successes = 0`, monitorID, status, now)
	if err != nil {
		return fmt.Errorf("set paused: %w", err)
	}
	return nil
}

const monitorStateCols = `m.id, m.name, m.type, m.target, m.interval_sec, m.timeout_ms, m.is_active,
	m.http_method, m.http_headers, m.http_body, m.expected_status,
	m.response_keyword, m.response_forbidden_keyword, m.created_at, m.updated_at,
	s.monitor_id, s.status, s.last_checked_at, s.last_changed_at,
	s.last_latency_ms, s.last_error, s.consecutive_failures, s.consecutive_successes`

func (s *SQLiteStore) ListActiveMonitorsWithState(ctx context.Context) ([]*MonitorWithState, error) {
	return s.queryMonitorsWithState(ctx, `
		SELECT `+monitorStateCols+`
		FROM monitors m
		LEFT JOIN monitor_states s ON s.monitor_id = m.id
		WHERE m.is_active = 1
		ORDER BY m.id`)
}

// ListDueMonitors returns active monitors whose interval has elapsed
// since their last check, or that have never been checked.
func (s *SQLiteStore) ListDueMonitors(ctx context.Context, checkedAt int64) ([]*MonitorWithState, error) {
	return s.queryMonitorsWithState(ctx, `
		SELECT `+monitorStateCols+`
		FROM monitors m
		LEFT JOIN monitor_states s ON s.monitor_id = m.id
		WHERE m.is_active = 1
		  AND (s.status IS NULL OR s.status != 'paused')
		  AND (s.last_checked_at IS NULL OR s.last_checked_at + m.interval_sec <= ?)
		ORDER BY m.id`, checkedAt)
}

func (s *SQLiteStore) queryMonitorsWithState(ctx context.Context, query string, args ...any) ([]*MonitorWithState, error) {
	rows, err := s.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query monitors with state: %w", err)
	}
	defer rows.Close()

	var out []*MonitorWithState
	for rows.Next() {
		var m Monitor
		var method, headers, body, expected, keyword, forbidden sql.NullString
		var stID, checked, changed, latency, fails, succs sql.NullInt64
		var stStatus, stErr sql.NullString
		err := rows.Scan(&m.ID, &m.Name, &m.Type, &m.Target, &m.IntervalSec, &m.TimeoutMs,
			&m.IsActive, &method, &headers, &body, &expected, &keyword, &forbidden,
			&m.CreatedAt, &m.UpdatedAt,
			&stID, &stStatus, &checked, &changed, &latency, &stErr, &fails, &succs)
		if err != nil {
			return nil, err
		}
		m.HTTPMethod = strOrEmpty(method)
		m.HTTPBody = strOrEmpty(body)
		m.ResponseKeyword = strOrEmpty(keyword)
		m.ResponseForbiddenKeyword = strOrEmpty(forbidden)
		if headers.Valid && headers.String != "" {
			if err := json.Unmarshal([]byte(headers.String), &m.HTTPHeaders); err != nil {
				return nil, fmt.Errorf("monitor %d headers: %w", m.ID, err)
			}
		}
		if expected.Valid && expected.String != "" {
			if err := json.Unmarshal([]byte(expected.String), &m.ExpectedStatus); err != nil {
				return nil, fmt.Errorf("monitor %d expected_status: %w", m.ID, err)
			}
		}

		ms := &MonitorWithState{Monitor: m}
		if stID.Valid {
			ms.State = &MonitorState{
				MonitorID:            stID.Int64,
				Status:               CoerceStatus(strOrEmpty(stStatus)),
				LastCheckedAt:        int64Ptr(checked),
				LastChangedAt:        int64Ptr(changed),
				LastLatencyMs:        int64Ptr(latency),
				LastError:            strOrEmpty(stErr),
				ConsecutiveFailures:  int(fails.Int64),
				ConsecutiveSuccesses: int(succs.Int64),
			}
		}
		out = append(out, ms)
	}
	return out, rows.Err()
}
