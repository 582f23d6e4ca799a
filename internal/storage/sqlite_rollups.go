package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

const rollupCols = `monitor_id, day_start_at, total_sec, downtime_sec, unknown_sec, uptime_sec,
	checks_total, checks_up, checks_down, checks_unknown, checks_maintenance,
	avg_latency_ms, p50_latency_ms, p95_latency_ms, latency_histogram_json`

func scanRollup(row scanner) (*DailyRollup, error) {
	var r DailyRollup
	var avg, p50, p95 sql.NullInt64
	var histJSON string
	err := row.Scan(&r.MonitorID, &r.DayStartAt, &r.TotalSec, &r.DowntimeSec, &r.UnknownSec,
		&r.UptimeSec, &r.ChecksTotal, &r.ChecksUp, &r.ChecksDown, &r.ChecksUnknown,
		&r.ChecksMaintenance, &avg, &p50, &p95, &histJSON)
	if err != nil {
		return nil, err
	}
	r.AvgLatencyMs = int64Ptr(avg)
	r.P50LatencyMs = int64Ptr(p50)
	r.P95LatencyMs = int64Ptr(p95)
	if err := json.Unmarshal([]byte(histJSON), &r.LatencyHistogram); err != nil {
		return nil, fmt.Errorf("rollup histogram: %w", err)
	}
	return &r, nil
}

// UpsertRollups writes a batch in one transaction. Re-running a rollup
// for the same day replaces the rows.
func (s *SQLiteStore) UpsertRollups(ctx context.Context, rows []*DailyRollup) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO monitor_daily_rollups (`+rollupCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(monitor_id, day_start_at) DO UPDATE SET
			total_sec = excluded.total_sec,
			downtime_sec = excluded.downtime_sec,
			unknown_sec = excluded.unknown_sec,
			uptime_sec = excluded.uptime_sec,
			checks_total = excluded.checks_total,
			checks_up = excluded.checks_up,
			checks_down = excluded.checks_down,
			checks_unknown = excluded.checks_unknown,
			checks_maintenance = excluded.checks_maintenance,
			avg_latency_ms = excluded.avg_latency_ms,
			p50_latency_ms = excluded.p50_latency_ms,
			p95_latency_ms = excluded.p95_latency_ms,
			latency_histogram_json = excluded.latency_histogram_json`)
	if err != nil {
		return fmt.Errorf("prepare rollup upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		hist := r.LatencyHistogram
		if hist == nil {
			hist = []int64{}
		}
		_, err := stmt.ExecContext(ctx, r.MonitorID, r.DayStartAt, r.TotalSec, r.DowntimeSec,
			r.UnknownSec, r.UptimeSec, r.ChecksTotal, r.ChecksUp, r.ChecksDown,
			r.ChecksUnknown, r.ChecksMaintenance, nullInt64(r.AvgLatencyMs),
			nullInt64(r.P50LatencyMs), nullInt64(r.P95LatencyMs), marshalJSON(hist))
		if err != nil {
			return fmt.Errorf("upsert rollup monitor %d day %d: %w", r.MonitorID, r.DayStartAt, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetRollup(ctx context.Context, monitorID, dayStart int64) (*DailyRollup, error) {
	row := s.readDB.QueryRowContext(ctx, `
		SELECT `+rollupCols+` FROM monitor_daily_rollups
		WHERE monitor_id = ? AND day_start_at = ?`, monitorID, dayStart)
	r, err := scanRollup(row)
	if err != nil {
		return nil, notFound(err)
	}
	return r, nil
}

// ListRollups returns a monitor's rollups for days in [fromDay, toDay).
func (s *SQLiteStore) ListRollups(ctx context.Context, monitorID, fromDay, toDay int64) ([]*DailyRollup, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT `+rollupCols+` FROM monitor_daily_rollups
		WHERE monitor_id = ? AND day_start_at >= ? AND day_start_at < ?
		ORDER BY day_start_at`, monitorID, fromDay, toDay)
	if err != nil {
		return nil, fmt.Errorf("query rollups: %w", err)
	}
	defer rows.Close()

	var out []*DailyRollup
	for rows.Next() {
		r, err := scanRollup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListAllRollups(ctx context.Context, fromDay, toDay int64) (map[int64][]*DailyRollup, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT `+rollupCols+` FROM monitor_daily_rollups
		WHERE day_start_at >= ? AND day_start_at < ?
		ORDER BY monitor_id, day_start_at`, fromDay, toDay)
	if err != nil {
		return nil, fmt.Errorf("query all rollups: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]*DailyRollup)
	for rows.Next() {
		r, err := scanRollup(rows)
		if err != nil {
			return nil, err
		}
		out[r.MonitorID] = append(out[r.MonitorID], r)
	}
	return out, rows.Err()
}
