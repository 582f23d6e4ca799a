package storage

import (
	"context"
	"database/sql"
	"fmt"
)

const outageCols = `id, monitor_id, started_at, ended_at, initial_error, last_error`

func scanOutage(row scanner) (*Outage, error) {
	var o Outage
	var ended sql.NullInt64
	err := row.Scan(&o.ID, &o.MonitorID, &o.StartedAt, &ended, &o.InitialError, &o.LastError)
	if err != nil {
		return nil, err
	}
	o.EndedAt = int64Ptr(ended)
	return &o, nil
}

func (s *SQLiteStore) queryOutages(ctx context.Context, query string, args ...any) ([]*Outage, error) {
	rows, err := s.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query outages: %w", err)
	}
	defer rows.Close()

	var out []*Outage
	for rows.Next() {
		o, err := scanOutage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ListOutagesOverlapping returns outages intersecting [from, to). An
// ongoing outage overlaps any range that extends past its start.
func (s *SQLiteStore) ListOutagesOverlapping(ctx context.Context, monitorID, from, to int64) ([]*Outage, error) {
	return s.queryOutages(ctx, `
		SELECT `+outageCols+` FROM outages
		WHERE monitor_id = ? AND started_at < ? AND (ended_at IS NULL OR ended_at > ?)
		ORDER BY started_at`, monitorID, to, from)
}

func (s *SQLiteStore) ListAllOutagesOverlapping(ctx context.Context, from, to int64) (map[int64][]*Outage, error) {
	list, err := s.queryOutages(ctx, `
		SELECT `+outageCols+` FROM outages
		WHERE started_at < ? AND (ended_at IS NULL OR ended_at > ?)
		ORDER BY monitor_id, started_at`, to, from)
	if err != nil {
		return nil, err
	}
	out := make(map[int64][]*Outage)
	for _, o := range list {
		out[o.MonitorID] = append(out[o.MonitorID], o)
	}
	return out, nil
}

func (s *SQLiteStore) CountOutagesStarted(ctx context.Context, from, to int64) (int64, error) {
	var n int64
	err := s.readDB.QueryRowContext(ctx,
		`SELECT count(*) FROM outages WHERE started_at >= ? AND started_at < ?`, from, to).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count outages: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) ListOutagesResolvedIn(ctx context.Context, from, to int64) ([]*Outage, error) {
	return s.queryOutages(ctx, `
		SELECT `+outageCols+` FROM outages
		WHERE ended_at IS NOT NULL AND ended_at >= ? AND ended_at < ?
		ORDER BY ended_at DESC`, from, to)
}

// ListMonitorOutagesPage returns one keyset page of a monitor's outage
// history, newest first. beforeID zero means the first page.
func (s *SQLiteStore) ListMonitorOutagesPage(ctx context.Context, monitorID, from, to, beforeID int64, limit int) ([]*Outage, error) {
	if beforeID <= 0 {
		return s.queryOutages(ctx, `
			SELECT `+outageCols+` FROM outages
			WHERE monitor_id = ? AND started_at < ? AND (ended_at IS NULL OR ended_at > ?)
			ORDER BY id DESC LIMIT ?`, monitorID, to, from, limit)
	}
	return s.queryOutages(ctx, `
		SELECT `+outageCols+` FROM outages
		WHERE monitor_id = ? AND started_at < ? AND (ended_at IS NULL OR ended_at > ?) AND id < ?
		ORDER BY id DESC LIMIT ?`, monitorID, to, from, beforeID, limit)
}
