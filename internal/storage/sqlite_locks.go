package storage

import (
	"context"
	"fmt"
)

// AcquireLock takes the named lease until now+ttlSec. The conditional
// upsert only replaces an expired lease, so exactly one caller wins per
// TTL window even across processes sharing the database.
func (s *SQLiteStore) AcquireLock(ctx context.Context, name string, now, ttlSec int64) (bool, error) {
	res, err := s.writeDB.ExecContext(ctx, `
		INSERT INTO locks (name, expires_at) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET expires_at = excluded.expires_at
		WHERE locks.expires_at <= ?`, name, now+ttlSec, now)
	if err != nil {
		return false, fmt.Errorf("acquire lock %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
