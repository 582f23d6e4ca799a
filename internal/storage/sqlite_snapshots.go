package storage

import (
	"context"
	"fmt"
)

func (s *SQLiteStore) GetSnapshot(ctx context.Context, key string) (*Snapshot, error) {
	var snap Snapshot
	var body string
	err := s.readDB.QueryRowContext(ctx, `
		SELECT key, generated_at, body_json, updated_at
		FROM public_snapshots WHERE key = ?`, key).
		Scan(&snap.Key, &snap.GeneratedAt, &body, &snap.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	snap.Body = []byte(body)
	return &snap, nil
}

func (s *SQLiteStore) PutSnapshot(ctx context.Context, snap *Snapshot) error {
	_, err := s.writeDB.ExecContext(ctx, `
		INSERT INTO public_snapshots (key, generated_at, body_json, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			generated_at = excluded.generated_at,
			body_json = excluded.body_json,
			updated_at = excluded.updated_at`,
		snap.Key, snap.GeneratedAt, string(snap.Body), snap.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put snapshot %q: %w", snap.Key, err)
	}
	return nil
}
