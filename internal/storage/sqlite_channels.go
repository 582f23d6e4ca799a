package storage

import (
	"context"
	"encoding/json"
	"fmt"
)

const channelCols = `id, name, type, config_json, is_active, created_at`

func scanChannel(row scanner) (*NotificationChannel, error) {
	var ch NotificationChannel
	var configJSON string
	err := row.Scan(&ch.ID, &ch.Name, &ch.Type, &configJSON, &ch.IsActive, &ch.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(configJSON), &ch.Config); err != nil {
		return nil, fmt.Errorf("channel %d config: %w", ch.ID, err)
	}
	return &ch, nil
}

func (s *SQLiteStore) CreateNotificationChannel(ctx context.Context, ch *NotificationChannel) error {
	res, err := s.writeDB.ExecContext(ctx, `
		INSERT INTO notification_channels (name, type, config_json, is_active, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		ch.Name, ch.Type, marshalJSON(ch.Config), boolToInt(ch.IsActive), ch.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert channel: %w", err)
	}
	ch.ID, err = res.LastInsertId()
	return err
}

func (s *SQLiteStore) GetNotificationChannel(ctx context.Context, id int64) (*NotificationChannel, error) {
	row := s.readDB.QueryRowContext(ctx,
		`SELECT `+channelCols+` FROM notification_channels WHERE id = ?`, id)
	ch, err := scanChannel(row)
	if err != nil {
		return nil, notFound(err)
	}
	return ch, nil
}

func (s *SQLiteStore) ListNotificationChannels(ctx context.Context) ([]*NotificationChannel, error) {
	return s.queryChannels(ctx, `SELECT `+channelCols+` FROM notification_channels ORDER BY id`)
}

func (s *SQLiteStore) ListActiveChannels(ctx context.Context) ([]*NotificationChannel, error) {
	return s.queryChannels(ctx,
		`SELECT `+channelCols+` FROM notification_channels WHERE is_active = 1 ORDER BY id`)
}

func (s *SQLiteStore) queryChannels(ctx context.Context, query string, args ...any) ([]*NotificationChannel, error) {
	rows, err := s.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer rows.Close()

	var out []*NotificationChannel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateNotificationChannel(ctx context.Context, ch *NotificationChannel) error {
	res, err := s.writeDB.ExecContext(ctx, `
		UPDATE notification_channels SET name = ?, type = ?, config_json = ?, is_active = ?
		WHERE id = ?`,
		ch.Name, ch.Type, marshalJSON(ch.Config), boolToInt(ch.IsActive), ch.ID)
	if err != nil {
		return fmt.Errorf("update channel: %w", err)
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

func (s *SQLiteStore) DeleteNotificationChannel(ctx context.Context, id int64) error {
	res, err := s.writeDB.ExecContext(ctx, `DELETE FROM notification_channels WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete channel: %w", err)
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
