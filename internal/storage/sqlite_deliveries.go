package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// InsertDeliveryPlaceholder claims an (event_key, channel_id) pair.
// Returns false when another tick already claimed it, which makes
// redelivery of the same transition a no-op.
func (s *SQLiteStore) InsertDeliveryPlaceholder(ctx context.Context, eventKey string, channelID, now int64) (bool, error) {
	res, err := s.writeDB.ExecContext(ctx, `
		INSERT OR IGNORE INTO notification_deliveries (event_key, channel_id, status, created_at)
		VALUES (?, ?, ?, ?)`, eventKey, channelID, DeliveryPending, now)
	if err != nil {
		return false, fmt.Errorf("insert delivery placeholder: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) FinalizeDelivery(ctx context.Context, eventKey string, channelID int64, status string, httpStatus *int, errMsg string) error {
	_, err := s.writeDB.ExecContext(ctx, `
		UPDATE notification_deliveries SET status = ?, http_status = ?, error = ?
		WHERE event_key = ? AND channel_id = ?`,
		status, nullInt(httpStatus), errMsg, eventKey, channelID)
	if err != nil {
		return fmt.Errorf("finalize delivery: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListDeliveries(ctx context.Context, eventKey string) ([]*NotificationDelivery, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT id, event_key, channel_id, status, http_status, error, created_at
		FROM notification_deliveries WHERE event_key = ? ORDER BY channel_id`, eventKey)
	if err != nil {
		return nil, fmt.Errorf("query deliveries: %w", err)
	}
	defer rows.Close()

	var out []*NotificationDelivery
	for rows.Next() {
		var d NotificationDelivery
		var httpStatus sql.NullInt64
		err := rows.Scan(&d.ID, &d.EventKey, &d.ChannelID, &d.Status, &httpStatus, &d.Error, &d.CreatedAt)
		if err != nil {
			return nil, err
		}
		d.HTTPStatus = intPtr(httpStatus)
		out = append(out, &d)
	}
	return out, rows.Err()
}
