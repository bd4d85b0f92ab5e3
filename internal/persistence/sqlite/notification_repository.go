package sqlite

import (
	"context"
	"time"

	"github.com/example/transport-scheduler/internal/persistence"
)

// NotificationRepository implements persistence.NotificationRepository on SQLite.
type NotificationRepository struct {
	db *DB
}

// NewNotificationRepository returns a repository bound to the given connection.
func NewNotificationRepository(db *DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

const notificationColumns = `id, user_id, type, title, body, created_at, dismissed_at`

// AppendNotification inserts a new notification record. Records are
// append-only; repeated push attempts for the same trip each add a row.
func (r *NotificationRepository) AppendNotification(ctx context.Context, notification persistence.Notification) error {
	_, err := r.db.db.ExecContext(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		notification.ID, notification.UserID, notification.Type,
		notification.Title, notification.Body,
		formatTime(notification.CreatedAt), nullTime(notification.DismissedAt))
	return mapError(err)
}

// GetNotification loads one of the user's notifications.
func (r *NotificationRepository) GetNotification(ctx context.Context, userID, id string) (persistence.Notification, error) {
	row := r.db.db.QueryRowContext(ctx, `
		SELECT `+notificationColumns+` FROM notifications WHERE user_id = ? AND id = ?`, userID, id)
	return scanNotification(row)
}

// ListNotifications returns the user's notifications, newest first.
func (r *NotificationRepository) ListNotifications(ctx context.Context, userID string) ([]persistence.Notification, error) {
	rows, err := r.db.db.QueryContext(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var notifications []persistence.Notification
	for rows.Next() {
		notification, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, notification)
	}
	return notifications, rows.Err()
}

// DismissNotifications stamps every undismissed notification for the user.
func (r *NotificationRepository) DismissNotifications(ctx context.Context, userID string, dismissedAt time.Time) error {
	_, err := r.db.db.ExecContext(ctx, `
		UPDATE notifications SET dismissed_at = ?
		WHERE user_id = ? AND dismissed_at IS NULL`,
		formatTime(dismissedAt), userID)
	return mapError(err)
}

func scanNotification(row rowScanner) (persistence.Notification, error) {
	var (
		notification persistence.Notification
		createdAt    string
		dismissedAt  = nullString("")
	)
	err := row.Scan(&notification.ID, &notification.UserID, &notification.Type,
		&notification.Title, &notification.Body, &createdAt, &dismissedAt)
	if err != nil {
		return persistence.Notification{}, mapError(err)
	}
	if notification.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Notification{}, err
	}
	if notification.DismissedAt, err = scanTime(dismissedAt); err != nil {
		return persistence.Notification{}, err
	}
	return notification, nil
}

// DeviceTokenRepository implements persistence.DeviceTokenRepository on SQLite.
type DeviceTokenRepository struct {
	db *DB
}

// NewDeviceTokenRepository returns a repository bound to the given connection.
func NewDeviceTokenRepository(db *DB) *DeviceTokenRepository {
	return &DeviceTokenRepository{db: db}
}

// RegisterToken stores a push target. Re-registering an existing token moves
// it to the given user, covering device handoffs between accounts.
func (r *DeviceTokenRepository) RegisterToken(ctx context.Context, token persistence.DeviceToken) error {
	_, err := r.db.db.ExecContext(ctx, `
		INSERT INTO device_tokens (token, user_id, platform, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(token) DO UPDATE SET
			user_id = excluded.user_id,
			platform = excluded.platform`,
		token.Token, token.UserID, token.Platform, formatTime(token.CreatedAt))
	return mapError(err)
}

// ListTokens returns every registered push target for the user.
func (r *DeviceTokenRepository) ListTokens(ctx context.Context, userID string) ([]persistence.DeviceToken, error) {
	rows, err := r.db.db.QueryContext(ctx, `
		SELECT token, user_id, platform, created_at
		FROM device_tokens WHERE user_id = ? ORDER BY created_at, token`, userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var tokens []persistence.DeviceToken
	for rows.Next() {
		var (
			token     persistence.DeviceToken
			createdAt string
		)
		if err := rows.Scan(&token.Token, &token.UserID, &token.Platform, &createdAt); err != nil {
			return nil, err
		}
		if token.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

// DeleteToken removes a push target. Missing tokens are not an error so the
// fan-out worker can prune without checking first.
func (r *DeviceTokenRepository) DeleteToken(ctx context.Context, userID, token string) error {
	_, err := r.db.db.ExecContext(ctx, `
		DELETE FROM device_tokens WHERE user_id = ? AND token = ?`, userID, token)
	return mapError(err)
}
