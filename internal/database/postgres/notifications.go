package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/facewatch/facewatch/internal/database"
)

// NotificationRepository provides PostgreSQL-backed notification storage.
type NotificationRepository struct {
	pool *Pool
}

// NewNotificationRepository creates a new PostgreSQL notification repository.
func NewNotificationRepository(pool *Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// Create inserts a new notification.
func (r *NotificationRepository) Create(ctx context.Context, n *database.Notification) error {
	createdAt := n.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	if _, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (id, subject_id, event_time, notification_type, message, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, n.ID, n.SubjectID, n.EventTime, n.Type, n.Message, n.Status, createdAt,
	); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ExistsSince reports whether a notification of the given type exists for the
// subject with event_time at or after the cutoff.
func (r *NotificationRepository) ExistsSince(ctx context.Context, subjectID int64, notificationType string, cutoff time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM notifications
			WHERE subject_id = $1 AND notification_type = $2 AND event_time >= $3
		)
	`, subjectID, notificationType, cutoff).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check notification exists: %w", err)
	}
	return exists, nil
}

// ListByStatus returns all notifications in the given state, oldest first.
func (r *NotificationRepository) ListByStatus(ctx context.Context, status database.NotificationStatus) ([]database.Notification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, subject_id, event_time, notification_type, message, status, last_attempt_at, created_at
		FROM notifications
		WHERE status = $1
		ORDER BY event_time
	`, status)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []database.Notification
	for rows.Next() {
		var n database.Notification
		if err := rows.Scan(&n.ID, &n.SubjectID, &n.EventTime, &n.Type,
			&n.Message, &n.Status, &n.LastAttemptAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

// UpdateStatus moves a notification to a terminal state and stamps the last
// attempt time.
func (r *NotificationRepository) UpdateStatus(ctx context.Context, id string, status database.NotificationStatus, attemptedAt time.Time) error {
	if _, err := r.pool.Exec(ctx,
		"UPDATE notifications SET status = $1, last_attempt_at = $2 WHERE id = $3",
		status, attemptedAt, id,
	); err != nil {
		return fmt.Errorf("update notification status: %w", err)
	}
	return nil
}
