package database

import (
	"context"
	"time"
)

// SubjectReader provides read access to the subject gallery.
type SubjectReader interface {
	// GetAllWithImagery returns every subject that has a reference photo.
	GetAllWithImagery(ctx context.Context) ([]Subject, error)
}

// SubjectWriter extends SubjectReader with embedding cache maintenance.
type SubjectWriter interface {
	SubjectReader

	// SaveRefEmbedding stores the cached reference embedding for a subject.
	SaveRefEmbedding(ctx context.Context, subjectID int64, embedding []float32) error
}

// MatchWriter provides append and query access to the match log.
type MatchWriter interface {
	// Append writes one match event. The log is append-only.
	Append(ctx context.Context, event MatchEvent) error

	// DistinctSubjectsSince returns the distinct subject IDs that matched at
	// or after the cutoff time.
	DistinctSubjectsSince(ctx context.Context, cutoff time.Time) ([]int64, error)

	// LatestForSubject returns the most recent match event for a subject,
	// or nil if the subject never matched.
	LatestForSubject(ctx context.Context, subjectID int64) (*MatchEvent, error)
}

// NotificationStore provides lifecycle access to notifications.
type NotificationStore interface {
	// Create inserts a new notification.
	Create(ctx context.Context, n *Notification) error

	// ExistsSince reports whether a notification of the given type exists for
	// the subject with event_time at or after the cutoff.
	ExistsSince(ctx context.Context, subjectID int64, notificationType string, cutoff time.Time) (bool, error)

	// ListByStatus returns all notifications in the given state, oldest first.
	ListByStatus(ctx context.Context, status NotificationStatus) ([]Notification, error)

	// UpdateStatus moves a notification to a terminal state and stamps the
	// last attempt time.
	UpdateStatus(ctx context.Context, id string, status NotificationStatus, attemptedAt time.Time) error
}

// RecipientReader provides read access to the call-tree recipients.
type RecipientReader interface {
	// ActiveByChannel returns active recipients opted into the channel,
	// ordered by ascending channel priority, then by ID.
	ActiveByChannel(ctx context.Context, ch Channel) ([]Recipient, error)
}

// DeliveryWriter appends per-recipient delivery outcomes.
type DeliveryWriter interface {
	// Record appends one delivery outcome row.
	Record(ctx context.Context, rec DeliveryRecord) error
}
