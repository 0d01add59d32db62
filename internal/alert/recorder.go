// Package alert turns match events into notifications and drives them through
// the escalation call tree.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/facewatch/facewatch/internal/database"
)

// Recorder creates PENDING notifications for recently matched subjects,
// throttled to at most one MATCH notification per subject per window.
type Recorder struct {
	matches        database.MatchWriter
	notifications  database.NotificationStore
	throttleWindow time.Duration
	logger         *slog.Logger

	now func() time.Time
}

func NewRecorder(matches database.MatchWriter, notifications database.NotificationStore, throttleWindow time.Duration, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		matches:        matches,
		notifications:  notifications,
		throttleWindow: throttleWindow,
		logger:         logger,
		now:            time.Now,
	}
}

// RecordNew scans the match log for subjects seen inside the throttle window
// and creates one notification per subject that does not already have one.
// Running it twice in a row is a no-op.
func (r *Recorder) RecordNew(ctx context.Context) error {
	now := r.now()
	cutoff := now.Add(-r.throttleWindow)

	subjectIDs, err := r.matches.DistinctSubjectsSince(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to query recent matches: %w", err)
	}

	for _, subjectID := range subjectIDs {
		exists, err := r.notifications.ExistsSince(ctx, subjectID, database.NotificationTypeMatch, cutoff)
		if err != nil {
			r.logger.Error("throttle check failed", "subject_id", subjectID, "error", err)
			continue
		}
		if exists {
			continue
		}

		event, err := r.matches.LatestForSubject(ctx, subjectID)
		if err != nil {
			r.logger.Error("failed to load latest match", "subject_id", subjectID, "error", err)
			continue
		}
		if event == nil {
			continue
		}

		// EventTime is the recording time, not the capture time: the
		// throttle compares event_time against now - window, so a
		// back-dated notification would age out of the window early and
		// let a lagged job run notify the same subject twice.
		n := &database.Notification{
			ID:        uuid.NewString(),
			SubjectID: subjectID,
			EventTime: now,
			Type:      database.NotificationTypeMatch,
			Message:   matchMessage(event),
			Status:    database.StatusPending,
		}
		if err := r.notifications.Create(ctx, n); err != nil {
			r.logger.Error("failed to create notification", "subject_id", subjectID, "error", err)
			continue
		}
		r.logger.Info("notification recorded",
			"notification_id", n.ID, "subject", event.SubjectName, "event_time", n.EventTime)
	}
	return nil
}

// matchMessage renders the human-readable alert text for a match event.
func matchMessage(event *database.MatchEvent) string {
	when := event.CaptureTime.Format("2006-01-02 15:04:05")
	if event.CameraID != nil {
		return fmt.Sprintf("%s matched on camera %s at %s (distance %.3f)",
			event.SubjectName, *event.CameraID, when, event.Distance)
	}
	return fmt.Sprintf("%s matched at %s (distance %.3f)",
		event.SubjectName, when, event.Distance)
}
