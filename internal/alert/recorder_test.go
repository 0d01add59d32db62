package alert

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/facewatch/facewatch/internal/database"
	"github.com/facewatch/facewatch/internal/database/mock"
)

var recorderNow = time.Date(2025, 4, 29, 22, 20, 0, 0, time.UTC)

func newTestRecorder(matches *mock.MatchStore, notifications *mock.NotificationStore, window time.Duration) *Recorder {
	r := NewRecorder(matches, notifications, window, slog.New(slog.DiscardHandler))
	r.now = func() time.Time { return recorderNow }
	return r
}

func addMatch(t *testing.T, matches *mock.MatchStore, subjectID int64, name string, at time.Time) {
	t.Helper()
	camera := "CAM01"
	err := matches.Append(context.Background(), database.MatchEvent{
		CaptureTime: at,
		Frame:       "CAM01_frame.jpg",
		CameraID:    &camera,
		SubjectID:   &subjectID,
		SubjectName: name,
		Distance:    0.31,
	})
	if err != nil {
		t.Fatalf("append match: %v", err)
	}
}

func TestRecordNewCreatesNotification(t *testing.T) {
	matches := mock.NewMatchStore()
	notifications := mock.NewNotificationStore()
	addMatch(t, matches, 7, "Alice Novak", recorderNow.Add(-time.Minute))

	r := newTestRecorder(matches, notifications, 2*time.Minute)
	if err := r.RecordNew(context.Background()); err != nil {
		t.Fatalf("RecordNew failed: %v", err)
	}

	all := notifications.All()
	if len(all) != 1 {
		t.Fatalf("got %d notifications; want 1", len(all))
	}
	n := all[0]
	if n.SubjectID != 7 {
		t.Errorf("subject id = %d; want 7", n.SubjectID)
	}
	if n.Type != database.NotificationTypeMatch {
		t.Errorf("type = %q; want MATCH", n.Type)
	}
	if n.Status != database.StatusPending {
		t.Errorf("status = %q; want PENDING", n.Status)
	}
	if n.ID == "" {
		t.Error("notification id must be set")
	}
	if !n.EventTime.Equal(recorderNow) {
		t.Errorf("event time = %v; want recording time %v", n.EventTime, recorderNow)
	}
}

func TestRecordNewThrottlesWithinWindow(t *testing.T) {
	matches := mock.NewMatchStore()
	notifications := mock.NewNotificationStore()
	addMatch(t, matches, 7, "Alice Novak", recorderNow.Add(-time.Minute))

	r := newTestRecorder(matches, notifications, 2*time.Minute)
	for range 3 {
		if err := r.RecordNew(context.Background()); err != nil {
			t.Fatalf("RecordNew failed: %v", err)
		}
	}

	if got := len(notifications.All()); got != 1 {
		t.Errorf("got %d notifications after repeated runs; want 1", got)
	}
}

func TestRecordNewThrottlesAcrossLaggedRuns(t *testing.T) {
	matches := mock.NewMatchStore()
	notifications := mock.NewNotificationStore()

	// Two matches 100s apart, both inside the 2-minute window, with the
	// record job running late after each.
	t0 := recorderNow.Add(-5 * time.Minute)
	addMatch(t, matches, 7, "Alice Novak", t0)
	addMatch(t, matches, 7, "Alice Novak", t0.Add(100*time.Second))

	r := newTestRecorder(matches, notifications, 2*time.Minute)

	r.now = func() time.Time { return t0.Add(110 * time.Second) }
	if err := r.RecordNew(context.Background()); err != nil {
		t.Fatalf("RecordNew failed: %v", err)
	}
	r.now = func() time.Time { return t0.Add(125 * time.Second) }
	if err := r.RecordNew(context.Background()); err != nil {
		t.Fatalf("RecordNew failed: %v", err)
	}

	if got := len(notifications.All()); got != 1 {
		t.Errorf("got %d notifications across lagged runs; want 1", got)
	}
}

func TestRecordNewNotifiesAgainAfterWindowExpiry(t *testing.T) {
	matches := mock.NewMatchStore()
	notifications := mock.NewNotificationStore()

	// A previous notification outside the throttle window.
	if err := notifications.Create(context.Background(), &database.Notification{
		ID:        "old",
		SubjectID: 7,
		EventTime: recorderNow.Add(-10 * time.Minute),
		Type:      database.NotificationTypeMatch,
		Status:    database.StatusSent,
	}); err != nil {
		t.Fatal(err)
	}
	addMatch(t, matches, 7, "Alice Novak", recorderNow.Add(-time.Minute))

	r := newTestRecorder(matches, notifications, 2*time.Minute)
	if err := r.RecordNew(context.Background()); err != nil {
		t.Fatalf("RecordNew failed: %v", err)
	}

	if got := len(notifications.All()); got != 2 {
		t.Errorf("got %d notifications; want a second one after window expiry", got)
	}
}

func TestRecordNewIgnoresMatchesOutsideWindow(t *testing.T) {
	matches := mock.NewMatchStore()
	notifications := mock.NewNotificationStore()
	addMatch(t, matches, 7, "Alice Novak", recorderNow.Add(-time.Hour))

	r := newTestRecorder(matches, notifications, 2*time.Minute)
	if err := r.RecordNew(context.Background()); err != nil {
		t.Fatalf("RecordNew failed: %v", err)
	}

	if got := len(notifications.All()); got != 0 {
		t.Errorf("got %d notifications for an old match; want 0", got)
	}
}

func TestRecordNewOneNotificationPerSubject(t *testing.T) {
	matches := mock.NewMatchStore()
	notifications := mock.NewNotificationStore()
	// The same subject matched three times, a second subject once.
	for _, offset := range []time.Duration{-90 * time.Second, -60 * time.Second, -30 * time.Second} {
		addMatch(t, matches, 7, "Alice Novak", recorderNow.Add(offset))
	}
	addMatch(t, matches, 9, "Bob Kral", recorderNow.Add(-45*time.Second))

	r := newTestRecorder(matches, notifications, 2*time.Minute)
	if err := r.RecordNew(context.Background()); err != nil {
		t.Fatalf("RecordNew failed: %v", err)
	}

	all := notifications.All()
	if len(all) != 2 {
		t.Fatalf("got %d notifications; want one per subject", len(all))
	}
	seen := map[int64]bool{}
	for _, n := range all {
		seen[n.SubjectID] = true
	}
	if !seen[7] || !seen[9] {
		t.Errorf("subjects notified: %v; want 7 and 9", seen)
	}
}

func TestRecordNewMatchQueryErrorPropagates(t *testing.T) {
	matches := mock.NewMatchStore()
	matches.DistinctError = errors.New("database down")
	notifications := mock.NewNotificationStore()

	r := newTestRecorder(matches, notifications, 2*time.Minute)
	if err := r.RecordNew(context.Background()); err == nil {
		t.Fatal("expected error when match query fails")
	}
}

func TestRecordNewCreateErrorIsAbsorbed(t *testing.T) {
	matches := mock.NewMatchStore()
	notifications := mock.NewNotificationStore()
	notifications.CreateError = errors.New("insert failed")
	addMatch(t, matches, 7, "Alice Novak", recorderNow.Add(-time.Minute))

	r := newTestRecorder(matches, notifications, 2*time.Minute)
	if err := r.RecordNew(context.Background()); err != nil {
		t.Fatalf("RecordNew should absorb per-subject create failures, got %v", err)
	}
}

func TestMatchMessage(t *testing.T) {
	camera := "lobby"
	withCamera := &database.MatchEvent{
		SubjectName: "Alice Novak",
		CameraID:    &camera,
		CaptureTime: recorderNow,
		Distance:    0.312,
	}
	msg := matchMessage(withCamera)
	if want := "Alice Novak matched on camera lobby at 2025-04-29 22:20:00 (distance 0.312)"; msg != want {
		t.Errorf("message = %q; want %q", msg, want)
	}

	withCamera.CameraID = nil
	msg = matchMessage(withCamera)
	if want := "Alice Novak matched at 2025-04-29 22:20:00 (distance 0.312)"; msg != want {
		t.Errorf("message = %q; want %q", msg, want)
	}
}
