// Package mock provides in-memory implementations of the database interfaces
// for testing.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/facewatch/facewatch/internal/database"
)

// SubjectStore is an in-memory implementation of database.SubjectWriter.
type SubjectStore struct {
	mu       sync.RWMutex
	subjects []database.Subject

	// Error injection
	GetAllError  error
	SaveRefError error
}

// NewSubjectStore creates an empty subject store.
func NewSubjectStore() *SubjectStore {
	return &SubjectStore{}
}

// Add inserts a subject into the mock store.
func (s *SubjectStore) Add(sub database.Subject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjects = append(s.subjects, sub)
}

// GetAllWithImagery returns every subject that has a reference photo.
func (s *SubjectStore) GetAllWithImagery(ctx context.Context) ([]database.Subject, error) {
	if s.GetAllError != nil {
		return nil, s.GetAllError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []database.Subject
	for _, sub := range s.subjects {
		if len(sub.Image) > 0 {
			out = append(out, sub)
		}
	}
	return out, nil
}

// SaveRefEmbedding stores the cached reference embedding for a subject.
func (s *SubjectStore) SaveRefEmbedding(ctx context.Context, subjectID int64, embedding []float32) error {
	if s.SaveRefError != nil {
		return s.SaveRefError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.subjects {
		if s.subjects[i].ID == subjectID {
			s.subjects[i].RefEmbedding = embedding
		}
	}
	return nil
}

// MatchStore is an in-memory implementation of database.MatchWriter.
type MatchStore struct {
	mu     sync.RWMutex
	events []database.MatchEvent
	nextID int64

	// Error injection
	AppendError   error
	DistinctError error
	LatestError   error
}

// NewMatchStore creates an empty match store.
func NewMatchStore() *MatchStore {
	return &MatchStore{nextID: 1}
}

// Events returns a copy of all appended events.
func (s *MatchStore) Events() []database.MatchEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]database.MatchEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Append writes one match event.
func (s *MatchStore) Append(ctx context.Context, event database.MatchEvent) error {
	if s.AppendError != nil {
		return s.AppendError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	event.ID = s.nextID
	s.nextID++
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	s.events = append(s.events, event)
	return nil
}

// DistinctSubjectsSince returns the distinct subject IDs that matched at or
// after the cutoff time.
func (s *MatchStore) DistinctSubjectsSince(ctx context.Context, cutoff time.Time) ([]int64, error) {
	if s.DistinctError != nil {
		return nil, s.DistinctError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[int64]struct{})
	var ids []int64
	for _, ev := range s.events {
		if ev.SubjectID == nil || ev.CaptureTime.Before(cutoff) {
			continue
		}
		if _, ok := seen[*ev.SubjectID]; ok {
			continue
		}
		seen[*ev.SubjectID] = struct{}{}
		ids = append(ids, *ev.SubjectID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// LatestForSubject returns the most recent match event for a subject.
func (s *MatchStore) LatestForSubject(ctx context.Context, subjectID int64) (*database.MatchEvent, error) {
	if s.LatestError != nil {
		return nil, s.LatestError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *database.MatchEvent
	for i := range s.events {
		ev := s.events[i]
		if ev.SubjectID == nil || *ev.SubjectID != subjectID {
			continue
		}
		if latest == nil || ev.CaptureTime.After(latest.CaptureTime) {
			latest = &ev
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

// NotificationStore is an in-memory implementation of
// database.NotificationStore.
type NotificationStore struct {
	mu            sync.RWMutex
	notifications []database.Notification

	// Error injection
	CreateError error
	ExistsError error
	ListError   error
	UpdateError error
}

// NewNotificationStore creates an empty notification store.
func NewNotificationStore() *NotificationStore {
	return &NotificationStore{}
}

// All returns a copy of every stored notification.
func (s *NotificationStore) All() []database.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]database.Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}

// Create inserts a new notification.
func (s *NotificationStore) Create(ctx context.Context, n *database.Notification) error {
	if s.CreateError != nil {
		return s.CreateError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	s.notifications = append(s.notifications, *n)
	return nil
}

// ExistsSince reports whether a notification of the given type exists for the
// subject with event_time at or after the cutoff.
func (s *NotificationStore) ExistsSince(ctx context.Context, subjectID int64, notificationType string, cutoff time.Time) (bool, error) {
	if s.ExistsError != nil {
		return false, s.ExistsError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.notifications {
		if n.SubjectID == subjectID && n.Type == notificationType && !n.EventTime.Before(cutoff) {
			return true, nil
		}
	}
	return false, nil
}

// ListByStatus returns all notifications in the given state, oldest first.
func (s *NotificationStore) ListByStatus(ctx context.Context, status database.NotificationStatus) ([]database.Notification, error) {
	if s.ListError != nil {
		return nil, s.ListError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []database.Notification
	for _, n := range s.notifications {
		if n.Status == status {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventTime.Before(out[j].EventTime) })
	return out, nil
}

// UpdateStatus moves a notification to a terminal state.
func (s *NotificationStore) UpdateStatus(ctx context.Context, id string, status database.NotificationStatus, attemptedAt time.Time) error {
	if s.UpdateError != nil {
		return s.UpdateError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			s.notifications[i].Status = status
			at := attemptedAt
			s.notifications[i].LastAttemptAt = &at
		}
	}
	return nil
}

// RecipientStore is an in-memory implementation of database.RecipientReader.
type RecipientStore struct {
	mu         sync.RWMutex
	recipients []database.Recipient

	// Error injection
	ActiveError error
}

// NewRecipientStore creates an empty recipient store.
func NewRecipientStore() *RecipientStore {
	return &RecipientStore{}
}

// Add inserts a recipient into the mock store.
func (s *RecipientStore) Add(r database.Recipient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recipients = append(s.recipients, r)
}

// ActiveByChannel returns active recipients opted into the channel, ordered
// by ascending channel priority, then by ID.
func (s *RecipientStore) ActiveByChannel(ctx context.Context, ch database.Channel) ([]database.Recipient, error) {
	if s.ActiveError != nil {
		return nil, s.ActiveError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []database.Recipient
	for _, r := range s.recipients {
		if r.IsActive && r.OptedIn(ch) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := out[i].Priority(ch), out[j].Priority(ch)
		if pi != pj {
			return pi < pj
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// DeliveryStore is an in-memory implementation of database.DeliveryWriter.
type DeliveryStore struct {
	mu      sync.RWMutex
	records []database.DeliveryRecord
	nextID  int64

	// Error injection
	RecordError error
}

// NewDeliveryStore creates an empty delivery store.
func NewDeliveryStore() *DeliveryStore {
	return &DeliveryStore{nextID: 1}
}

// Records returns a copy of all appended delivery rows in append order.
func (s *DeliveryStore) Records() []database.DeliveryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]database.DeliveryRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Record appends one delivery outcome row.
func (s *DeliveryStore) Record(ctx context.Context, rec database.DeliveryRecord) error {
	if s.RecordError != nil {
		return s.RecordError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = s.nextID
	s.nextID++
	s.records = append(s.records, rec)
	return nil
}
