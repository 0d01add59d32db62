package database

import (
	"time"
)

// Channel identifies a notification delivery channel.
type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelSMS   Channel = "SMS"
	ChannelVoice Channel = "VOICE"
)

// EscalationOrder is the fixed channel order of a dispatch sweep.
var EscalationOrder = []Channel{ChannelEmail, ChannelSMS, ChannelVoice}

// NotificationStatus is the lifecycle state of a notification.
// PENDING is the only non-terminal state.
type NotificationStatus string

const (
	StatusPending NotificationStatus = "PENDING"
	StatusSent    NotificationStatus = "SENT"
	StatusFailed  NotificationStatus = "FAILED"
)

// DeliveryStatus is the outcome of a single send attempt.
type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "SENT"
	DeliveryFailed DeliveryStatus = "FAILED"
)

// NotificationTypeMatch is currently the only notification type.
const NotificationTypeMatch = "MATCH"

// Subject is a registered person in the watch gallery.
type Subject struct {
	ID           int64
	FullName     string
	Image        []byte    // reference photo (JPEG/PNG bytes)
	RefEmbedding []float32 // cached reference embedding, nil if never warmed
	CreatedAt    time.Time
}

// MatchEvent is one append-only row of the match log.
type MatchEvent struct {
	ID          int64
	CaptureTime time.Time
	Frame       string
	CameraID    *string
	SubjectID   *int64
	SubjectName string
	Distance    float64
	Embedding   []float32 // embedding of the matched face, nil if not kept
	CreatedAt   time.Time
}

// Notification is one alert created for a subject match.
type Notification struct {
	ID            string // uuid
	SubjectID     int64
	EventTime     time.Time
	Type          string
	Message       string
	Status        NotificationStatus
	LastAttemptAt *time.Time
	CreatedAt     time.Time
}

// Recipient is a person reachable through the call tree. Each channel has an
// opt-in flag and an escalation priority (lower value means earlier level).
type Recipient struct {
	ID          int64
	Name        string
	Email       string
	PhoneNumber string
	IsActive    bool

	NotifyEmail   bool
	PriorityEmail int
	NotifySMS     bool
	PrioritySMS   int
	NotifyVoice   bool
	PriorityVoice int

	CreatedAt time.Time
}

// OptedIn reports whether the recipient accepts the given channel.
func (r *Recipient) OptedIn(ch Channel) bool {
	switch ch {
	case ChannelEmail:
		return r.NotifyEmail
	case ChannelSMS:
		return r.NotifySMS
	case ChannelVoice:
		return r.NotifyVoice
	}
	return false
}

// Priority returns the recipient's escalation priority for the given channel.
func (r *Recipient) Priority(ch Channel) int {
	switch ch {
	case ChannelEmail:
		return r.PriorityEmail
	case ChannelSMS:
		return r.PrioritySMS
	case ChannelVoice:
		return r.PriorityVoice
	}
	return 0
}

// DeliveryRecord is one append-only row of the per-recipient delivery audit.
type DeliveryRecord struct {
	ID             int64
	NotificationID string
	RecipientID    int64
	Channel        Channel
	Status         DeliveryStatus
	DeliveryTime   time.Time
}
