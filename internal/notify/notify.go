// Package notify implements the outbound delivery channels: email over SMTP
// and SMS/voice through the Twilio REST API.
package notify

import (
	"context"
	"time"

	"github.com/facewatch/facewatch/internal/database"
)

// Alert carries the match context rendered into each outbound message.
type Alert struct {
	SubjectName string
	CameraID    string // empty when the frame carried no camera prefix
	EventTime   time.Time
	Message     string
}

// ChannelSender delivers one alert to one recipient over one channel.
type ChannelSender interface {
	Channel() database.Channel
	Send(ctx context.Context, rec database.Recipient, alert Alert) error
}
