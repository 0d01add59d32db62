package alert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/facewatch/facewatch/internal/database"
	"github.com/facewatch/facewatch/internal/notify"
)

// Dispatcher walks PENDING notifications through the call tree. Channels run
// in the fixed order EMAIL, SMS, VOICE; within a channel recipients are swept
// level by level in ascending priority and every recipient in a level is
// contacted. Each attempt leaves one delivery row.
type Dispatcher struct {
	notifications database.NotificationStore
	recipients    database.RecipientReader
	matches       database.MatchWriter
	deliveries    database.DeliveryWriter
	senders       map[database.Channel]notify.ChannelSender
	logger        *slog.Logger

	now func() time.Time
}

func NewDispatcher(
	notifications database.NotificationStore,
	recipients database.RecipientReader,
	matches database.MatchWriter,
	deliveries database.DeliveryWriter,
	senders []notify.ChannelSender,
	logger *slog.Logger,
) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	byChannel := make(map[database.Channel]notify.ChannelSender, len(senders))
	for _, s := range senders {
		byChannel[s.Channel()] = s
	}
	return &Dispatcher{
		notifications: notifications,
		recipients:    recipients,
		matches:       matches,
		deliveries:    deliveries,
		senders:       byChannel,
		logger:        logger,
		now:           time.Now,
	}
}

// DispatchPending processes every PENDING notification, oldest first. Each
// notification ends in a terminal state: SENT when the sweep completed, even
// with individual delivery failures, FAILED when the sweep itself could not
// run.
func (d *Dispatcher) DispatchPending(ctx context.Context) error {
	pending, err := d.notifications.ListByStatus(ctx, database.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to list pending notifications: %w", err)
	}

	for i := range pending {
		n := &pending[i]
		if err := d.dispatch(ctx, n); err != nil {
			d.logger.Error("notification dispatch failed",
				"notification_id", n.ID, "subject_id", n.SubjectID, "error", err)
			d.markTerminal(ctx, n.ID, database.StatusFailed)
			continue
		}
		d.markTerminal(ctx, n.ID, database.StatusSent)
	}
	return nil
}

// dispatch runs the full call-tree sweep for one notification. An error
// means the sweep could not proceed, not that a recipient was unreachable.
func (d *Dispatcher) dispatch(ctx context.Context, n *database.Notification) error {
	alert := d.buildAlert(ctx, n)

	for _, ch := range database.EscalationOrder {
		sender, ok := d.senders[ch]
		if !ok {
			return fmt.Errorf("no sender configured for channel %s", ch)
		}
		recipients, err := d.recipients.ActiveByChannel(ctx, ch)
		if err != nil {
			return fmt.Errorf("failed to load %s recipients: %w", ch, err)
		}
		d.sweepChannel(ctx, n, ch, sender, recipients, alert)
	}
	return nil
}

// sweepChannel contacts every recipient level by level. Levels share a
// priority value; all members of a level are contacted before the next
// level starts.
func (d *Dispatcher) sweepChannel(ctx context.Context, n *database.Notification, ch database.Channel, sender notify.ChannelSender, recipients []database.Recipient, alert notify.Alert) {
	for _, level := range groupByPriority(recipients, ch) {
		for i := range level {
			rec := &level[i]
			status := database.DeliverySent
			if err := sender.Send(ctx, *rec, alert); err != nil {
				status = database.DeliveryFailed
				d.logger.Warn("delivery attempt failed",
					"notification_id", n.ID, "channel", ch, "recipient_id", rec.ID, "error", err)
			}
			row := database.DeliveryRecord{
				NotificationID: n.ID,
				RecipientID:    rec.ID,
				Channel:        ch,
				Status:         status,
				DeliveryTime:   d.now(),
			}
			if err := d.deliveries.Record(ctx, row); err != nil {
				d.logger.Error("failed to record delivery",
					"notification_id", n.ID, "recipient_id", rec.ID, "error", err)
			}
		}
	}
}

// groupByPriority splits an already priority-ordered recipient list into
// escalation levels.
func groupByPriority(recipients []database.Recipient, ch database.Channel) [][]database.Recipient {
	var levels [][]database.Recipient
	for _, rec := range recipients {
		p := rec.Priority(ch)
		if len(levels) == 0 || levels[len(levels)-1][0].Priority(ch) != p {
			levels = append(levels, []database.Recipient{rec})
			continue
		}
		levels[len(levels)-1] = append(levels[len(levels)-1], rec)
	}
	return levels
}

// buildAlert enriches the notification with its latest match context. Missing
// context degrades the message, never the dispatch.
func (d *Dispatcher) buildAlert(ctx context.Context, n *database.Notification) notify.Alert {
	alert := notify.Alert{
		EventTime: n.EventTime,
		Message:   n.Message,
	}
	event, err := d.matches.LatestForSubject(ctx, n.SubjectID)
	if err != nil {
		d.logger.Warn("failed to load match context", "subject_id", n.SubjectID, "error", err)
		return alert
	}
	if event != nil {
		alert.SubjectName = event.SubjectName
		if event.CameraID != nil {
			alert.CameraID = *event.CameraID
		}
	}
	return alert
}

func (d *Dispatcher) markTerminal(ctx context.Context, id string, status database.NotificationStatus) {
	if err := d.notifications.UpdateStatus(ctx, id, status, d.now()); err != nil {
		d.logger.Error("failed to update notification status",
			"notification_id", id, "status", status, "error", err)
	}
}
