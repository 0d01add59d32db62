package postgres

import (
	"context"
	"fmt"

	"github.com/facewatch/facewatch/internal/database"
)

// RecipientRepository provides PostgreSQL-backed access to call-tree
// recipients.
type RecipientRepository struct {
	pool *Pool
}

// NewRecipientRepository creates a new PostgreSQL recipient repository.
func NewRecipientRepository(pool *Pool) *RecipientRepository {
	return &RecipientRepository{pool: pool}
}

// channelColumns maps a channel to its opt-in flag and priority column.
func channelColumns(ch database.Channel) (flag, prio string, err error) {
	switch ch {
	case database.ChannelEmail:
		return "notify_email", "priority_email", nil
	case database.ChannelSMS:
		return "notify_sms", "priority_sms", nil
	case database.ChannelVoice:
		return "notify_voice", "priority_voice", nil
	}
	return "", "", fmt.Errorf("unknown channel %q", ch)
}

// ActiveByChannel returns active recipients opted into the channel, ordered
// by ascending channel priority, then by ID.
func (r *RecipientRepository) ActiveByChannel(ctx context.Context, ch database.Channel) ([]database.Recipient, error) {
	flag, prio, err := channelColumns(ch)
	if err != nil {
		return nil, err
	}

	// Column names come from channelColumns, never from input.
	query := fmt.Sprintf(`
		SELECT id, name, email, phone_number, is_active,
		       notify_email, priority_email, notify_sms, priority_sms, notify_voice, priority_voice,
		       created_at
		FROM recipients
		WHERE is_active = TRUE AND %s = TRUE
		ORDER BY %s, id
	`, flag, prio)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query recipients: %w", err)
	}
	defer rows.Close()

	var out []database.Recipient
	for rows.Next() {
		var rc database.Recipient
		if err := rows.Scan(&rc.ID, &rc.Name, &rc.Email, &rc.PhoneNumber, &rc.IsActive,
			&rc.NotifyEmail, &rc.PriorityEmail, &rc.NotifySMS, &rc.PrioritySMS,
			&rc.NotifyVoice, &rc.PriorityVoice, &rc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		out = append(out, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recipients: %w", err)
	}
	return out, nil
}
