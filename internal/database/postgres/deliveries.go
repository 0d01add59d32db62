package postgres

import (
	"context"
	"fmt"

	"github.com/facewatch/facewatch/internal/database"
)

// DeliveryRepository appends per-recipient delivery outcomes.
type DeliveryRepository struct {
	pool *Pool
}

// NewDeliveryRepository creates a new PostgreSQL delivery repository.
func NewDeliveryRepository(pool *Pool) *DeliveryRepository {
	return &DeliveryRepository{pool: pool}
}

// Record appends one delivery outcome row.
func (r *DeliveryRepository) Record(ctx context.Context, rec database.DeliveryRecord) error {
	if _, err := r.pool.Exec(ctx, `
		INSERT INTO notification_recipients (notification_id, recipient_id, channel, delivery_status, delivery_time)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.NotificationID, rec.RecipientID, rec.Channel, rec.Status, rec.DeliveryTime,
	); err != nil {
		return fmt.Errorf("insert delivery record: %w", err)
	}
	return nil
}
