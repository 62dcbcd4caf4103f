package events

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// NotificationSink writes one notifications row per recipient.
type NotificationSink struct {
	db batchSender
}

func NewNotificationSink(db batchSender) *NotificationSink {
	return &NotificationSink{db: db}
}

func (s *NotificationSink) Name() string { return "notifications" }

func (s *NotificationSink) Handle(ctx context.Context, ev Event) error {
	if len(ev.Recipients) == 0 {
		return nil
	}

	data := map[string]interface{}{"group_id": ev.GroupID, "actor_id": ev.ActorID}
	for k, v := range ev.Data {
		data[k] = v
	}

	batch := &pgx.Batch{}
	for _, userID := range ev.Recipients {
		batch.Queue(`
			INSERT INTO notifications (id, user_id, type, title, message, data)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, uuid.New(), userID, string(ev.Type), ev.Title, ev.Message, data)
	}

	if err := s.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting %d notifications: %w", len(ev.Recipients), err)
	}
	return nil
}
