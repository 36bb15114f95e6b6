package ports

import (
	"context"
	"time"
)

type NotificationCreatedEvent struct {
	NotificationID string    `json:"notification_id"`
	RecipientID    string    `json:"recipient_id"`
	Kind           string    `json:"kind"`
	SubjectType    string    `json:"subject_type"`
	SubjectID      string    `json:"subject_id"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"created_at"`
}

type NotificationPublisher interface {
	PublishNotificationCreated(ctx context.Context, evt NotificationCreatedEvent) error
}
