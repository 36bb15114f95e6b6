package messaging

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xenwatch/identity-notify-service/internal/core/ports"
)

var _ ports.NotificationPublisher = (*RabbitMQBroker)(nil)

func (rmq *RabbitMQBroker) PublishNotificationCreated(ctx context.Context, evt ports.NotificationCreatedEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	// Respect context deadline
	if deadline, ok := ctx.Deadline(); ok {
		if time.Until(deadline) <= 0 {
			return ctx.Err()
		}
	}

	_, err = rmq.cb.Execute(func() (interface{}, error) {
		rmq.mu.Lock()
		defer rmq.mu.Unlock()
		err := rmq.ch.PublishWithContext(
			ctx,
			"",            // exchange (default)
			rmq.queueName, // routing key == queue name
			false,         // mandatory
			false,         // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    evt.NotificationID,
				Type:         "notification.created",
				Timestamp:    evt.CreatedAt,
				Body:         body,
			},
		)
		return nil, err
	})
	return err
}
