package notify

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/example/transport-scheduler/internal/application"
)

// EnqueueNotification publishes a stored notification reference for the push
// worker. Implements application.NotificationQueue.
func (c *Client) EnqueueNotification(ctx context.Context, message application.NotificationMessage) error {
	if c == nil || c.channel == nil {
		return fmt.Errorf("notify: broker not connected")
	}

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("notify: marshal notification message: %w", err)
	}

	err = c.channel.PublishWithContext(ctx, notificationExchange, notificationKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("notify: publish notification message: %w", err)
	}

	c.logger.DebugContext(ctx, "notification enqueued",
		"notification_id", message.NotificationID,
		"user_id", message.UserID,
	)
	return nil
}
