package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/example/transport-scheduler/internal/application"
	"github.com/example/transport-scheduler/internal/persistence"
)

// NotificationSource loads the stored notification a queued message points at.
type NotificationSource interface {
	GetNotification(ctx context.Context, userID, id string) (persistence.Notification, error)
}

// TokenRegistry lists and prunes a user's push targets.
type TokenRegistry interface {
	ListTokens(ctx context.Context, userID string) ([]persistence.DeviceToken, error)
	DeleteToken(ctx context.Context, userID, token string) error
}

// Worker consumes queued notification references and fans each one out to the
// user's registered devices.
type Worker struct {
	client        *Client
	notifications NotificationSource
	tokens        TokenRegistry
	push          PushClient
	logger        *slog.Logger
}

// NewWorker wires dependencies for the fan-out worker.
func NewWorker(client *Client, notifications NotificationSource, tokens TokenRegistry, push PushClient, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		client:        client,
		notifications: notifications,
		tokens:        tokens,
		push:          push,
		logger:        logger,
	}
}

// Run consumes the notification queue until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.client == nil || w.client.channel == nil {
		return fmt.Errorf("notify: broker not connected")
	}

	channel := w.client.channel
	queue, err := channel.QueueDeclare(notificationQueue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("notify: declare queue: %w", err)
	}
	if err := channel.QueueBind(queue.Name, notificationKey, notificationExchange, false, nil); err != nil {
		return fmt.Errorf("notify: bind queue: %w", err)
	}

	deliveries, err := channel.Consume(queue.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("notify: start consuming: %w", err)
	}

	w.logger.InfoContext(ctx, "notification worker started", "queue", queue.Name)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("notify: delivery channel closed")
			}

			var message application.NotificationMessage
			if err := json.Unmarshal(delivery.Body, &message); err != nil {
				w.logger.WarnContext(ctx, "dropping malformed notification message", "error", err)
				delivery.Nack(false, false)
				continue
			}

			if err := w.Deliver(ctx, message); err != nil {
				w.logger.ErrorContext(ctx, "notification delivery failed",
					"error", err,
					"notification_id", message.NotificationID,
				)
				delivery.Nack(false, false)
				continue
			}
			delivery.Ack(false)
		}
	}
}

// Deliver fans one stored notification out to every registered device and
// prunes tokens the gateway reports as dead. A user with no devices is not an
// error; the notification simply stays in-app only.
func (w *Worker) Deliver(ctx context.Context, message application.NotificationMessage) error {
	notification, err := w.notifications.GetNotification(ctx, message.UserID, message.NotificationID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			w.logger.WarnContext(ctx, "queued notification no longer exists",
				"notification_id", message.NotificationID,
				"user_id", message.UserID,
			)
			return nil
		}
		return err
	}

	tokens, err := w.tokens.ListTokens(ctx, message.UserID)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return nil
	}

	values := make([]string, 0, len(tokens))
	for _, token := range tokens {
		values = append(values, token.Token)
	}

	results, err := w.push.SendMulticast(ctx, values, notification.Title, notification.Body, map[string]string{
		"type":            notification.Type,
		"notification_id": notification.ID,
	})
	if err != nil {
		return err
	}

	delivered := 0
	for _, result := range results {
		switch {
		case result.ErrorCode == "":
			delivered++
		case result.Invalid():
			if err := w.tokens.DeleteToken(ctx, message.UserID, result.Token); err != nil {
				w.logger.WarnContext(ctx, "failed to prune dead device token", "error", err)
			}
		default:
			w.logger.WarnContext(ctx, "push rejected for token",
				"error_code", result.ErrorCode,
				"notification_id", notification.ID,
			)
		}
	}

	w.logger.InfoContext(ctx, "notification delivered",
		"notification_id", notification.ID,
		"user_id", message.UserID,
		"devices", len(values),
		"delivered", delivered,
	)
	return nil
}
