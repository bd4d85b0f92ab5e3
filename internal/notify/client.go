// Package notify carries push notifications from the services to user
// devices. Trip operations enqueue a reference to the stored notification on
// a RabbitMQ queue; the worker fans it out to every registered device token
// and prunes tokens the push gateway reports as dead.
package notify

import (
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	notificationExchange = "notifications"
	notificationQueue    = "notification.push"
	notificationKey      = "notification.created"
)

// Client wraps the broker connection shared by the publisher and the worker.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *slog.Logger
}

// Dial connects to the broker and declares the notification exchange.
func Dial(url string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("notify: connect to broker: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("notify: open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(notificationExchange, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("notify: declare exchange: %w", err)
	}

	logger.Info("connected to notification broker")
	return &Client{conn: conn, channel: channel, logger: logger}, nil
}

// Close releases the channel and the connection.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			return fmt.Errorf("notify: close channel: %w", err)
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			return fmt.Errorf("notify: close connection: %w", err)
		}
	}
	return nil
}
