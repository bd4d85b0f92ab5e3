package application

import (
	"context"
	"time"
)

// TripEvent describes a trip state change pushed to connected clients.
type TripEvent struct {
	UserID     string    `json:"user_id"`
	TripID     string    `json:"trip_id"`
	Status     string    `json:"status"`
	ETAMinutes *int      `json:"eta_minutes,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ScheduleEvent describes a week schedule submission or review decision.
type ScheduleEvent struct {
	UserID     string    `json:"user_id"`
	ScheduleID string    `json:"schedule_id"`
	WeekStart  string    `json:"week_start"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ChangeRequestEvent describes a single-day amendment submission or review
// decision.
type ChangeRequestEvent struct {
	UserID     string    `json:"user_id"`
	RequestID  string    `json:"request_id"`
	WeekStart  string    `json:"week_start"`
	Day        string    `json:"day"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NotificationEvent announces a freshly appended notification record.
type NotificationEvent struct {
	UserID         string    `json:"user_id"`
	NotificationID string    `json:"notification_id"`
	Type           string    `json:"type"`
	Title          string    `json:"title"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// EventPublisher delivers change events to the realtime feed. Publishing is
// best effort; services log failures and continue.
type EventPublisher interface {
	PublishTripEvent(ctx context.Context, event TripEvent) error
	PublishScheduleEvent(ctx context.Context, event ScheduleEvent) error
	PublishChangeRequestEvent(ctx context.Context, event ChangeRequestEvent) error
	PublishNotificationEvent(ctx context.Context, event NotificationEvent) error
}

// NotificationMessage references an appended notification record queued for
// push fan-out.
type NotificationMessage struct {
	NotificationID string `json:"notification_id"`
	UserID         string `json:"user_id"`
}

// NotificationQueue hands notification records to the asynchronous push
// worker. Enqueueing is best effort; services log failures and continue.
type NotificationQueue interface {
	EnqueueNotification(ctx context.Context, message NotificationMessage) error
}
