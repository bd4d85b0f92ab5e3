package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/transport-scheduler/internal/persistence"
)

// NotificationStore captures the persistence interactions needed by the service.
type NotificationStore interface {
	ListNotifications(ctx context.Context, userID string) ([]persistence.Notification, error)
	DismissNotifications(ctx context.Context, userID string, dismissedAt time.Time) error
}

// DeviceTokenStore captures push target registrations.
type DeviceTokenStore interface {
	RegisterToken(ctx context.Context, token persistence.DeviceToken) error
	ListTokens(ctx context.Context, userID string) ([]persistence.DeviceToken, error)
	DeleteToken(ctx context.Context, userID, token string) error
}

// NotificationService exposes the in-app notification feed and device token
// registration.
type NotificationService struct {
	notifications NotificationStore
	tokens        DeviceTokenStore
	now           func() time.Time
	logger        *slog.Logger
}

// NewNotificationService wires dependencies for notification operations.
func NewNotificationService(notifications NotificationStore, tokens DeviceTokenStore, now func() time.Time, logger *slog.Logger) *NotificationService {
	if now == nil {
		now = time.Now
	}
	return &NotificationService{
		notifications: notifications,
		tokens:        tokens,
		now:           now,
		logger:        defaultLogger(logger),
	}
}

func (s *NotificationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "NotificationService", operation, attrs...)
}

// ListNotifications returns the caller's notifications, newest first.
func (s *NotificationService) ListNotifications(ctx context.Context, principal Principal) ([]persistence.Notification, error) {
	if s == nil {
		return nil, fmt.Errorf("NotificationService is nil")
	}
	if s.notifications == nil {
		return nil, fmt.Errorf("notification store not configured")
	}
	return s.notifications.ListNotifications(ctx, principal.UserID)
}

// DismissNotifications marks every undismissed notification read for the
// caller.
func (s *NotificationService) DismissNotifications(ctx context.Context, principal Principal) error {
	if s == nil {
		return fmt.Errorf("NotificationService is nil")
	}
	if s.notifications == nil {
		return fmt.Errorf("notification store not configured")
	}

	if err := s.notifications.DismissNotifications(ctx, principal.UserID, s.now()); err != nil {
		return err
	}
	s.loggerWith(ctx, "DismissNotifications", "user_id", principal.UserID).InfoContext(ctx, "notifications dismissed")
	return nil
}

// RegisterDeviceToken stores a push target for the caller. Registering a
// token another account previously held moves it to the caller.
func (s *NotificationService) RegisterDeviceToken(ctx context.Context, params RegisterDeviceTokenParams) error {
	if s == nil {
		return fmt.Errorf("NotificationService is nil")
	}
	if s.tokens == nil {
		return fmt.Errorf("device token store not configured")
	}

	value := strings.TrimSpace(params.Token)
	if value == "" {
		vErr := &ValidationError{}
		vErr.add("token", "token is required")
		return vErr
	}

	token := persistence.DeviceToken{
		Token:     value,
		UserID:    params.Principal.UserID,
		Platform:  strings.TrimSpace(params.Platform),
		CreatedAt: s.now(),
	}
	if err := s.tokens.RegisterToken(ctx, token); err != nil {
		return err
	}

	s.loggerWith(ctx, "RegisterDeviceToken",
		"user_id", params.Principal.UserID,
		"platform", token.Platform,
	).InfoContext(ctx, "device token registered")
	return nil
}

// DeleteDeviceToken removes one of the caller's push targets.
func (s *NotificationService) DeleteDeviceToken(ctx context.Context, principal Principal, tokenValue string) error {
	if s == nil {
		return fmt.Errorf("NotificationService is nil")
	}
	if s.tokens == nil {
		return fmt.Errorf("device token store not configured")
	}
	return s.tokens.DeleteToken(ctx, principal.UserID, strings.TrimSpace(tokenValue))
}
