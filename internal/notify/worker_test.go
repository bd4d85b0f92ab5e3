package notify

import (
	"context"
	"testing"
	"time"

	"github.com/example/transport-scheduler/internal/application"
	"github.com/example/transport-scheduler/internal/persistence"
)

type notificationSourceStub struct {
	notifications map[string]persistence.Notification
}

func (s *notificationSourceStub) GetNotification(_ context.Context, userID, id string) (persistence.Notification, error) {
	notification, ok := s.notifications[id]
	if !ok || notification.UserID != userID {
		return persistence.Notification{}, persistence.ErrNotFound
	}
	return notification, nil
}

type tokenRegistryStub struct {
	tokens  []persistence.DeviceToken
	deleted []string
}

func (s *tokenRegistryStub) ListTokens(_ context.Context, userID string) ([]persistence.DeviceToken, error) {
	var tokens []persistence.DeviceToken
	for _, token := range s.tokens {
		if token.UserID == userID {
			tokens = append(tokens, token)
		}
	}
	return tokens, nil
}

func (s *tokenRegistryStub) DeleteToken(_ context.Context, _, token string) error {
	s.deleted = append(s.deleted, token)
	return nil
}

type pushClientStub struct {
	results []SendResult
	err     error
	sent    [][]string
	title   string
	data    map[string]string
}

func (s *pushClientStub) SendMulticast(_ context.Context, tokens []string, title, _ string, data map[string]string) ([]SendResult, error) {
	s.sent = append(s.sent, tokens)
	s.title = title
	s.data = data
	return s.results, s.err
}

func deviceToken(value, userID string) persistence.DeviceToken {
	return persistence.DeviceToken{
		Token:     value,
		UserID:    userID,
		Platform:  "android",
		CreatedAt: time.Date(2026, time.January, 6, 10, 0, 0, 0, time.UTC),
	}
}

func newWorkerFixture(push PushClient) (*Worker, *notificationSourceStub, *tokenRegistryStub) {
	source := &notificationSourceStub{notifications: map[string]persistence.Notification{
		"ntf-1": {
			ID:     "ntf-1",
			UserID: "user-1",
			Type:   "driver_arrival",
			Title:  "Driver arriving",
			Body:   "Your ride is 5 minutes away",
		},
	}}
	registry := &tokenRegistryStub{}
	return NewWorker(nil, source, registry, push, nil), source, registry
}

func TestWorker_Deliver(t *testing.T) {
	t.Parallel()

	message := application.NotificationMessage{NotificationID: "ntf-1", UserID: "user-1"}

	t.Run("fans out to every registered device", func(t *testing.T) {
		t.Parallel()

		push := &pushClientStub{results: []SendResult{{Token: "tok-a"}, {Token: "tok-b"}}}
		worker, _, registry := newWorkerFixture(push)
		registry.tokens = []persistence.DeviceToken{
			deviceToken("tok-a", "user-1"),
			deviceToken("tok-b", "user-1"),
			deviceToken("tok-c", "user-2"),
		}

		if err := worker.Deliver(context.Background(), message); err != nil {
			t.Fatalf("Deliver failed: %v", err)
		}
		if len(push.sent) != 1 {
			t.Fatalf("expected one multicast, got %d", len(push.sent))
		}
		if got := push.sent[0]; len(got) != 2 || got[0] != "tok-a" || got[1] != "tok-b" {
			t.Fatalf("unexpected token batch: %v", got)
		}
		if push.title != "Driver arriving" {
			t.Fatalf("unexpected title %q", push.title)
		}
		if push.data["notification_id"] != "ntf-1" || push.data["type"] != "driver_arrival" {
			t.Fatalf("unexpected data payload: %v", push.data)
		}
		if len(registry.deleted) != 0 {
			t.Fatalf("expected no pruning on success, got %v", registry.deleted)
		}
	})

	t.Run("prunes tokens the gateway reports dead", func(t *testing.T) {
		t.Parallel()

		push := &pushClientStub{results: []SendResult{
			{Token: "tok-a"},
			{Token: "tok-b", ErrorCode: "registration-token-not-registered"},
			{Token: "tok-c", ErrorCode: "invalid-registration-token"},
			{Token: "tok-d", ErrorCode: "internal-error"},
		}}
		worker, _, registry := newWorkerFixture(push)
		registry.tokens = []persistence.DeviceToken{
			deviceToken("tok-a", "user-1"),
			deviceToken("tok-b", "user-1"),
			deviceToken("tok-c", "user-1"),
			deviceToken("tok-d", "user-1"),
		}

		if err := worker.Deliver(context.Background(), message); err != nil {
			t.Fatalf("Deliver failed: %v", err)
		}
		if len(registry.deleted) != 2 || registry.deleted[0] != "tok-b" || registry.deleted[1] != "tok-c" {
			t.Fatalf("expected only dead tokens pruned, got %v", registry.deleted)
		}
	})

	t.Run("a user with no devices is a no-op", func(t *testing.T) {
		t.Parallel()

		push := &pushClientStub{}
		worker, _, _ := newWorkerFixture(push)

		if err := worker.Deliver(context.Background(), message); err != nil {
			t.Fatalf("Deliver failed: %v", err)
		}
		if len(push.sent) != 0 {
			t.Fatalf("expected no multicast, got %d", len(push.sent))
		}
	})

	t.Run("a deleted notification is skipped without error", func(t *testing.T) {
		t.Parallel()

		push := &pushClientStub{}
		worker, _, registry := newWorkerFixture(push)
		registry.tokens = []persistence.DeviceToken{deviceToken("tok-a", "user-1")}

		missing := application.NotificationMessage{NotificationID: "ntf-gone", UserID: "user-1"}
		if err := worker.Deliver(context.Background(), missing); err != nil {
			t.Fatalf("Deliver failed: %v", err)
		}
		if len(push.sent) != 0 {
			t.Fatalf("expected no multicast for a missing notification")
		}
	})
}

func TestSendResult_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code string
		want bool
	}{
		{code: "", want: false},
		{code: "registration-token-not-registered", want: true},
		{code: "invalid-registration-token", want: true},
		{code: "internal-error", want: false},
	}
	for _, tc := range tests {
		result := SendResult{Token: "tok", ErrorCode: tc.code}
		if result.Invalid() != tc.want {
			t.Errorf("Invalid() for %q: expected %v", tc.code, tc.want)
		}
	}
}
