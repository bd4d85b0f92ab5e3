package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/transport-scheduler/internal/persistence"
	"github.com/example/transport-scheduler/internal/persistence/memory"
)

func newNotificationServiceFixture(now func() time.Time) (*NotificationService, *memory.Store) {
	store := memory.NewStore()
	svc := NewNotificationService(store, store, now, nil)
	return svc, store
}

func seedNotification(t *testing.T, store *memory.Store, id, userID string, createdAt time.Time) {
	t.Helper()
	err := store.AppendNotification(context.Background(), persistence.Notification{
		ID:        id,
		UserID:    userID,
		Type:      "driver_arrival",
		Title:     "Driver arriving",
		Body:      "Your ride is 5 minutes away",
		CreatedAt: createdAt,
	})
	if err != nil {
		t.Fatalf("AppendNotification failed: %v", err)
	}
}

func TestNotificationService_ListNotifications(t *testing.T) {
	t.Parallel()

	svc, store := newNotificationServiceFixture(fixedClock(fixedNow))
	seedNotification(t, store, "ntf-1", "user-1", fixedNow.Add(-2*time.Hour))
	seedNotification(t, store, "ntf-2", "user-1", fixedNow.Add(-time.Hour))
	seedNotification(t, store, "ntf-3", "user-2", fixedNow)

	notifications, err := svc.ListNotifications(context.Background(), Principal{UserID: "user-1"})
	if err != nil {
		t.Fatalf("ListNotifications failed: %v", err)
	}
	if len(notifications) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(notifications))
	}
	if notifications[0].ID != "ntf-2" || notifications[1].ID != "ntf-1" {
		t.Fatalf("expected newest first, got %q then %q", notifications[0].ID, notifications[1].ID)
	}
}

func TestNotificationService_DismissNotifications(t *testing.T) {
	t.Parallel()

	clock := &tickingClock{current: fixedNow}
	svc, store := newNotificationServiceFixture(clock.now)
	seedNotification(t, store, "ntf-1", "user-1", fixedNow.Add(-time.Hour))
	seedNotification(t, store, "ntf-2", "user-2", fixedNow.Add(-time.Hour))

	if err := svc.DismissNotifications(context.Background(), Principal{UserID: "user-1"}); err != nil {
		t.Fatalf("DismissNotifications failed: %v", err)
	}
	firstStamp := clock.now()

	dismissed, err := svc.ListNotifications(context.Background(), Principal{UserID: "user-1"})
	if err != nil {
		t.Fatalf("ListNotifications failed: %v", err)
	}
	if dismissed[0].DismissedAt == nil {
		t.Fatalf("expected a dismissal stamp")
	}

	// A second dismissal must not restamp already dismissed rows.
	clock.advance(time.Hour)
	if err := svc.DismissNotifications(context.Background(), Principal{UserID: "user-1"}); err != nil {
		t.Fatalf("second DismissNotifications failed: %v", err)
	}
	again, err := svc.ListNotifications(context.Background(), Principal{UserID: "user-1"})
	if err != nil {
		t.Fatalf("ListNotifications failed: %v", err)
	}
	if !again[0].DismissedAt.Equal(firstStamp) {
		t.Fatalf("expected the original stamp to survive, got %v", again[0].DismissedAt)
	}

	others, err := svc.ListNotifications(context.Background(), Principal{UserID: "user-2"})
	if err != nil {
		t.Fatalf("ListNotifications failed: %v", err)
	}
	if others[0].DismissedAt != nil {
		t.Fatalf("dismissal must not touch other users")
	}
}

func TestNotificationService_DeviceTokens(t *testing.T) {
	t.Parallel()

	t.Run("registers and removes a push target", func(t *testing.T) {
		t.Parallel()

		svc, store := newNotificationServiceFixture(fixedClock(fixedNow))

		err := svc.RegisterDeviceToken(context.Background(), RegisterDeviceTokenParams{
			Principal: Principal{UserID: "user-1"},
			Token:     "  fcm-token-1  ",
			Platform:  "android",
		})
		if err != nil {
			t.Fatalf("RegisterDeviceToken failed: %v", err)
		}

		tokens, err := store.ListTokens(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("ListTokens failed: %v", err)
		}
		if len(tokens) != 1 || tokens[0].Token != "fcm-token-1" {
			t.Fatalf("expected one trimmed token, got %#v", tokens)
		}
		if tokens[0].Platform != "android" {
			t.Fatalf("expected platform recorded, got %q", tokens[0].Platform)
		}

		if err := svc.DeleteDeviceToken(context.Background(), Principal{UserID: "user-1"}, "fcm-token-1"); err != nil {
			t.Fatalf("DeleteDeviceToken failed: %v", err)
		}
		tokens, err = store.ListTokens(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("ListTokens failed: %v", err)
		}
		if len(tokens) != 0 {
			t.Fatalf("expected no tokens after delete, got %d", len(tokens))
		}
	})

	t.Run("rejects a blank token", func(t *testing.T) {
		t.Parallel()

		svc, _ := newNotificationServiceFixture(fixedClock(fixedNow))

		err := svc.RegisterDeviceToken(context.Background(), RegisterDeviceTokenParams{
			Principal: Principal{UserID: "user-1"},
			Token:     "   ",
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("re-registration moves the token to the new account", func(t *testing.T) {
		t.Parallel()

		svc, store := newNotificationServiceFixture(fixedClock(fixedNow))

		for _, userID := range []string{"user-1", "user-2"} {
			err := svc.RegisterDeviceToken(context.Background(), RegisterDeviceTokenParams{
				Principal: Principal{UserID: userID},
				Token:     "shared-device",
				Platform:  "ios",
			})
			if err != nil {
				t.Fatalf("RegisterDeviceToken for %s failed: %v", userID, err)
			}
		}

		orphaned, err := store.ListTokens(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("ListTokens failed: %v", err)
		}
		if len(orphaned) != 0 {
			t.Fatalf("expected the token to leave user-1, got %#v", orphaned)
		}
		moved, err := store.ListTokens(context.Background(), "user-2")
		if err != nil {
			t.Fatalf("ListTokens failed: %v", err)
		}
		if len(moved) != 1 {
			t.Fatalf("expected user-2 to hold the token, got %d", len(moved))
		}
	})
}
