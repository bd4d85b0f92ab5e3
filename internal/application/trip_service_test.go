package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/example/transport-scheduler/internal/persistence"
	"github.com/example/transport-scheduler/internal/persistence/memory"
	"github.com/example/transport-scheduler/internal/week"
)

type tickingClock struct {
	mu      sync.Mutex
	current time.Time
}

func (c *tickingClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *tickingClock) advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}

func sequentialIDs(prefix string) func() string {
	var counter int
	return func() string {
		counter++
		return fmt.Sprintf("%s-%d", prefix, counter)
	}
}

type queueStub struct {
	messages []NotificationMessage
	err      error
}

func (q *queueStub) EnqueueNotification(_ context.Context, message NotificationMessage) error {
	if q.err != nil {
		return q.err
	}
	q.messages = append(q.messages, message)
	return nil
}

type eventStub struct {
	events             []TripEvent
	scheduleEvents     []ScheduleEvent
	changeEvents       []ChangeRequestEvent
	notificationEvents []NotificationEvent
	err                error
}

func (e *eventStub) PublishTripEvent(_ context.Context, event TripEvent) error {
	if e.err != nil {
		return e.err
	}
	e.events = append(e.events, event)
	return nil
}

func (e *eventStub) PublishScheduleEvent(_ context.Context, event ScheduleEvent) error {
	if e.err != nil {
		return e.err
	}
	e.scheduleEvents = append(e.scheduleEvents, event)
	return nil
}

func (e *eventStub) PublishChangeRequestEvent(_ context.Context, event ChangeRequestEvent) error {
	if e.err != nil {
		return e.err
	}
	e.changeEvents = append(e.changeEvents, event)
	return nil
}

func (e *eventStub) PublishNotificationEvent(_ context.Context, event NotificationEvent) error {
	if e.err != nil {
		return e.err
	}
	e.notificationEvents = append(e.notificationEvents, event)
	return nil
}

func newTripFixture(t *testing.T) (*TripService, *memory.Store, *tickingClock, *queueStub, *eventStub) {
	t.Helper()
	store := memory.NewStore()
	clock := &tickingClock{current: fixedNow}
	queue := &queueStub{}
	events := &eventStub{}
	svc := NewTripService(store, store, store, queue, events, sequentialIDs("ntf"), clock.now, nil)
	return svc, store, clock, queue, events
}

func tripRef(userID string, day week.DayKey) TripRef {
	return TripRef{
		Principal: Principal{UserID: userID},
		WeekStart: testWeekStart,
		Day:       day,
	}
}

func TestTripService_SendPush(t *testing.T) {
	t.Parallel()

	t.Run("creates the trip lazily and records the push", func(t *testing.T) {
		t.Parallel()

		svc, store, clock, queue, events := newTripFixture(t)

		trip, err := svc.SendPush(context.Background(), SendPushParams{
			Ref:          tripRef("user-1", week.Monday),
			ETAMinutes:   12,
			DriverName:   "R. Kumar",
			TrackingLink: "https://example.com/track/1",
		})
		if err != nil {
			t.Fatalf("SendPush failed: %v", err)
		}
		if trip.ID != "user-1_"+testWeekStart+"_Mon" {
			t.Fatalf("unexpected trip ID %q", trip.ID)
		}
		if trip.Status != TripStatusPending {
			t.Fatalf("a push must not advance the trip status, got %q", trip.Status)
		}
		if trip.PushSentAt == nil || !trip.PushSentAt.Equal(clock.now()) {
			t.Fatalf("expected PushSentAt %v, got %v", clock.now(), trip.PushSentAt)
		}
		if trip.ETAMinutes == nil || *trip.ETAMinutes != 12 {
			t.Fatalf("expected ETA 12, got %v", trip.ETAMinutes)
		}

		notifications, err := store.ListNotifications(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("ListNotifications failed: %v", err)
		}
		if len(notifications) != 1 || notifications[0].Type != NotificationTypeDriverArrival {
			t.Fatalf("expected one driver arrival notification, got %#v", notifications)
		}
		if len(queue.messages) != 1 || queue.messages[0].NotificationID != notifications[0].ID {
			t.Fatalf("expected the notification to be queued, got %#v", queue.messages)
		}
		if len(events.events) != 1 || events.events[0].TripID != trip.ID {
			t.Fatalf("expected one trip event, got %#v", events.events)
		}
		if len(events.notificationEvents) != 1 || events.notificationEvents[0].NotificationID != notifications[0].ID {
			t.Fatalf("expected the appended notification on the feed, got %#v", events.notificationEvents)
		}
	})

	t.Run("a repeated push appends a fresh record and keeps the latest eta", func(t *testing.T) {
		t.Parallel()

		svc, store, clock, _, _ := newTripFixture(t)
		ref := tripRef("user-1", week.Tuesday)

		if _, err := svc.SendPush(context.Background(), SendPushParams{Ref: ref, ETAMinutes: 15}); err != nil {
			t.Fatalf("first push failed: %v", err)
		}

		second := clock.advance(5 * time.Minute)
		trip, err := svc.SendPush(context.Background(), SendPushParams{Ref: ref, ETAMinutes: 7})
		if err != nil {
			t.Fatalf("second push failed: %v", err)
		}

		notifications, err := store.ListNotifications(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("ListNotifications failed: %v", err)
		}
		if len(notifications) != 2 {
			t.Fatalf("expected two notification records, got %d", len(notifications))
		}
		if trip.PushSentAt == nil || !trip.PushSentAt.Equal(second) {
			t.Fatalf("expected PushSentAt from the second push, got %v", trip.PushSentAt)
		}
		if trip.ETAMinutes == nil || *trip.ETAMinutes != 7 {
			t.Fatalf("expected the latest ETA, got %v", trip.ETAMinutes)
		}
	})

	t.Run("seeds the trip from the submitted schedule", func(t *testing.T) {
		t.Parallel()

		svc, store, _, _, _ := newTripFixture(t)

		doc := persistence.WeekScheduleDoc{
			ID:        ScheduleID("user-1", testWeekStart),
			UserID:    "user-1",
			WeekStart: testWeekStart,
			Days: week.Schedule{
				week.Wednesday: {Pickup: &week.Pickup{Time: "08:15", AddressID: "addr-9", AddressName: "Home"}},
			},
			Status:    ScheduleStatusApproved,
			CreatedAt: fixedNow,
		}
		if err := store.CreateSchedule(context.Background(), doc); err != nil {
			t.Fatalf("CreateSchedule failed: %v", err)
		}

		trip, err := svc.SendPush(context.Background(), SendPushParams{Ref: tripRef("user-1", week.Wednesday), ETAMinutes: 9})
		if err != nil {
			t.Fatalf("SendPush failed: %v", err)
		}
		if trip.ScheduledTime != "08:15" || trip.AddressID != "addr-9" {
			t.Fatalf("expected the trip to be seeded from the schedule, got %+v", trip)
		}
	})

	t.Run("an omitted eta falls back to the standard estimate", func(t *testing.T) {
		t.Parallel()

		svc, _, _, _, _ := newTripFixture(t)

		trip, err := svc.SendPush(context.Background(), SendPushParams{Ref: tripRef("user-1", week.Monday)})
		if err != nil {
			t.Fatalf("SendPush failed: %v", err)
		}
		if trip.ETAMinutes == nil || *trip.ETAMinutes != 12 {
			t.Fatalf("expected the default ETA 12, got %v", trip.ETAMinutes)
		}
	})

	t.Run("rejects negative etas", func(t *testing.T) {
		t.Parallel()

		svc, _, _, _, _ := newTripFixture(t)

		_, err := svc.SendPush(context.Background(), SendPushParams{Ref: tripRef("user-1", week.Monday), ETAMinutes: -3})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("broker and feed failures do not fail the push", func(t *testing.T) {
		t.Parallel()

		store := memory.NewStore()
		clock := &tickingClock{current: fixedNow}
		queue := &queueStub{err: errors.New("broker down")}
		events := &eventStub{err: errors.New("feed down")}
		svc := NewTripService(store, store, store, queue, events, sequentialIDs("ntf"), clock.now, nil)

		if _, err := svc.SendPush(context.Background(), SendPushParams{Ref: tripRef("user-1", week.Monday), ETAMinutes: 5}); err != nil {
			t.Fatalf("SendPush failed: %v", err)
		}

		notifications, err := store.ListNotifications(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("ListNotifications failed: %v", err)
		}
		if len(notifications) != 1 {
			t.Fatalf("the stored notification must survive side channel failures, got %d", len(notifications))
		}
	})

	t.Run("rejects operating on another user without admin", func(t *testing.T) {
		t.Parallel()

		svc, _, _, _, _ := newTripFixture(t)

		ref := tripRef("user-1", week.Monday)
		ref.UserID = "user-2"
		_, err := svc.SendPush(context.Background(), SendPushParams{Ref: ref, ETAMinutes: 5})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})
}

func TestTripService_Lifecycle(t *testing.T) {
	t.Parallel()

	t.Run("status always reflects the most recent operation", func(t *testing.T) {
		t.Parallel()

		svc, _, clock, _, _ := newTripFixture(t)
		ref := tripRef("user-1", week.Thursday)
		ctx := context.Background()

		trip, err := svc.SendPush(ctx, SendPushParams{Ref: ref, ETAMinutes: 10})
		if err != nil {
			t.Fatalf("SendPush failed: %v", err)
		}
		if trip.Status != TripStatusPending {
			t.Fatalf("after push: expected pending, got %q", trip.Status)
		}

		clock.advance(time.Minute)
		trip, err = svc.ValidateQR(ctx, ValidateQRParams{Ref: ref})
		if err != nil {
			t.Fatalf("ValidateQR failed: %v", err)
		}
		if trip.Status != TripStatusInProgress {
			t.Fatalf("after qr: expected in_progress, got %q", trip.Status)
		}

		clock.advance(time.Minute)
		trip, err = svc.EndTrip(ctx, EndTripParams{Ref: ref, Geo: &persistence.GeoPoint{Latitude: 12.97, Longitude: 77.59}})
		if err != nil {
			t.Fatalf("EndTrip failed: %v", err)
		}
		if trip.Status != TripStatusCompleted {
			t.Fatalf("after end: expected completed, got %q", trip.Status)
		}

		// An out-of-order start arriving after the end still wins.
		clock.advance(time.Minute)
		trip, err = svc.StartTrip(ctx, StartTripParams{Ref: ref})
		if err != nil {
			t.Fatalf("StartTrip failed: %v", err)
		}
		if trip.Status != TripStatusInProgress {
			t.Fatalf("after late start: expected in_progress, got %q", trip.Status)
		}
		if trip.EndedAt == nil {
			t.Fatalf("earlier fields must survive later operations")
		}
	})

	t.Run("a late qr scan after the end reopens the trip", func(t *testing.T) {
		t.Parallel()

		svc, _, clock, _, _ := newTripFixture(t)
		ref := tripRef("user-1", week.Sunday)
		ctx := context.Background()

		trip, err := svc.EndTrip(ctx, EndTripParams{Ref: ref})
		if err != nil {
			t.Fatalf("EndTrip failed: %v", err)
		}
		if trip.Status != TripStatusCompleted {
			t.Fatalf("after end: expected completed, got %q", trip.Status)
		}

		clock.advance(time.Minute)
		trip, err = svc.ValidateQR(ctx, ValidateQRParams{Ref: ref})
		if err != nil {
			t.Fatalf("ValidateQR failed: %v", err)
		}
		if trip.Status != TripStatusInProgress {
			t.Fatalf("after late qr: expected in_progress, got %q", trip.Status)
		}
		if trip.EndedAt == nil || trip.QRValidatedAt == nil {
			t.Fatalf("both timestamps must survive, got %+v", trip)
		}
	})

	t.Run("start records departure and pushes a short eta", func(t *testing.T) {
		t.Parallel()

		svc, store, clock, _, _ := newTripFixture(t)
		ref := tripRef("user-1", week.Friday)

		trip, err := svc.StartTrip(context.Background(), StartTripParams{
			Ref: ref,
			Geo: &persistence.GeoPoint{Latitude: 12.9, Longitude: 77.6},
		})
		if err != nil {
			t.Fatalf("StartTrip failed: %v", err)
		}
		if trip.Status != TripStatusInProgress {
			t.Fatalf("expected in_progress, got %q", trip.Status)
		}
		if trip.StartedAt == nil || !trip.StartedAt.Equal(clock.now()) {
			t.Fatalf("expected StartedAt to be recorded, got %v", trip.StartedAt)
		}
		if trip.StartGeo == nil || trip.StartGeo.Latitude != 12.9 {
			t.Fatalf("expected the start location to be recorded, got %v", trip.StartGeo)
		}
		if trip.ETAMinutes == nil || *trip.ETAMinutes != 10 {
			t.Fatalf("expected the fixed start ETA, got %v", trip.ETAMinutes)
		}

		notifications, err := store.ListNotifications(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("ListNotifications failed: %v", err)
		}
		if len(notifications) != 1 || notifications[0].Type != NotificationTypeDriverArrival {
			t.Fatalf("expected a driver arrival notification, got %#v", notifications)
		}
	})

	t.Run("end appends a completion notification", func(t *testing.T) {
		t.Parallel()

		svc, store, _, queue, _ := newTripFixture(t)
		ref := tripRef("user-1", week.Saturday)

		trip, err := svc.EndTrip(context.Background(), EndTripParams{Ref: ref})
		if err != nil {
			t.Fatalf("EndTrip failed: %v", err)
		}
		if trip.Status != TripStatusCompleted {
			t.Fatalf("expected completed, got %q", trip.Status)
		}

		notifications, err := store.ListNotifications(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("ListNotifications failed: %v", err)
		}
		if len(notifications) != 1 || notifications[0].Type != NotificationTypeTripCompleted {
			t.Fatalf("expected a completion notification, got %#v", notifications)
		}
		if len(queue.messages) != 1 {
			t.Fatalf("expected the completion to be queued, got %#v", queue.messages)
		}
	})

	t.Run("rejects malformed references", func(t *testing.T) {
		t.Parallel()

		svc, _, _, _, _ := newTripFixture(t)

		_, err := svc.ValidateQR(context.Background(), ValidateQRParams{Ref: TripRef{
			Principal: Principal{UserID: "user-1"},
			WeekStart: testWeekStart,
			Day:       week.DayKey("Funday"),
		}})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError for an unknown day, got %v", err)
		}

		_, err = svc.StartTrip(context.Background(), StartTripParams{Ref: TripRef{
			Principal: Principal{UserID: "user-1"},
			WeekStart: "2026-01-13",
			Day:       week.Monday,
		}})
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError for a non-Monday week start, got %v", err)
		}
	})
}

func TestTripService_GetAndList(t *testing.T) {
	t.Parallel()

	svc, _, _, _, _ := newTripFixture(t)
	ctx := context.Background()

	if _, err := svc.GetTrip(ctx, tripRef("user-1", week.Monday)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before any operation, got %v", err)
	}

	if _, err := svc.SendPush(ctx, SendPushParams{Ref: tripRef("user-1", week.Monday), ETAMinutes: 5}); err != nil {
		t.Fatalf("SendPush failed: %v", err)
	}
	if _, err := svc.SendPush(ctx, SendPushParams{Ref: tripRef("user-2", week.Monday), ETAMinutes: 5}); err != nil {
		t.Fatalf("SendPush failed: %v", err)
	}

	trip, err := svc.GetTrip(ctx, tripRef("user-1", week.Monday))
	if err != nil {
		t.Fatalf("GetTrip failed: %v", err)
	}
	if trip.UserID != "user-1" {
		t.Fatalf("unexpected trip owner %q", trip.UserID)
	}

	// Admin reads another user's trip through the explicit user reference.
	adminRef := TripRef{
		Principal: Principal{UserID: "admin-1", IsAdmin: true},
		UserID:    "user-2",
		WeekStart: testWeekStart,
		Day:       week.Monday,
	}
	if _, err := svc.GetTrip(ctx, adminRef); err != nil {
		t.Fatalf("admin GetTrip failed: %v", err)
	}

	own, err := svc.ListTrips(ctx, ListTripsParams{Principal: Principal{UserID: "user-1"}, UserID: "user-2"})
	if err != nil {
		t.Fatalf("ListTrips failed: %v", err)
	}
	for _, trip := range own {
		if trip.UserID != "user-1" {
			t.Fatalf("non-admin listing leaked trip for %q", trip.UserID)
		}
	}

	all, err := svc.ListTrips(ctx, ListTripsParams{Principal: Principal{UserID: "admin-1", IsAdmin: true}})
	if err != nil {
		t.Fatalf("ListTrips failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected two trips for the admin listing, got %d", len(all))
	}
}
