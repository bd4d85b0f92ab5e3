package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/transport-scheduler/internal/persistence"
	"github.com/example/transport-scheduler/internal/week"
)

// Trip lifecycle states. A trip's status always reflects the most recent
// operation applied to it; operations never reject out-of-order arrivals.
const (
	TripStatusPending    = "pending"
	TripStatusInProgress = "in_progress"
	TripStatusCompleted  = "completed"
	TripStatusCancelled  = "cancelled"
)

// Notification types appended by trip operations.
const (
	NotificationTypeDriverArrival = "driver_arrival"
	NotificationTypeTripCompleted = "trip_completed"
)

// ETAs applied when an operation carries no explicit estimate.
const (
	defaultPushETAMinutes = 12
	startTripETAMinutes   = 10
)

// TripStore captures the persistence interactions needed by the trip service.
type TripStore interface {
	CreateTrip(ctx context.Context, trip persistence.Trip) error
	GetTrip(ctx context.Context, id string) (persistence.Trip, error)
	UpdateTrip(ctx context.Context, trip persistence.Trip) error
	ListTrips(ctx context.Context, filter persistence.TripFilter) ([]persistence.Trip, error)
}

// ScheduleReader resolves the approved week schedule a trip is seeded from.
type ScheduleReader interface {
	GetSchedule(ctx context.Context, id string) (persistence.WeekScheduleDoc, error)
}

// NotificationAppender records the per-user notification rows that trip
// pushes produce.
type NotificationAppender interface {
	AppendNotification(ctx context.Context, notification persistence.Notification) error
}

// TripService orchestrates the trip lifecycle: push, QR validation, start and
// end. Trips are created lazily on the first operation that touches them.
type TripService struct {
	trips         TripStore
	schedules     ScheduleReader
	notifications NotificationAppender
	queue         NotificationQueue
	events        EventPublisher
	idGenerator   func() string
	now           func() time.Time
	logger        *slog.Logger
}

// NewTripService wires dependencies for trip operations. The queue and event
// publisher may be nil; delivery then degrades to stored notifications only.
func NewTripService(trips TripStore, schedules ScheduleReader, notifications NotificationAppender, queue NotificationQueue, events EventPublisher, idGenerator func() string, now func() time.Time, logger *slog.Logger) *TripService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &TripService{
		trips:         trips,
		schedules:     schedules,
		notifications: notifications,
		queue:         queue,
		events:        events,
		idGenerator:   idGenerator,
		now:           now,
		logger:        defaultLogger(logger),
	}
}

func (s *TripService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "TripService", operation, attrs...)
}

// TripID derives the identity key for one day's trip.
func TripID(userID, weekStart string, day week.DayKey) string {
	return userID + "_" + weekStart + "_" + string(day)
}

func (s *TripService) resolveRef(ref TripRef) (userID string, err error) {
	userID = ref.UserID
	if userID == "" {
		userID = ref.Principal.UserID
	}
	if userID != ref.Principal.UserID && !ref.Principal.IsAdmin {
		return "", ErrUnauthorized
	}
	if !ref.Day.Valid() {
		vErr := &ValidationError{}
		vErr.add("day", "unknown day")
		return "", vErr
	}
	if _, parseErr := week.ParseWeekStart(ref.WeekStart, time.UTC); parseErr != nil {
		vErr := &ValidationError{}
		vErr.add("week_start", "week start must be a Monday in YYYY-MM-DD form")
		return "", vErr
	}
	return userID, nil
}

// ensureTrip loads the trip at the ref's identity key, creating it from the
// user's submitted schedule on first touch. A concurrent create by another
// caller is absorbed by re-reading the winner's row.
func (s *TripService) ensureTrip(ctx context.Context, userID string, ref TripRef) (persistence.Trip, error) {
	id := TripID(userID, ref.WeekStart, ref.Day)
	trip, err := s.trips.GetTrip(ctx, id)
	if err == nil {
		return trip, nil
	}
	if !errors.Is(err, persistence.ErrNotFound) {
		return persistence.Trip{}, err
	}

	trip = persistence.Trip{
		ID:        id,
		UserID:    userID,
		WeekStart: ref.WeekStart,
		Day:       ref.Day,
		Status:    TripStatusPending,
		CreatedAt: s.now(),
	}
	if s.schedules != nil {
		doc, schedErr := s.schedules.GetSchedule(ctx, ScheduleID(userID, ref.WeekStart))
		if schedErr == nil {
			if day, ok := doc.Days[ref.Day]; ok && day.Pickup != nil {
				trip.ScheduledTime = day.Pickup.Time
				trip.AddressID = day.Pickup.AddressID
				trip.AddressName = day.Pickup.AddressName
			}
		} else if !errors.Is(schedErr, persistence.ErrNotFound) {
			return persistence.Trip{}, schedErr
		}
	}

	if err := s.trips.CreateTrip(ctx, trip); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			return s.trips.GetTrip(ctx, id)
		}
		return persistence.Trip{}, err
	}
	return trip, nil
}

// SendPush records a driver-assignment push against the trip and appends a
// notification for fan-out. Repeated pushes each append a fresh notification
// row; the trip itself keeps only the latest push timestamp and ETA.
func (s *TripService) SendPush(ctx context.Context, params SendPushParams) (trip persistence.Trip, err error) {
	if s == nil {
		err = fmt.Errorf("TripService is nil")
		return
	}
	if s.trips == nil {
		err = fmt.Errorf("trip store not configured")
		return
	}

	logger := s.loggerWith(ctx, "SendPush",
		"week_start", params.Ref.WeekStart,
		"day", string(params.Ref.Day),
		"eta_minutes", params.ETAMinutes,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "push failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("trip_id", trip.ID).InfoContext(ctx, "push recorded")
	}()

	var userID string
	userID, err = s.resolveRef(params.Ref)
	if err != nil {
		return
	}
	if params.ETAMinutes < 0 {
		vErr := &ValidationError{}
		vErr.add("eta_minutes", "eta must not be negative")
		err = vErr
		return
	}

	trip, err = s.ensureTrip(ctx, userID, params.Ref)
	if err != nil {
		return
	}

	now := s.now()
	// An omitted ETA falls back to the standard estimate.
	eta := params.ETAMinutes
	if eta == 0 {
		eta = defaultPushETAMinutes
	}
	trip.PushSentAt = &now
	trip.ETAMinutes = &eta
	if params.DriverName != "" {
		trip.DriverName = params.DriverName
	}
	if params.TrackingLink != "" {
		trip.TrackingLink = params.TrackingLink
	}

	if err = s.trips.UpdateTrip(ctx, trip); err != nil {
		trip = persistence.Trip{}
		return
	}

	if s.notifications != nil {
		notification := persistence.Notification{
			ID:        s.idGenerator(),
			UserID:    userID,
			Type:      NotificationTypeDriverArrival,
			Title:     "Your cab is on the way",
			Body:      fmt.Sprintf("Your driver arrives in about %d minutes.", eta),
			CreatedAt: now,
		}
		if err = s.notifications.AppendNotification(ctx, notification); err != nil {
			trip = persistence.Trip{}
			return
		}
		s.enqueue(ctx, logger, NotificationMessage{NotificationID: notification.ID, UserID: userID})
		s.announce(ctx, logger, notification)
	}

	s.publish(ctx, logger, TripEvent{
		UserID:     userID,
		TripID:     trip.ID,
		Status:     trip.Status,
		ETAMinutes: trip.ETAMinutes,
		OccurredAt: now,
	})
	return
}

// ValidateQR records a boarding QR scan and moves the trip in progress.
func (s *TripService) ValidateQR(ctx context.Context, params ValidateQRParams) (trip persistence.Trip, err error) {
	if s == nil {
		err = fmt.Errorf("TripService is nil")
		return
	}
	if s.trips == nil {
		err = fmt.Errorf("trip store not configured")
		return
	}

	logger := s.loggerWith(ctx, "ValidateQR",
		"week_start", params.Ref.WeekStart,
		"day", string(params.Ref.Day),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "qr validation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("trip_id", trip.ID).InfoContext(ctx, "qr validated")
	}()

	var userID string
	userID, err = s.resolveRef(params.Ref)
	if err != nil {
		return
	}

	trip, err = s.ensureTrip(ctx, userID, params.Ref)
	if err != nil {
		return
	}

	now := s.now()
	trip.QRValidatedAt = &now
	trip.Status = TripStatusInProgress

	if err = s.trips.UpdateTrip(ctx, trip); err != nil {
		trip = persistence.Trip{}
		return
	}

	s.publish(ctx, logger, TripEvent{UserID: userID, TripID: trip.ID, Status: trip.Status, OccurredAt: now})
	return
}

// StartTrip records the driver's departure and pushes a fixed short ETA so
// the rider knows the cab is moving.
func (s *TripService) StartTrip(ctx context.Context, params StartTripParams) (trip persistence.Trip, err error) {
	if s == nil {
		err = fmt.Errorf("TripService is nil")
		return
	}
	if s.trips == nil {
		err = fmt.Errorf("trip store not configured")
		return
	}

	logger := s.loggerWith(ctx, "StartTrip",
		"week_start", params.Ref.WeekStart,
		"day", string(params.Ref.Day),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "trip start failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("trip_id", trip.ID).InfoContext(ctx, "trip started")
	}()

	var userID string
	userID, err = s.resolveRef(params.Ref)
	if err != nil {
		return
	}

	trip, err = s.ensureTrip(ctx, userID, params.Ref)
	if err != nil {
		return
	}

	now := s.now()
	trip.StartedAt = &now
	if params.Geo != nil {
		geo := *params.Geo
		trip.StartGeo = &geo
	}
	trip.Status = TripStatusInProgress

	if err = s.trips.UpdateTrip(ctx, trip); err != nil {
		trip = persistence.Trip{}
		return
	}

	s.publish(ctx, logger, TripEvent{UserID: userID, TripID: trip.ID, Status: trip.Status, OccurredAt: now})

	trip, err = s.SendPush(ctx, SendPushParams{Ref: params.Ref, ETAMinutes: startTripETAMinutes})
	return
}

// EndTrip records the driver's arrival and completes the trip.
func (s *TripService) EndTrip(ctx context.Context, params EndTripParams) (trip persistence.Trip, err error) {
	if s == nil {
		err = fmt.Errorf("TripService is nil")
		return
	}
	if s.trips == nil {
		err = fmt.Errorf("trip store not configured")
		return
	}

	logger := s.loggerWith(ctx, "EndTrip",
		"week_start", params.Ref.WeekStart,
		"day", string(params.Ref.Day),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "trip end failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("trip_id", trip.ID).InfoContext(ctx, "trip ended")
	}()

	var userID string
	userID, err = s.resolveRef(params.Ref)
	if err != nil {
		return
	}

	trip, err = s.ensureTrip(ctx, userID, params.Ref)
	if err != nil {
		return
	}

	now := s.now()
	trip.EndedAt = &now
	if params.Geo != nil {
		geo := *params.Geo
		trip.EndGeo = &geo
	}
	trip.Status = TripStatusCompleted

	if err = s.trips.UpdateTrip(ctx, trip); err != nil {
		trip = persistence.Trip{}
		return
	}

	if s.notifications != nil {
		notification := persistence.Notification{
			ID:        s.idGenerator(),
			UserID:    userID,
			Type:      NotificationTypeTripCompleted,
			Title:     "Trip completed",
			Body:      "You have arrived. Thanks for riding with us.",
			CreatedAt: now,
		}
		if err = s.notifications.AppendNotification(ctx, notification); err != nil {
			trip = persistence.Trip{}
			return
		}
		s.enqueue(ctx, logger, NotificationMessage{NotificationID: notification.ID, UserID: userID})
		s.announce(ctx, logger, notification)
	}

	s.publish(ctx, logger, TripEvent{UserID: userID, TripID: trip.ID, Status: trip.Status, OccurredAt: now})
	return
}

// GetTrip returns one trip. Non-admin callers may only read their own.
func (s *TripService) GetTrip(ctx context.Context, ref TripRef) (persistence.Trip, error) {
	if s == nil {
		return persistence.Trip{}, fmt.Errorf("TripService is nil")
	}
	if s.trips == nil {
		return persistence.Trip{}, fmt.Errorf("trip store not configured")
	}

	userID, err := s.resolveRef(ref)
	if err != nil {
		return persistence.Trip{}, err
	}

	trip, err := s.trips.GetTrip(ctx, TripID(userID, ref.WeekStart, ref.Day))
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.Trip{}, ErrNotFound
		}
		return persistence.Trip{}, err
	}
	return trip, nil
}

// ListTrips returns trips matching the filter. Non-admin callers are always
// scoped to their own trips.
func (s *TripService) ListTrips(ctx context.Context, params ListTripsParams) ([]persistence.Trip, error) {
	if s == nil {
		return nil, fmt.Errorf("TripService is nil")
	}
	if s.trips == nil {
		return nil, fmt.Errorf("trip store not configured")
	}

	userID := params.UserID
	if !params.Principal.IsAdmin {
		userID = params.Principal.UserID
	}
	return s.trips.ListTrips(ctx, persistence.TripFilter{UserID: userID, Status: params.Status})
}

// enqueue hands the notification to the fan-out queue. Delivery is best
// effort; a broker outage must not fail the trip operation.
func (s *TripService) enqueue(ctx context.Context, logger *slog.Logger, message NotificationMessage) {
	if s.queue == nil {
		return
	}
	if err := s.queue.EnqueueNotification(ctx, message); err != nil {
		logger.WarnContext(ctx, "failed to enqueue notification", "error", err, "notification_id", message.NotificationID)
	}
}

// publish emits the trip event to the realtime feed. Best effort as well.
func (s *TripService) publish(ctx context.Context, logger *slog.Logger, event TripEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishTripEvent(ctx, event); err != nil {
		logger.WarnContext(ctx, "failed to publish trip event", "error", err, "trip_id", event.TripID)
	}
}

// announce mirrors a stored notification onto the realtime feed so open
// clients refresh without polling. Best effort as well.
func (s *TripService) announce(ctx context.Context, logger *slog.Logger, notification persistence.Notification) {
	if s.events == nil {
		return
	}
	event := NotificationEvent{
		UserID:         notification.UserID,
		NotificationID: notification.ID,
		Type:           notification.Type,
		Title:          notification.Title,
		OccurredAt:     notification.CreatedAt,
	}
	if err := s.events.PublishNotificationEvent(ctx, event); err != nil {
		logger.WarnContext(ctx, "failed to publish notification event", "error", err, "notification_id", notification.ID)
	}
}
