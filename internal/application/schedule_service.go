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

// Week schedule review states.
const (
	ScheduleStatusSubmitted = "submitted"
	ScheduleStatusApproved  = "approved"
	ScheduleStatusRejected  = "rejected"
)

// ScheduleStore captures the persistence interactions needed by the schedule service.
type ScheduleStore interface {
	CreateSchedule(ctx context.Context, doc persistence.WeekScheduleDoc) error
	GetSchedule(ctx context.Context, id string) (persistence.WeekScheduleDoc, error)
	UpdateScheduleStatus(ctx context.Context, id, status, reviewerID, note string, reviewedAt time.Time) error
	ListSchedules(ctx context.Context, filter persistence.ScheduleFilter) ([]persistence.WeekScheduleDoc, error)
}

// ScheduleService orchestrates weekly schedule submission and review.
type ScheduleService struct {
	schedules       ScheduleStore
	events          EventPublisher
	now             func() time.Time
	location        *time.Location
	enforceDeadline bool
	logger          *slog.Logger
}

// NewScheduleService wires dependencies for schedule operations. The event
// publisher may be nil; the feed then goes silent. The deadline gate is off
// unless enforceDeadline is set; the window is still computed so callers can
// display it.
func NewScheduleService(schedules ScheduleStore, events EventPublisher, now func() time.Time, location *time.Location, enforceDeadline bool, logger *slog.Logger) *ScheduleService {
	if now == nil {
		now = time.Now
	}
	if location == nil {
		location = time.Local
	}
	return &ScheduleService{
		schedules:       schedules,
		events:          events,
		now:             now,
		location:        location,
		enforceDeadline: enforceDeadline,
		logger:          defaultLogger(logger),
	}
}

func (s *ScheduleService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ScheduleService", operation, attrs...)
}

// ScheduleID derives the identity key for a user's week schedule.
func ScheduleID(userID, weekStart string) string {
	return userID + "_" + weekStart
}

// SubmitSchedule validates and persists a week schedule. The identity key is
// written at most once; a repeat submission for the same week fails with
// ErrAlreadyExists before any day entry is touched.
func (s *ScheduleService) SubmitSchedule(ctx context.Context, params SubmitScheduleParams) (doc persistence.WeekScheduleDoc, err error) {
	if s == nil {
		err = fmt.Errorf("ScheduleService is nil")
		return
	}
	if s.schedules == nil {
		err = fmt.Errorf("schedule store not configured")
		return
	}

	logger := s.loggerWith(ctx, "SubmitSchedule",
		"user_id", params.Principal.UserID,
		"week_start", params.WeekStart,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "schedule submission failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("schedule_id", doc.ID).InfoContext(ctx, "schedule submitted")
	}()

	vErr := &ValidationError{}
	weekStart, parseErr := week.ParseWeekStart(params.WeekStart, s.location)
	if parseErr != nil {
		vErr.add("week_start", "week start must be a Monday in YYYY-MM-DD form")
	}
	validateDays(params.Days, vErr)
	if len(params.Days.ValidDays()) == 0 && vErr.FieldErrors["days"] == "" {
		vErr.add("days", "at least one day needs a pickup time and address")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if s.enforceDeadline && week.DeadlinePassed(s.now(), weekStart) {
		err = ErrSubmissionLocked
		return
	}

	doc = persistence.WeekScheduleDoc{
		ID:        ScheduleID(params.Principal.UserID, params.WeekStart),
		UserID:    params.Principal.UserID,
		WeekStart: params.WeekStart,
		Days:      params.Days,
		Status:    ScheduleStatusSubmitted,
		CreatedAt: s.now(),
	}

	if err = s.schedules.CreateSchedule(ctx, doc); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			err = ErrAlreadyExists
		}
		doc = persistence.WeekScheduleDoc{}
		return
	}

	s.publish(ctx, logger, ScheduleEvent{
		UserID:     doc.UserID,
		ScheduleID: doc.ID,
		WeekStart:  doc.WeekStart,
		Status:     doc.Status,
		OccurredAt: doc.CreatedAt,
	})
	return
}

// ReviewSchedule records an approve or reject decision. Reviews overwrite any
// previous decision; the last reviewer to write wins.
func (s *ScheduleService) ReviewSchedule(ctx context.Context, params ReviewScheduleParams) (doc persistence.WeekScheduleDoc, err error) {
	if s == nil {
		err = fmt.Errorf("ScheduleService is nil")
		return
	}
	if s.schedules == nil {
		err = fmt.Errorf("schedule store not configured")
		return
	}
	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	logger := s.loggerWith(ctx, "ReviewSchedule",
		"schedule_id", params.ScheduleID,
		"reviewer_id", params.Principal.UserID,
		"approve", params.Approve,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "schedule review failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "schedule reviewed")
	}()

	status := ScheduleStatusRejected
	if params.Approve {
		status = ScheduleStatusApproved
	}

	reviewedAt := s.now()
	if err = s.schedules.UpdateScheduleStatus(ctx, params.ScheduleID, status, params.Principal.UserID, params.Note, reviewedAt); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = ErrNotFound
		}
		return
	}

	doc, err = s.schedules.GetSchedule(ctx, params.ScheduleID)
	if errors.Is(err, persistence.ErrNotFound) {
		err = ErrNotFound
	}
	if err != nil {
		return
	}

	s.publish(ctx, logger, ScheduleEvent{
		UserID:     doc.UserID,
		ScheduleID: doc.ID,
		WeekStart:  doc.WeekStart,
		Status:     doc.Status,
		OccurredAt: reviewedAt,
	})
	return
}

// publish emits the schedule event to the realtime feed. Best effort; a feed
// outage must not fail the operation.
func (s *ScheduleService) publish(ctx context.Context, logger *slog.Logger, event ScheduleEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishScheduleEvent(ctx, event); err != nil {
		logger.WarnContext(ctx, "failed to publish schedule event", "error", err, "schedule_id", event.ScheduleID)
	}
}

// GetSchedule returns one document. Non-admin callers may only read their own.
func (s *ScheduleService) GetSchedule(ctx context.Context, principal Principal, scheduleID string) (persistence.WeekScheduleDoc, error) {
	if s == nil {
		return persistence.WeekScheduleDoc{}, fmt.Errorf("ScheduleService is nil")
	}
	if s.schedules == nil {
		return persistence.WeekScheduleDoc{}, fmt.Errorf("schedule store not configured")
	}

	doc, err := s.schedules.GetSchedule(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.WeekScheduleDoc{}, ErrNotFound
		}
		return persistence.WeekScheduleDoc{}, err
	}
	if doc.UserID != principal.UserID && !principal.IsAdmin {
		return persistence.WeekScheduleDoc{}, ErrUnauthorized
	}
	return doc, nil
}

// ListSchedules returns documents matching the filter. Non-admin callers are
// always scoped to their own documents regardless of the requested user.
func (s *ScheduleService) ListSchedules(ctx context.Context, params ListSchedulesParams) ([]persistence.WeekScheduleDoc, error) {
	if s == nil {
		return nil, fmt.Errorf("ScheduleService is nil")
	}
	if s.schedules == nil {
		return nil, fmt.Errorf("schedule store not configured")
	}

	userID := params.UserID
	if !params.Principal.IsAdmin {
		userID = params.Principal.UserID
	}

	return s.schedules.ListSchedules(ctx, persistence.ScheduleFilter{
		UserID:    userID,
		WeekStart: params.WeekStart,
		Status:    params.Status,
	})
}

// SubmissionWindow reports the deadline for the week and whether it has
// already passed at the service clock.
func (s *ScheduleService) SubmissionWindow(weekStartValue string) (deadline time.Time, closed bool, err error) {
	weekStart, err := week.ParseWeekStart(weekStartValue, s.location)
	if err != nil {
		return time.Time{}, false, err
	}
	deadline = week.SubmissionDeadline(weekStart)
	return deadline, week.DeadlinePassed(s.now(), weekStart), nil
}

func validateDays(days week.Schedule, vErr *ValidationError) {
	if len(days) == 0 {
		vErr.add("days", "at least one day needs a pickup time and address")
		return
	}
	for key, day := range days {
		if !key.Valid() {
			vErr.add("days", fmt.Sprintf("unknown day %q", string(key)))
			return
		}
		if day.Pickup != nil && !day.ValidPickup() {
			vErr.add(string(key), "pickup needs both a time and an address")
		}
	}
}
