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

// Change request review states.
const (
	ChangeRequestStatusPending  = "pending"
	ChangeRequestStatusApproved = "approved"
	ChangeRequestStatusRejected = "rejected"
)

// ChangeRequestStore captures the persistence interactions needed by the service.
type ChangeRequestStore interface {
	UpsertChangeRequest(ctx context.Context, request persistence.ChangeRequest) error
	GetChangeRequest(ctx context.Context, id string) (persistence.ChangeRequest, error)
	UpdateChangeRequestStatus(ctx context.Context, id, status, reviewerID, note string, reviewedAt time.Time) error
	ListChangeRequests(ctx context.Context, userID string) ([]persistence.ChangeRequest, error)
}

// ChangeRequestService orchestrates single-day pickup amendments.
type ChangeRequestService struct {
	requests ChangeRequestStore
	events   EventPublisher
	now      func() time.Time
	location *time.Location
	leadDays int
	logger   *slog.Logger
}

// NewChangeRequestService wires dependencies for change request operations.
// The event publisher may be nil; the feed then goes silent. leadDays is the
// advance-notice window; a non-positive value falls back to 7.
func NewChangeRequestService(requests ChangeRequestStore, events EventPublisher, now func() time.Time, location *time.Location, leadDays int, logger *slog.Logger) *ChangeRequestService {
	if now == nil {
		now = time.Now
	}
	if location == nil {
		location = time.Local
	}
	if leadDays <= 0 {
		leadDays = 7
	}
	return &ChangeRequestService{
		requests: requests,
		events:   events,
		now:      now,
		location: location,
		leadDays: leadDays,
		logger:   defaultLogger(logger),
	}
}

func (s *ChangeRequestService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ChangeRequestService", operation, attrs...)
}

// ChangeRequestID derives the identity key for a single-day amendment.
func ChangeRequestID(userID, weekStart string, day week.DayKey) string {
	return userID + "_" + weekStart + "_" + string(day)
}

// Eligible reports whether the given day can still be amended at the service
// clock. The check is an exact duration comparison against midnight of the
// target day.
func (s *ChangeRequestService) Eligible(weekStartValue string, day week.DayKey) (bool, error) {
	weekStart, err := week.ParseWeekStart(weekStartValue, s.location)
	if err != nil {
		return false, err
	}
	if !day.Valid() {
		return false, fmt.Errorf("week: unknown day %q", string(day))
	}
	target := week.DateFor(weekStart, day)
	return week.AtLeastDaysAway(target, s.now(), s.leadDays), nil
}

// SubmitChangeRequest validates the amendment and upserts it at its identity
// key. Resubmitting before review replaces the pending record. Eligibility is
// checked against the clock at submission time, immediately before the write.
func (s *ChangeRequestService) SubmitChangeRequest(ctx context.Context, params SubmitChangeRequestParams) (request persistence.ChangeRequest, err error) {
	if s == nil {
		err = fmt.Errorf("ChangeRequestService is nil")
		return
	}
	if s.requests == nil {
		err = fmt.Errorf("change request store not configured")
		return
	}

	logger := s.loggerWith(ctx, "SubmitChangeRequest",
		"user_id", params.Principal.UserID,
		"week_start", params.WeekStart,
		"day", string(params.Day),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "change request failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("request_id", request.ID).InfoContext(ctx, "change request submitted")
	}()

	vErr := &ValidationError{}
	weekStart, parseErr := week.ParseWeekStart(params.WeekStart, s.location)
	if parseErr != nil {
		vErr.add("week_start", "week start must be a Monday in YYYY-MM-DD form")
	}
	if !params.Day.Valid() {
		vErr.add("day", "unknown day")
	}
	if params.NewPickup.Time == "" || (params.NewPickup.AddressID == "" && params.NewPickup.AddressName == "") {
		vErr.add("new_pickup", "pickup needs both a time and an address")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	target := week.DateFor(weekStart, params.Day)
	if !week.AtLeastDaysAway(target, s.now(), s.leadDays) {
		err = ErrChangeWindowClosed
		return
	}

	request = persistence.ChangeRequest{
		ID:          ChangeRequestID(params.Principal.UserID, params.WeekStart, params.Day),
		UserID:      params.Principal.UserID,
		WeekStart:   params.WeekStart,
		Day:         params.Day,
		OldPickup:   params.OldPickup,
		NewPickup:   params.NewPickup,
		Status:      ChangeRequestStatusPending,
		RequestedAt: s.now(),
	}

	if err = s.requests.UpsertChangeRequest(ctx, request); err != nil {
		request = persistence.ChangeRequest{}
		return
	}

	s.publish(ctx, logger, ChangeRequestEvent{
		UserID:     request.UserID,
		RequestID:  request.ID,
		WeekStart:  request.WeekStart,
		Day:        string(request.Day),
		Status:     request.Status,
		OccurredAt: request.RequestedAt,
	})
	return
}

// ReviewChangeRequest records an approve or reject decision. The decision
// overwrites any previous one; the last reviewer to write wins.
func (s *ChangeRequestService) ReviewChangeRequest(ctx context.Context, params ReviewChangeRequestParams) (request persistence.ChangeRequest, err error) {
	if s == nil {
		err = fmt.Errorf("ChangeRequestService is nil")
		return
	}
	if s.requests == nil {
		err = fmt.Errorf("change request store not configured")
		return
	}
	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	logger := s.loggerWith(ctx, "ReviewChangeRequest",
		"request_id", params.RequestID,
		"reviewer_id", params.Principal.UserID,
		"approve", params.Approve,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "change request review failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "change request reviewed")
	}()

	status := ChangeRequestStatusRejected
	if params.Approve {
		status = ChangeRequestStatusApproved
	}

	reviewedAt := s.now()
	if err = s.requests.UpdateChangeRequestStatus(ctx, params.RequestID, status, params.Principal.UserID, params.Note, reviewedAt); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = ErrNotFound
		}
		return
	}

	request, err = s.requests.GetChangeRequest(ctx, params.RequestID)
	if errors.Is(err, persistence.ErrNotFound) {
		err = ErrNotFound
	}
	if err != nil {
		return
	}

	s.publish(ctx, logger, ChangeRequestEvent{
		UserID:     request.UserID,
		RequestID:  request.ID,
		WeekStart:  request.WeekStart,
		Day:        string(request.Day),
		Status:     request.Status,
		OccurredAt: reviewedAt,
	})
	return
}

// publish emits the change request event to the realtime feed. Best effort; a
// feed outage must not fail the operation.
func (s *ChangeRequestService) publish(ctx context.Context, logger *slog.Logger, event ChangeRequestEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishChangeRequestEvent(ctx, event); err != nil {
		logger.WarnContext(ctx, "failed to publish change request event", "error", err, "request_id", event.RequestID)
	}
}

// ListChangeRequests returns the caller's requests. Administrators see every
// user's requests.
func (s *ChangeRequestService) ListChangeRequests(ctx context.Context, principal Principal) ([]persistence.ChangeRequest, error) {
	if s == nil {
		return nil, fmt.Errorf("ChangeRequestService is nil")
	}
	if s.requests == nil {
		return nil, fmt.Errorf("change request store not configured")
	}

	userID := principal.UserID
	if principal.IsAdmin {
		userID = ""
	}
	return s.requests.ListChangeRequests(ctx, userID)
}
