package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/transport-scheduler/internal/persistence"
	"github.com/example/transport-scheduler/internal/week"
)

// fixedNow is a Tuesday; the following Monday is 2026-01-12.
var fixedNow = time.Date(2026, time.January, 6, 10, 0, 0, 0, time.UTC)

const testWeekStart = "2026-01-12"

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type scheduleStoreStub struct {
	docs        map[string]persistence.WeekScheduleDoc
	createCalls int
	createErr   error
	listCalls   []persistence.ScheduleFilter
}

func newScheduleStoreStub() *scheduleStoreStub {
	return &scheduleStoreStub{docs: make(map[string]persistence.WeekScheduleDoc)}
}

func (s *scheduleStoreStub) CreateSchedule(_ context.Context, doc persistence.WeekScheduleDoc) error {
	s.createCalls++
	if s.createErr != nil {
		return s.createErr
	}
	if _, ok := s.docs[doc.ID]; ok {
		return persistence.ErrDuplicate
	}
	s.docs[doc.ID] = doc
	return nil
}

func (s *scheduleStoreStub) GetSchedule(_ context.Context, id string) (persistence.WeekScheduleDoc, error) {
	doc, ok := s.docs[id]
	if !ok {
		return persistence.WeekScheduleDoc{}, persistence.ErrNotFound
	}
	return doc, nil
}

func (s *scheduleStoreStub) UpdateScheduleStatus(_ context.Context, id, status, reviewerID, note string, reviewedAt time.Time) error {
	doc, ok := s.docs[id]
	if !ok {
		return persistence.ErrNotFound
	}
	doc.Status = status
	doc.ReviewerID = reviewerID
	doc.ReviewNote = note
	doc.ReviewedAt = &reviewedAt
	s.docs[id] = doc
	return nil
}

func (s *scheduleStoreStub) ListSchedules(_ context.Context, filter persistence.ScheduleFilter) ([]persistence.WeekScheduleDoc, error) {
	s.listCalls = append(s.listCalls, filter)
	docs := make([]persistence.WeekScheduleDoc, 0, len(s.docs))
	for _, doc := range s.docs {
		if filter.UserID != "" && doc.UserID != filter.UserID {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func validWeekDays() week.Schedule {
	return week.Schedule{
		week.Monday: {
			Pickup: &week.Pickup{Time: "08:30", AddressID: "addr-1", AddressName: "Home"},
			Drop:   &week.Drop{AddressID: "addr-1", AddressName: "Home"},
		},
		week.Wednesday: {
			Pickup: &week.Pickup{Time: "09:00", AddressName: "Home"},
		},
	}
}

func TestScheduleService_SubmitSchedule(t *testing.T) {
	t.Parallel()

	t.Run("stores a submitted document keyed by user and week", func(t *testing.T) {
		t.Parallel()

		store := newScheduleStoreStub()
		svc := NewScheduleService(store, nil, fixedClock(fixedNow), time.UTC, false, nil)

		doc, err := svc.SubmitSchedule(context.Background(), SubmitScheduleParams{
			Principal: Principal{UserID: "user-1"},
			WeekStart: testWeekStart,
			Days:      validWeekDays(),
		})
		if err != nil {
			t.Fatalf("SubmitSchedule failed: %v", err)
		}
		if doc.ID != "user-1_"+testWeekStart {
			t.Fatalf("unexpected schedule ID %q", doc.ID)
		}
		if doc.Status != "submitted" {
			t.Fatalf("expected submitted status, got %q", doc.Status)
		}
		if !doc.CreatedAt.Equal(fixedNow) {
			t.Fatalf("expected CreatedAt %v, got %v", fixedNow, doc.CreatedAt)
		}
	})

	t.Run("rejects a second submission for the same week", func(t *testing.T) {
		t.Parallel()

		store := newScheduleStoreStub()
		svc := NewScheduleService(store, nil, fixedClock(fixedNow), time.UTC, false, nil)
		params := SubmitScheduleParams{
			Principal: Principal{UserID: "user-1"},
			WeekStart: testWeekStart,
			Days:      validWeekDays(),
		}

		if _, err := svc.SubmitSchedule(context.Background(), params); err != nil {
			t.Fatalf("first submission failed: %v", err)
		}

		// A changed payload makes no difference: the identity key is taken.
		params.Days = week.Schedule{
			week.Friday: {Pickup: &week.Pickup{Time: "07:00", AddressName: "Home"}},
		}
		_, err := svc.SubmitSchedule(context.Background(), params)
		if !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}

		stored := store.docs["user-1_"+testWeekStart]
		if _, ok := stored.Days[week.Friday]; ok {
			t.Fatalf("duplicate submission must not overwrite the stored document")
		}
	})

	t.Run("rejects schedules with no valid day before any write", func(t *testing.T) {
		t.Parallel()

		store := newScheduleStoreStub()
		svc := NewScheduleService(store, nil, fixedClock(fixedNow), time.UTC, false, nil)

		_, err := svc.SubmitSchedule(context.Background(), SubmitScheduleParams{
			Principal: Principal{UserID: "user-1"},
			WeekStart: testWeekStart,
			Days: week.Schedule{
				week.Monday: {Pickup: &week.Pickup{AddressName: "Home"}}, // no time
			},
		})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if store.createCalls != 0 {
			t.Fatalf("expected no store writes, got %d", store.createCalls)
		}
	})

	t.Run("rejects empty schedules before any write", func(t *testing.T) {
		t.Parallel()

		store := newScheduleStoreStub()
		svc := NewScheduleService(store, nil, fixedClock(fixedNow), time.UTC, false, nil)

		_, err := svc.SubmitSchedule(context.Background(), SubmitScheduleParams{
			Principal: Principal{UserID: "user-1"},
			WeekStart: testWeekStart,
			Days:      week.Schedule{},
		})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if vErr.FieldErrors["days"] == "" {
			t.Fatalf("expected a field error on days, got %#v", vErr.FieldErrors)
		}
		if store.createCalls != 0 {
			t.Fatalf("expected no store writes, got %d", store.createCalls)
		}
	})

	t.Run("rejects week starts that are not Mondays", func(t *testing.T) {
		t.Parallel()

		store := newScheduleStoreStub()
		svc := NewScheduleService(store, nil, fixedClock(fixedNow), time.UTC, false, nil)

		_, err := svc.SubmitSchedule(context.Background(), SubmitScheduleParams{
			Principal: Principal{UserID: "user-1"},
			WeekStart: "2026-01-13",
			Days:      validWeekDays(),
		})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if store.createCalls != 0 {
			t.Fatalf("expected no store writes, got %d", store.createCalls)
		}
	})

	t.Run("locks submissions after the Friday deadline when enforced", func(t *testing.T) {
		t.Parallel()

		// 18:00 on the Friday before the target week, one hour past the cutoff.
		lateFriday := time.Date(2026, time.January, 9, 18, 0, 0, 0, time.UTC)
		store := newScheduleStoreStub()
		svc := NewScheduleService(store, nil, fixedClock(lateFriday), time.UTC, true, nil)

		_, err := svc.SubmitSchedule(context.Background(), SubmitScheduleParams{
			Principal: Principal{UserID: "user-1"},
			WeekStart: testWeekStart,
			Days:      validWeekDays(),
		})
		if !errors.Is(err, ErrSubmissionLocked) {
			t.Fatalf("expected ErrSubmissionLocked, got %v", err)
		}
	})

	t.Run("ignores the deadline when enforcement is off", func(t *testing.T) {
		t.Parallel()

		lateFriday := time.Date(2026, time.January, 9, 18, 0, 0, 0, time.UTC)
		store := newScheduleStoreStub()
		svc := NewScheduleService(store, nil, fixedClock(lateFriday), time.UTC, false, nil)

		if _, err := svc.SubmitSchedule(context.Background(), SubmitScheduleParams{
			Principal: Principal{UserID: "user-1"},
			WeekStart: testWeekStart,
			Days:      validWeekDays(),
		}); err != nil {
			t.Fatalf("SubmitSchedule failed: %v", err)
		}
	})
}

func TestScheduleService_ReviewSchedule(t *testing.T) {
	t.Parallel()

	submit := func(t *testing.T, store *scheduleStoreStub, svc *ScheduleService) persistence.WeekScheduleDoc {
		t.Helper()
		doc, err := svc.SubmitSchedule(context.Background(), SubmitScheduleParams{
			Principal: Principal{UserID: "user-1"},
			WeekStart: testWeekStart,
			Days:      validWeekDays(),
		})
		if err != nil {
			t.Fatalf("SubmitSchedule failed: %v", err)
		}
		return doc
	}

	t.Run("requires an administrator", func(t *testing.T) {
		t.Parallel()

		store := newScheduleStoreStub()
		svc := NewScheduleService(store, nil, fixedClock(fixedNow), time.UTC, false, nil)
		doc := submit(t, store, svc)

		_, err := svc.ReviewSchedule(context.Background(), ReviewScheduleParams{
			Principal:  Principal{UserID: "user-1"},
			ScheduleID: doc.ID,
			Approve:    true,
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("records approve and reject decisions, last reviewer wins", func(t *testing.T) {
		t.Parallel()

		store := newScheduleStoreStub()
		svc := NewScheduleService(store, nil, fixedClock(fixedNow), time.UTC, false, nil)
		doc := submit(t, store, svc)

		admin := Principal{UserID: "admin-1", IsAdmin: true}
		reviewed, err := svc.ReviewSchedule(context.Background(), ReviewScheduleParams{
			Principal:  admin,
			ScheduleID: doc.ID,
			Approve:    true,
			Note:       "ok",
		})
		if err != nil {
			t.Fatalf("ReviewSchedule failed: %v", err)
		}
		if reviewed.Status != ScheduleStatusApproved {
			t.Fatalf("expected approved, got %q", reviewed.Status)
		}

		second := Principal{UserID: "admin-2", IsAdmin: true}
		reviewed, err = svc.ReviewSchedule(context.Background(), ReviewScheduleParams{
			Principal:  second,
			ScheduleID: doc.ID,
			Approve:    false,
			Note:       "capacity",
		})
		if err != nil {
			t.Fatalf("second review failed: %v", err)
		}
		if reviewed.Status != ScheduleStatusRejected || reviewed.ReviewerID != "admin-2" {
			t.Fatalf("expected the later decision to win, got status %q reviewer %q", reviewed.Status, reviewed.ReviewerID)
		}
	})

	t.Run("returns ErrNotFound for unknown documents", func(t *testing.T) {
		t.Parallel()

		store := newScheduleStoreStub()
		svc := NewScheduleService(store, nil, fixedClock(fixedNow), time.UTC, false, nil)

		_, err := svc.ReviewSchedule(context.Background(), ReviewScheduleParams{
			Principal:  Principal{UserID: "admin-1", IsAdmin: true},
			ScheduleID: "missing",
			Approve:    true,
		})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestScheduleService_ListSchedules(t *testing.T) {
	t.Parallel()

	t.Run("scopes non-admin callers to their own documents", func(t *testing.T) {
		t.Parallel()

		store := newScheduleStoreStub()
		svc := NewScheduleService(store, nil, fixedClock(fixedNow), time.UTC, false, nil)

		if _, err := svc.ListSchedules(context.Background(), ListSchedulesParams{
			Principal: Principal{UserID: "user-1"},
			UserID:    "user-2",
		}); err != nil {
			t.Fatalf("ListSchedules failed: %v", err)
		}

		if len(store.listCalls) != 1 || store.listCalls[0].UserID != "user-1" {
			t.Fatalf("expected the filter to be forced to the caller, got %#v", store.listCalls)
		}
	})

	t.Run("honors the requested user for administrators", func(t *testing.T) {
		t.Parallel()

		store := newScheduleStoreStub()
		svc := NewScheduleService(store, nil, fixedClock(fixedNow), time.UTC, false, nil)

		if _, err := svc.ListSchedules(context.Background(), ListSchedulesParams{
			Principal: Principal{UserID: "admin-1", IsAdmin: true},
			UserID:    "user-2",
		}); err != nil {
			t.Fatalf("ListSchedules failed: %v", err)
		}

		if len(store.listCalls) != 1 || store.listCalls[0].UserID != "user-2" {
			t.Fatalf("expected the requested user to be honored, got %#v", store.listCalls)
		}
	})
}

func TestScheduleService_GetSchedule(t *testing.T) {
	t.Parallel()

	store := newScheduleStoreStub()
	svc := NewScheduleService(store, nil, fixedClock(fixedNow), time.UTC, false, nil)

	doc, err := svc.SubmitSchedule(context.Background(), SubmitScheduleParams{
		Principal: Principal{UserID: "user-1"},
		WeekStart: testWeekStart,
		Days:      validWeekDays(),
	})
	if err != nil {
		t.Fatalf("SubmitSchedule failed: %v", err)
	}

	if _, err := svc.GetSchedule(context.Background(), Principal{UserID: "user-2"}, doc.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for another user, got %v", err)
	}
	if _, err := svc.GetSchedule(context.Background(), Principal{UserID: "admin", IsAdmin: true}, doc.ID); err != nil {
		t.Fatalf("expected admin read to succeed, got %v", err)
	}
	if _, err := svc.GetSchedule(context.Background(), Principal{UserID: "user-1"}, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestScheduleService_Events(t *testing.T) {
	t.Parallel()

	t.Run("submission and review reach the feed", func(t *testing.T) {
		t.Parallel()

		store := newScheduleStoreStub()
		events := &eventStub{}
		svc := NewScheduleService(store, events, fixedClock(fixedNow), time.UTC, false, nil)

		doc, err := svc.SubmitSchedule(context.Background(), SubmitScheduleParams{
			Principal: Principal{UserID: "user-1"},
			WeekStart: testWeekStart,
			Days:      validWeekDays(),
		})
		if err != nil {
			t.Fatalf("SubmitSchedule failed: %v", err)
		}
		if len(events.scheduleEvents) != 1 {
			t.Fatalf("expected one schedule event, got %#v", events.scheduleEvents)
		}
		submitted := events.scheduleEvents[0]
		if submitted.ScheduleID != doc.ID || submitted.Status != ScheduleStatusSubmitted {
			t.Fatalf("unexpected event: %+v", submitted)
		}
		if !submitted.OccurredAt.Equal(fixedNow) {
			t.Fatalf("expected OccurredAt %v, got %v", fixedNow, submitted.OccurredAt)
		}

		if _, err := svc.ReviewSchedule(context.Background(), ReviewScheduleParams{
			Principal:  Principal{UserID: "admin-1", IsAdmin: true},
			ScheduleID: doc.ID,
			Approve:    true,
		}); err != nil {
			t.Fatalf("ReviewSchedule failed: %v", err)
		}
		if len(events.scheduleEvents) != 2 || events.scheduleEvents[1].Status != ScheduleStatusApproved {
			t.Fatalf("expected the review decision on the feed, got %#v", events.scheduleEvents)
		}
	})

	t.Run("a feed outage does not fail the submission", func(t *testing.T) {
		t.Parallel()

		store := newScheduleStoreStub()
		events := &eventStub{err: errors.New("feed down")}
		svc := NewScheduleService(store, events, fixedClock(fixedNow), time.UTC, false, nil)

		if _, err := svc.SubmitSchedule(context.Background(), SubmitScheduleParams{
			Principal: Principal{UserID: "user-1"},
			WeekStart: testWeekStart,
			Days:      validWeekDays(),
		}); err != nil {
			t.Fatalf("SubmitSchedule failed: %v", err)
		}
	})
}

func TestScheduleService_SubmissionWindow(t *testing.T) {
	t.Parallel()

	svc := NewScheduleService(newScheduleStoreStub(), nil, fixedClock(fixedNow), time.UTC, false, nil)

	deadline, closed, err := svc.SubmissionWindow(testWeekStart)
	if err != nil {
		t.Fatalf("SubmissionWindow failed: %v", err)
	}
	want := time.Date(2026, time.January, 9, 17, 0, 0, 0, time.UTC)
	if !deadline.Equal(want) {
		t.Fatalf("expected deadline %v, got %v", want, deadline)
	}
	if closed {
		t.Fatalf("window should still be open on the preceding Tuesday")
	}
}
