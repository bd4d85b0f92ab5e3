package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/transport-scheduler/internal/application"
	"github.com/example/transport-scheduler/internal/persistence"
	"github.com/example/transport-scheduler/internal/week"
)

type scheduleServiceStub struct {
	doc        persistence.WeekScheduleDoc
	err        error
	submitted  []application.SubmitScheduleParams
	reviewed   []application.ReviewScheduleParams
	requested  []string
	listParams []application.ListSchedulesParams
}

func (s *scheduleServiceStub) SubmitSchedule(_ context.Context, params application.SubmitScheduleParams) (persistence.WeekScheduleDoc, error) {
	s.submitted = append(s.submitted, params)
	return s.doc, s.err
}

func (s *scheduleServiceStub) ReviewSchedule(_ context.Context, params application.ReviewScheduleParams) (persistence.WeekScheduleDoc, error) {
	s.reviewed = append(s.reviewed, params)
	return s.doc, s.err
}

func (s *scheduleServiceStub) GetSchedule(_ context.Context, _ application.Principal, scheduleID string) (persistence.WeekScheduleDoc, error) {
	s.requested = append(s.requested, scheduleID)
	return s.doc, s.err
}

func (s *scheduleServiceStub) ListSchedules(_ context.Context, params application.ListSchedulesParams) ([]persistence.WeekScheduleDoc, error) {
	s.listParams = append(s.listParams, params)
	if s.err != nil {
		return nil, s.err
	}
	return []persistence.WeekScheduleDoc{s.doc}, nil
}

func sampleScheduleDoc() persistence.WeekScheduleDoc {
	return persistence.WeekScheduleDoc{
		ID:        "user-1_2026-01-12",
		UserID:    "user-1",
		WeekStart: "2026-01-12",
		Days: week.Schedule{
			week.Monday: week.DaySchedule{
				Pickup: &week.Pickup{Time: "08:30", AddressID: "addr-1", AddressName: "Home"},
			},
		},
		Status:    "submitted",
		CreatedAt: time.Date(2026, time.January, 6, 10, 0, 0, 0, time.UTC),
	}
}

func authedRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	principal := application.Principal{UserID: "user-1"}
	return req.WithContext(ContextWithPrincipal(req.Context(), principal))
}

func TestScheduleHandler_Create(t *testing.T) {
	t.Parallel()

	body := `{"week_start":"2026-01-12","days":{"Mon":{"pickup":{"time":"08:30","address_id":"addr-1","address_name":"Home"}}}}`

	t.Run("submits and returns the created document", func(t *testing.T) {
		t.Parallel()

		stub := &scheduleServiceStub{doc: sampleScheduleDoc()}
		handler := NewScheduleHandler(stub, nil)

		rec := httptest.NewRecorder()
		handler.Create(rec, authedRequest(http.MethodPost, "/schedules", body))

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if len(stub.submitted) != 1 {
			t.Fatalf("expected one submission, got %d", len(stub.submitted))
		}
		params := stub.submitted[0]
		if params.Principal.UserID != "user-1" || params.WeekStart != "2026-01-12" {
			t.Fatalf("unexpected params: %+v", params)
		}
		if pickup := params.Days[week.Monday].Pickup; pickup == nil || pickup.Time != "08:30" {
			t.Fatalf("unexpected decoded days: %+v", params.Days)
		}

		var dto scheduleDTO
		if err := json.NewDecoder(rec.Body).Decode(&dto); err != nil {
			t.Fatalf("decode response failed: %v", err)
		}
		if dto.ID != "user-1_2026-01-12" || dto.Status != "submitted" {
			t.Fatalf("unexpected response: %+v", dto)
		}
	})

	t.Run("maps a duplicate submission to 409", func(t *testing.T) {
		t.Parallel()

		stub := &scheduleServiceStub{err: application.ErrAlreadyExists}
		handler := NewScheduleHandler(stub, nil)

		rec := httptest.NewRecorder()
		handler.Create(rec, authedRequest(http.MethodPost, "/schedules", body))

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		if resp := decodeErrorResponse(t, rec); resp.ErrorCode != "ALREADY_EXISTS" {
			t.Fatalf("unexpected error code %q", resp.ErrorCode)
		}
	})

	t.Run("maps validation failures to 422 with field errors", func(t *testing.T) {
		t.Parallel()

		vErr := &application.ValidationError{FieldErrors: map[string]string{"days": "at least one day must have a pickup"}}
		stub := &scheduleServiceStub{err: vErr}
		handler := NewScheduleHandler(stub, nil)

		rec := httptest.NewRecorder()
		handler.Create(rec, authedRequest(http.MethodPost, "/schedules", body))

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		if resp := decodeErrorResponse(t, rec); resp.Errors["days"] == "" {
			t.Fatalf("expected field errors, got %+v", resp)
		}
	})

	t.Run("rejects a malformed body", func(t *testing.T) {
		t.Parallel()

		stub := &scheduleServiceStub{}
		handler := NewScheduleHandler(stub, nil)

		rec := httptest.NewRecorder()
		handler.Create(rec, authedRequest(http.MethodPost, "/schedules", "{not json"))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if len(stub.submitted) != 0 {
			t.Fatalf("expected no submission for a bad body")
		}
	})

	t.Run("requires an authenticated principal", func(t *testing.T) {
		t.Parallel()

		stub := &scheduleServiceStub{}
		handler := NewScheduleHandler(stub, nil)

		rec := httptest.NewRecorder()
		handler.Create(rec, httptest.NewRequest(http.MethodPost, "/schedules", strings.NewReader(body)))

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}

func TestRouter_ScheduleRoutes(t *testing.T) {
	t.Parallel()

	newRouter := func(stub *scheduleServiceStub) http.Handler {
		return NewRouter(RouterConfig{Schedules: NewScheduleHandler(stub, nil)})
	}

	t.Run("routes a get with the path identifier", func(t *testing.T) {
		t.Parallel()

		stub := &scheduleServiceStub{doc: sampleScheduleDoc()}
		router := newRouter(stub)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, authedRequest(http.MethodGet, "/schedules/user-1_2026-01-12", ""))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if len(stub.requested) != 1 || stub.requested[0] != "user-1_2026-01-12" {
			t.Fatalf("unexpected schedule IDs: %v", stub.requested)
		}
	})

	t.Run("routes a review with the identifier stripped of its suffix", func(t *testing.T) {
		t.Parallel()

		stub := &scheduleServiceStub{doc: sampleScheduleDoc()}
		router := newRouter(stub)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, authedRequest(http.MethodPost, "/schedules/user-1_2026-01-12/review", `{"approve":true}`))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if len(stub.reviewed) != 1 || stub.reviewed[0].ScheduleID != "user-1_2026-01-12" {
			t.Fatalf("unexpected review params: %+v", stub.reviewed)
		}
	})

	t.Run("rejects unsupported methods with an Allow header", func(t *testing.T) {
		t.Parallel()

		router := newRouter(&scheduleServiceStub{})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, authedRequest(http.MethodDelete, "/schedules", ""))

		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", rec.Code)
		}
		if allow := rec.Header().Get("Allow"); allow != "GET, POST" {
			t.Fatalf("unexpected Allow header %q", allow)
		}
	})

	t.Run("applies middleware outermost first", func(t *testing.T) {
		t.Parallel()

		var order []string
		tag := func(name string) func(http.Handler) http.Handler {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}
		router := NewRouter(RouterConfig{
			Schedules:  NewScheduleHandler(&scheduleServiceStub{doc: sampleScheduleDoc()}, nil),
			Middleware: []func(http.Handler) http.Handler{tag("outer"), tag("inner")},
		})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, authedRequest(http.MethodGet, "/schedules", ""))

		if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
			t.Fatalf("unexpected middleware order: %v", order)
		}
	})
}
