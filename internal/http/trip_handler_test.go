package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/transport-scheduler/internal/application"
	"github.com/example/transport-scheduler/internal/persistence"
	"github.com/example/transport-scheduler/internal/week"
)

type tripServiceStub struct {
	trip        persistence.Trip
	err         error
	pushParams  []application.SendPushParams
	qrParams    []application.ValidateQRParams
	startParams []application.StartTripParams
	endParams   []application.EndTripParams
}

func (s *tripServiceStub) SendPush(_ context.Context, params application.SendPushParams) (persistence.Trip, error) {
	s.pushParams = append(s.pushParams, params)
	return s.trip, s.err
}

func (s *tripServiceStub) ValidateQR(_ context.Context, params application.ValidateQRParams) (persistence.Trip, error) {
	s.qrParams = append(s.qrParams, params)
	return s.trip, s.err
}

func (s *tripServiceStub) StartTrip(_ context.Context, params application.StartTripParams) (persistence.Trip, error) {
	s.startParams = append(s.startParams, params)
	return s.trip, s.err
}

func (s *tripServiceStub) EndTrip(_ context.Context, params application.EndTripParams) (persistence.Trip, error) {
	s.endParams = append(s.endParams, params)
	return s.trip, s.err
}

func (s *tripServiceStub) GetTrip(_ context.Context, _ application.TripRef) (persistence.Trip, error) {
	return s.trip, s.err
}

func (s *tripServiceStub) ListTrips(_ context.Context, _ application.ListTripsParams) ([]persistence.Trip, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []persistence.Trip{s.trip}, nil
}

func sampleTrip() persistence.Trip {
	return persistence.Trip{
		ID:        "user-1_2026-01-12_Mon",
		UserID:    "user-1",
		WeekStart: "2026-01-12",
		Day:       week.Monday,
		Status:    "in_progress",
	}
}

func TestTripHandler_ValidateQR(t *testing.T) {
	t.Parallel()

	t.Run("passes the trip reference and ignores a supplied location", func(t *testing.T) {
		t.Parallel()

		stub := &tripServiceStub{trip: sampleTrip()}
		handler := NewTripHandler(stub, nil)

		body := `{"week_start":"2026-01-12","day":"Mon","geo":{"latitude":18.52,"longitude":73.85}}`
		rec := httptest.NewRecorder()
		handler.ValidateQR(rec, authedRequest(http.MethodPost, "/trips/qr", body))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if len(stub.qrParams) != 1 {
			t.Fatalf("expected one validation, got %d", len(stub.qrParams))
		}
		ref := stub.qrParams[0].Ref
		if ref.Principal.UserID != "user-1" || ref.WeekStart != "2026-01-12" || ref.Day != week.Monday {
			t.Fatalf("unexpected ref: %+v", ref)
		}
	})

	t.Run("rejects a malformed body", func(t *testing.T) {
		t.Parallel()

		stub := &tripServiceStub{}
		handler := NewTripHandler(stub, nil)

		rec := httptest.NewRecorder()
		handler.ValidateQR(rec, authedRequest(http.MethodPost, "/trips/qr", "{not json"))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if len(stub.qrParams) != 0 {
			t.Fatalf("expected no validation for a bad body")
		}
	})
}

func TestTripHandler_Start_RecordsLocation(t *testing.T) {
	t.Parallel()

	stub := &tripServiceStub{trip: sampleTrip()}
	handler := NewTripHandler(stub, nil)

	body := `{"week_start":"2026-01-12","day":"Mon","geo":{"latitude":18.52,"longitude":73.85}}`
	rec := httptest.NewRecorder()
	handler.Start(rec, authedRequest(http.MethodPost, "/trips/start", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(stub.startParams) != 1 {
		t.Fatalf("expected one start, got %d", len(stub.startParams))
	}
	geo := stub.startParams[0].Geo
	if geo == nil || geo.Latitude != 18.52 || geo.Longitude != 73.85 {
		t.Fatalf("expected the start location forwarded, got %+v", geo)
	}
}
