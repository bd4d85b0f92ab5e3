package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/transport-scheduler/internal/application"
	"github.com/example/transport-scheduler/internal/persistence"
	"github.com/example/transport-scheduler/internal/week"
)

type tripService interface {
	SendPush(ctx context.Context, params application.SendPushParams) (persistence.Trip, error)
	ValidateQR(ctx context.Context, params application.ValidateQRParams) (persistence.Trip, error)
	StartTrip(ctx context.Context, params application.StartTripParams) (persistence.Trip, error)
	EndTrip(ctx context.Context, params application.EndTripParams) (persistence.Trip, error)
	GetTrip(ctx context.Context, ref application.TripRef) (persistence.Trip, error)
	ListTrips(ctx context.Context, params application.ListTripsParams) ([]persistence.Trip, error)
}

type TripHandler struct {
	service   tripService
	responder responder
	logger    *slog.Logger
}

func NewTripHandler(service tripService, logger *slog.Logger) *TripHandler {
	base := defaultLogger(logger)
	return &TripHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *TripHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "TripHandler", operation, attrs...)
}

func (h *TripHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	query := r.URL.Query()
	trips, err := h.service.ListTrips(r.Context(), application.ListTripsParams{
		Principal: principal,
		UserID:    strings.TrimSpace(query.Get("user_id")),
		Status:    strings.TrimSpace(query.Get("status")),
	})
	if err != nil {
		h.log(r.Context(), "List").ErrorContext(r.Context(), "failed to list trips", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]tripDTO, 0, len(trips))
	for _, trip := range trips {
		dtos = append(dtos, tripDTOFromRecord(trip))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, dtos)
}

func (h *TripHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	query := r.URL.Query()
	trip, err := h.service.GetTrip(r.Context(), application.TripRef{
		Principal: principal,
		UserID:    strings.TrimSpace(query.Get("user_id")),
		WeekStart: strings.TrimSpace(query.Get("week_start")),
		Day:       week.DayKey(strings.TrimSpace(query.Get("day"))),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, tripDTOFromRecord(trip))
}

func (h *TripHandler) Push(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	var req tripPushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Push", "week_start", req.WeekStart, "day", req.Day)

	trip, err := h.service.SendPush(r.Context(), application.SendPushParams{
		Ref:          req.tripOpRequest.toRef(principal),
		ETAMinutes:   req.ETAMinutes,
		DriverName:   req.DriverName,
		TrackingLink: req.TrackingLink,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to record push", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("trip_id", trip.ID).InfoContext(r.Context(), "push recorded")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, tripDTOFromRecord(trip))
}

func (h *TripHandler) ValidateQR(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "ValidateQR", func(ctx context.Context, req tripOpRequest, principal application.Principal) (persistence.Trip, error) {
		return h.service.ValidateQR(ctx, application.ValidateQRParams{Ref: req.toRef(principal)})
	})
}

func (h *TripHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "Start", func(ctx context.Context, req tripOpRequest, principal application.Principal) (persistence.Trip, error) {
		return h.service.StartTrip(ctx, application.StartTripParams{Ref: req.toRef(principal), Geo: req.geo()})
	})
}

func (h *TripHandler) End(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "End", func(ctx context.Context, req tripOpRequest, principal application.Principal) (persistence.Trip, error) {
		return h.service.EndTrip(ctx, application.EndTripParams{Ref: req.toRef(principal), Geo: req.geo()})
	})
}

func (h *TripHandler) lifecycle(w http.ResponseWriter, r *http.Request, operation string, invoke func(context.Context, tripOpRequest, application.Principal) (persistence.Trip, error)) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	var req tripOpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), operation, "week_start", req.WeekStart, "day", req.Day)

	trip, err := invoke(r.Context(), req, principal)
	if err != nil {
		logger.ErrorContext(r.Context(), "trip operation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("trip_id", trip.ID, "status", trip.Status).InfoContext(r.Context(), "trip operation applied")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, tripDTOFromRecord(trip))
}

type geoDTO struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type tripOpRequest struct {
	UserID    string  `json:"user_id,omitempty"`
	WeekStart string  `json:"week_start"`
	Day       string  `json:"day"`
	Geo       *geoDTO `json:"geo,omitempty"`
}

func (r tripOpRequest) toRef(principal application.Principal) application.TripRef {
	return application.TripRef{
		Principal: principal,
		UserID:    r.UserID,
		WeekStart: r.WeekStart,
		Day:       week.DayKey(r.Day),
	}
}

func (r tripOpRequest) geo() *persistence.GeoPoint {
	if r.Geo == nil {
		return nil
	}
	return &persistence.GeoPoint{Latitude: r.Geo.Latitude, Longitude: r.Geo.Longitude}
}

type tripPushRequest struct {
	tripOpRequest
	ETAMinutes   int    `json:"eta_minutes"`
	DriverName   string `json:"driver_name,omitempty"`
	TrackingLink string `json:"tracking_link,omitempty"`
}

type tripDTO struct {
	ID            string  `json:"id"`
	UserID        string  `json:"user_id"`
	WeekStart     string  `json:"week_start"`
	Day           string  `json:"day"`
	ScheduledTime string  `json:"scheduled_time,omitempty"`
	AddressID     string  `json:"address_id,omitempty"`
	AddressName   string  `json:"address_name,omitempty"`
	DriverName    string  `json:"driver_name,omitempty"`
	TrackingLink  string  `json:"tracking_link,omitempty"`
	Status        string  `json:"status"`
	PushSentAt    string  `json:"push_sent_at,omitempty"`
	ETAMinutes    *int    `json:"eta_minutes,omitempty"`
	QRValidatedAt string  `json:"qr_validated_at,omitempty"`
	StartedAt     string  `json:"started_at,omitempty"`
	EndedAt       string  `json:"ended_at,omitempty"`
	StartGeo      *geoDTO `json:"start_geo,omitempty"`
	EndGeo        *geoDTO `json:"end_geo,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

func tripDTOFromRecord(trip persistence.Trip) tripDTO {
	dto := tripDTO{
		ID:            trip.ID,
		UserID:        trip.UserID,
		WeekStart:     trip.WeekStart,
		Day:           string(trip.Day),
		ScheduledTime: trip.ScheduledTime,
		AddressID:     trip.AddressID,
		AddressName:   trip.AddressName,
		DriverName:    trip.DriverName,
		TrackingLink:  trip.TrackingLink,
		Status:        trip.Status,
		ETAMinutes:    trip.ETAMinutes,
		CreatedAt:     trip.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if trip.PushSentAt != nil {
		dto.PushSentAt = trip.PushSentAt.UTC().Format(time.RFC3339Nano)
	}
	if trip.QRValidatedAt != nil {
		dto.QRValidatedAt = trip.QRValidatedAt.UTC().Format(time.RFC3339Nano)
	}
	if trip.StartedAt != nil {
		dto.StartedAt = trip.StartedAt.UTC().Format(time.RFC3339Nano)
	}
	if trip.EndedAt != nil {
		dto.EndedAt = trip.EndedAt.UTC().Format(time.RFC3339Nano)
	}
	if trip.StartGeo != nil {
		dto.StartGeo = &geoDTO{Latitude: trip.StartGeo.Latitude, Longitude: trip.StartGeo.Longitude}
	}
	if trip.EndGeo != nil {
		dto.EndGeo = &geoDTO{Latitude: trip.EndGeo.Latitude, Longitude: trip.EndGeo.Longitude}
	}
	return dto
}
