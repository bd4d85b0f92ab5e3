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

type scheduleService interface {
	SubmitSchedule(ctx context.Context, params application.SubmitScheduleParams) (persistence.WeekScheduleDoc, error)
	ReviewSchedule(ctx context.Context, params application.ReviewScheduleParams) (persistence.WeekScheduleDoc, error)
	GetSchedule(ctx context.Context, principal application.Principal, scheduleID string) (persistence.WeekScheduleDoc, error)
	ListSchedules(ctx context.Context, params application.ListSchedulesParams) ([]persistence.WeekScheduleDoc, error)
}

type ScheduleHandler struct {
	service   scheduleService
	responder responder
	logger    *slog.Logger
}

func NewScheduleHandler(service scheduleService, logger *slog.Logger) *ScheduleHandler {
	base := defaultLogger(logger)
	return &ScheduleHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ScheduleHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ScheduleHandler", operation, attrs...)
}

func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	var req scheduleWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "week_start", req.WeekStart)

	doc, err := h.service.SubmitSchedule(r.Context(), application.SubmitScheduleParams{
		Principal: principal,
		WeekStart: req.WeekStart,
		Days:      req.toSchedule(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to submit schedule", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("schedule_id", doc.ID).InfoContext(r.Context(), "schedule submitted")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, scheduleDTOFromDoc(doc))
}

func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	query := r.URL.Query()
	docs, err := h.service.ListSchedules(r.Context(), application.ListSchedulesParams{
		Principal: principal,
		UserID:    strings.TrimSpace(query.Get("user_id")),
		WeekStart: strings.TrimSpace(query.Get("week_start")),
		Status:    strings.TrimSpace(query.Get("status")),
	})
	if err != nil {
		h.log(r.Context(), "List").ErrorContext(r.Context(), "failed to list schedules", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]scheduleDTO, 0, len(docs))
	for _, doc := range docs {
		dtos = append(dtos, scheduleDTOFromDoc(doc))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, dtos)
}

func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	scheduleID, _ := PathIDFromContext(r.Context())

	doc, err := h.service.GetSchedule(r.Context(), principal, scheduleID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, scheduleDTOFromDoc(doc))
}

func (h *ScheduleHandler) Review(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	scheduleID, _ := PathIDFromContext(r.Context())

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Review", "schedule_id", scheduleID, "approve", req.Approve)

	doc, err := h.service.ReviewSchedule(r.Context(), application.ReviewScheduleParams{
		Principal:  principal,
		ScheduleID: scheduleID,
		Approve:    req.Approve,
		Note:       req.Note,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to review schedule", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "schedule reviewed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, scheduleDTOFromDoc(doc))
}

type pickupDTO struct {
	Time        string `json:"time"`
	AddressID   string `json:"address_id,omitempty"`
	AddressName string `json:"address_name,omitempty"`
}

type dropDTO struct {
	AddressID   string `json:"address_id,omitempty"`
	AddressName string `json:"address_name,omitempty"`
}

type dayDTO struct {
	Pickup *pickupDTO `json:"pickup,omitempty"`
	Drop   *dropDTO   `json:"drop,omitempty"`
}

type scheduleWriteRequest struct {
	WeekStart string            `json:"week_start"`
	Days      map[string]dayDTO `json:"days"`
}

func (r scheduleWriteRequest) toSchedule() week.Schedule {
	days := make(week.Schedule, len(r.Days))
	for key, day := range r.Days {
		entry := week.DaySchedule{}
		if day.Pickup != nil {
			entry.Pickup = &week.Pickup{
				Time:        day.Pickup.Time,
				AddressID:   day.Pickup.AddressID,
				AddressName: day.Pickup.AddressName,
			}
		}
		if day.Drop != nil {
			entry.Drop = &week.Drop{
				AddressID:   day.Drop.AddressID,
				AddressName: day.Drop.AddressName,
			}
		}
		days[week.DayKey(key)] = entry
	}
	return days
}

type reviewRequest struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note"`
}

type scheduleDTO struct {
	ID         string            `json:"id"`
	UserID     string            `json:"user_id"`
	WeekStart  string            `json:"week_start"`
	Days       map[string]dayDTO `json:"days"`
	Status     string            `json:"status"`
	ReviewerID string            `json:"reviewer_id,omitempty"`
	ReviewNote string            `json:"review_note,omitempty"`
	CreatedAt  string            `json:"created_at"`
	ReviewedAt string            `json:"reviewed_at,omitempty"`
}

func scheduleDTOFromDoc(doc persistence.WeekScheduleDoc) scheduleDTO {
	days := make(map[string]dayDTO, len(doc.Days))
	for key, day := range doc.Days {
		entry := dayDTO{}
		if day.Pickup != nil {
			entry.Pickup = &pickupDTO{
				Time:        day.Pickup.Time,
				AddressID:   day.Pickup.AddressID,
				AddressName: day.Pickup.AddressName,
			}
		}
		if day.Drop != nil {
			entry.Drop = &dropDTO{
				AddressID:   day.Drop.AddressID,
				AddressName: day.Drop.AddressName,
			}
		}
		days[string(key)] = entry
	}

	dto := scheduleDTO{
		ID:         doc.ID,
		UserID:     doc.UserID,
		WeekStart:  doc.WeekStart,
		Days:       days,
		Status:     doc.Status,
		ReviewerID: doc.ReviewerID,
		ReviewNote: doc.ReviewNote,
		CreatedAt:  doc.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if doc.ReviewedAt != nil {
		dto.ReviewedAt = doc.ReviewedAt.UTC().Format(time.RFC3339Nano)
	}
	return dto
}
