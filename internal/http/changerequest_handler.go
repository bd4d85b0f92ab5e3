package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/transport-scheduler/internal/application"
	"github.com/example/transport-scheduler/internal/persistence"
	"github.com/example/transport-scheduler/internal/week"
)

type changeRequestService interface {
	SubmitChangeRequest(ctx context.Context, params application.SubmitChangeRequestParams) (persistence.ChangeRequest, error)
	ReviewChangeRequest(ctx context.Context, params application.ReviewChangeRequestParams) (persistence.ChangeRequest, error)
	ListChangeRequests(ctx context.Context, principal application.Principal) ([]persistence.ChangeRequest, error)
}

type ChangeRequestHandler struct {
	service   changeRequestService
	responder responder
	logger    *slog.Logger
}

func NewChangeRequestHandler(service changeRequestService, logger *slog.Logger) *ChangeRequestHandler {
	base := defaultLogger(logger)
	return &ChangeRequestHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ChangeRequestHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ChangeRequestHandler", operation, attrs...)
}

func (h *ChangeRequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	var req changeRequestWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "week_start", req.WeekStart, "day", req.Day)

	params := application.SubmitChangeRequestParams{
		Principal: principal,
		WeekStart: req.WeekStart,
		Day:       week.DayKey(req.Day),
		NewPickup: week.Pickup{
			Time:        req.NewPickup.Time,
			AddressID:   req.NewPickup.AddressID,
			AddressName: req.NewPickup.AddressName,
		},
	}
	if req.OldPickup != nil {
		params.OldPickup = &week.Pickup{
			Time:        req.OldPickup.Time,
			AddressID:   req.OldPickup.AddressID,
			AddressName: req.OldPickup.AddressName,
		}
	}

	request, err := h.service.SubmitChangeRequest(r.Context(), params)
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to submit change request", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("request_id", request.ID).InfoContext(r.Context(), "change request submitted")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, changeRequestDTOFromRecord(request))
}

func (h *ChangeRequestHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	requests, err := h.service.ListChangeRequests(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "List").ErrorContext(r.Context(), "failed to list change requests", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]changeRequestDTO, 0, len(requests))
	for _, request := range requests {
		dtos = append(dtos, changeRequestDTOFromRecord(request))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, dtos)
}

func (h *ChangeRequestHandler) Review(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	requestID, _ := PathIDFromContext(r.Context())

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Review", "request_id", requestID, "approve", req.Approve)

	request, err := h.service.ReviewChangeRequest(r.Context(), application.ReviewChangeRequestParams{
		Principal: principal,
		RequestID: requestID,
		Approve:   req.Approve,
		Note:      req.Note,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to review change request", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "change request reviewed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, changeRequestDTOFromRecord(request))
}

type changeRequestWriteRequest struct {
	WeekStart string     `json:"week_start"`
	Day       string     `json:"day"`
	OldPickup *pickupDTO `json:"old_pickup,omitempty"`
	NewPickup pickupDTO  `json:"new_pickup"`
}

type changeRequestDTO struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	WeekStart   string     `json:"week_start"`
	Day         string     `json:"day"`
	OldPickup   *pickupDTO `json:"old_pickup,omitempty"`
	NewPickup   pickupDTO  `json:"new_pickup"`
	Status      string     `json:"status"`
	ReviewerID  string     `json:"reviewer_id,omitempty"`
	ReviewNote  string     `json:"review_note,omitempty"`
	RequestedAt string     `json:"requested_at"`
	ReviewedAt  string     `json:"reviewed_at,omitempty"`
}

func changeRequestDTOFromRecord(request persistence.ChangeRequest) changeRequestDTO {
	dto := changeRequestDTO{
		ID:        request.ID,
		UserID:    request.UserID,
		WeekStart: request.WeekStart,
		Day:       string(request.Day),
		NewPickup: pickupDTO{
			Time:        request.NewPickup.Time,
			AddressID:   request.NewPickup.AddressID,
			AddressName: request.NewPickup.AddressName,
		},
		Status:      request.Status,
		ReviewerID:  request.ReviewerID,
		ReviewNote:  request.ReviewNote,
		RequestedAt: request.RequestedAt.UTC().Format(time.RFC3339Nano),
	}
	if request.OldPickup != nil {
		dto.OldPickup = &pickupDTO{
			Time:        request.OldPickup.Time,
			AddressID:   request.OldPickup.AddressID,
			AddressName: request.OldPickup.AddressName,
		}
	}
	if request.ReviewedAt != nil {
		dto.ReviewedAt = request.ReviewedAt.UTC().Format(time.RFC3339Nano)
	}
	return dto
}
