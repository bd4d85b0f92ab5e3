package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/transport-scheduler/internal/application"
	"github.com/example/transport-scheduler/internal/persistence"
)

type notificationService interface {
	ListNotifications(ctx context.Context, principal application.Principal) ([]persistence.Notification, error)
	DismissNotifications(ctx context.Context, principal application.Principal) error
	RegisterDeviceToken(ctx context.Context, params application.RegisterDeviceTokenParams) error
	DeleteDeviceToken(ctx context.Context, principal application.Principal, token string) error
}

type NotificationHandler struct {
	service   notificationService
	responder responder
	logger    *slog.Logger
}

func NewNotificationHandler(service notificationService, logger *slog.Logger) *NotificationHandler {
	base := defaultLogger(logger)
	return &NotificationHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *NotificationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "NotificationHandler", operation, attrs...)
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	notifications, err := h.service.ListNotifications(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "List").ErrorContext(r.Context(), "failed to list notifications", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]notificationDTO, 0, len(notifications))
	for _, notification := range notifications {
		dtos = append(dtos, notificationDTOFromRecord(notification))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, dtos)
}

func (h *NotificationHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	if err := h.service.DismissNotifications(r.Context(), principal); err != nil {
		h.log(r.Context(), "Dismiss").ErrorContext(r.Context(), "failed to dismiss notifications", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *NotificationHandler) RegisterToken(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	var req deviceTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	if err := h.service.RegisterDeviceToken(r.Context(), application.RegisterDeviceTokenParams{
		Principal: principal,
		Token:     req.Token,
		Platform:  req.Platform,
	}); err != nil {
		h.log(r.Context(), "RegisterToken").ErrorContext(r.Context(), "failed to register device token", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "RegisterToken", "platform", req.Platform).InfoContext(r.Context(), "device token registered")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *NotificationHandler) DeleteToken(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	tokenValue, _ := PathIDFromContext(r.Context())

	if err := h.service.DeleteDeviceToken(r.Context(), principal, tokenValue); err != nil {
		h.log(r.Context(), "DeleteToken").ErrorContext(r.Context(), "failed to delete device token", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type deviceTokenRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

type notificationDTO struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	CreatedAt   string `json:"created_at"`
	DismissedAt string `json:"dismissed_at,omitempty"`
}

func notificationDTOFromRecord(notification persistence.Notification) notificationDTO {
	dto := notificationDTO{
		ID:        notification.ID,
		Type:      notification.Type,
		Title:     notification.Title,
		Body:      notification.Body,
		CreatedAt: notification.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if notification.DismissedAt != nil {
		dto.DismissedAt = notification.DismissedAt.UTC().Format(time.RFC3339Nano)
	}
	return dto
}
