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

type addressService interface {
	CreateAddress(ctx context.Context, params application.CreateAddressParams) (persistence.SavedAddress, error)
	GetAddress(ctx context.Context, principal application.Principal, id string) (persistence.SavedAddress, error)
	ListAddresses(ctx context.Context, principal application.Principal) ([]persistence.SavedAddress, error)
	DeleteAddress(ctx context.Context, principal application.Principal, id string) error
}

type AddressHandler struct {
	service   addressService
	responder responder
	logger    *slog.Logger
}

func NewAddressHandler(service addressService, logger *slog.Logger) *AddressHandler {
	base := defaultLogger(logger)
	return &AddressHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *AddressHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AddressHandler", operation, attrs...)
}

func (h *AddressHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	var req addressWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	address, err := h.service.CreateAddress(r.Context(), application.CreateAddressParams{
		Principal: principal,
		Input: application.AddressInput{
			Name:             req.Name,
			FormattedAddress: req.FormattedAddress,
			Latitude:         req.Latitude,
			Longitude:        req.Longitude,
			PlaceID:          req.PlaceID,
		},
	})
	if err != nil {
		h.log(r.Context(), "Create").ErrorContext(r.Context(), "failed to save address", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Create", "address_id", address.ID).InfoContext(r.Context(), "address saved")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, addressDTOFromRecord(address))
}

func (h *AddressHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	addresses, err := h.service.ListAddresses(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "List").ErrorContext(r.Context(), "failed to list addresses", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]addressDTO, 0, len(addresses))
	for _, address := range addresses {
		dtos = append(dtos, addressDTOFromRecord(address))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, dtos)
}

func (h *AddressHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	id, _ := PathIDFromContext(r.Context())

	address, err := h.service.GetAddress(r.Context(), principal, id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, addressDTOFromRecord(address))
}

func (h *AddressHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	id, _ := PathIDFromContext(r.Context())

	if err := h.service.DeleteAddress(r.Context(), principal, id); err != nil {
		h.log(r.Context(), "Delete", "address_id", id).ErrorContext(r.Context(), "failed to delete address", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type addressWriteRequest struct {
	Name             string  `json:"name"`
	FormattedAddress string  `json:"formatted_address"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	PlaceID          string  `json:"place_id,omitempty"`
}

type addressDTO struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	FormattedAddress string  `json:"formatted_address"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	PlaceID          string  `json:"place_id,omitempty"`
	CreatedAt        string  `json:"created_at"`
}

func addressDTOFromRecord(address persistence.SavedAddress) addressDTO {
	return addressDTO{
		ID:               address.ID,
		Name:             address.Name,
		FormattedAddress: address.FormattedAddress,
		Latitude:         address.Latitude,
		Longitude:        address.Longitude,
		PlaceID:          address.PlaceID,
		CreatedAt:        address.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
