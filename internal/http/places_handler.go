package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/example/transport-scheduler/internal/places"
)

type placesService interface {
	Autocomplete(ctx context.Context, query string) ([]places.Suggestion, error)
	PlaceDetails(ctx context.Context, placeID string) (places.Details, error)
	ReverseGeocode(ctx context.Context, latitude, longitude float64) (places.Details, error)
}

type PlacesHandler struct {
	service   placesService
	responder responder
	logger    *slog.Logger
}

func NewPlacesHandler(service placesService, logger *slog.Logger) *PlacesHandler {
	base := defaultLogger(logger)
	return &PlacesHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *PlacesHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "PlacesHandler", operation, attrs...)
}

func (h *PlacesHandler) Autocomplete(w http.ResponseWriter, r *http.Request) {
	if _, ok := PrincipalFromContext(r.Context()); !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errors.New("the query parameter is required"))
		return
	}

	suggestions, err := h.service.Autocomplete(r.Context(), query)
	if err != nil {
		h.log(r.Context(), "Autocomplete").ErrorContext(r.Context(), "autocomplete lookup failed", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadGateway, errors.New("the places service is unavailable"))
		return
	}

	if suggestions == nil {
		suggestions = []places.Suggestion{}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, suggestions)
}

func (h *PlacesHandler) Details(w http.ResponseWriter, r *http.Request) {
	if _, ok := PrincipalFromContext(r.Context()); !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	placeID := strings.TrimSpace(r.URL.Query().Get("place_id"))
	if placeID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errors.New("the place_id parameter is required"))
		return
	}

	details, err := h.service.PlaceDetails(r.Context(), placeID)
	if err != nil {
		h.log(r.Context(), "Details", "place_id", placeID).ErrorContext(r.Context(), "place details lookup failed", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadGateway, errors.New("the places service is unavailable"))
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, details)
}

func (h *PlacesHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	if _, ok := PrincipalFromContext(r.Context()); !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	query := r.URL.Query()
	latitude, latErr := strconv.ParseFloat(strings.TrimSpace(query.Get("lat")), 64)
	longitude, lngErr := strconv.ParseFloat(strings.TrimSpace(query.Get("lng")), 64)
	if latErr != nil || lngErr != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errors.New("the lat and lng parameters must be numeric"))
		return
	}

	details, err := h.service.ReverseGeocode(r.Context(), latitude, longitude)
	if err != nil {
		h.log(r.Context(), "Reverse").ErrorContext(r.Context(), "reverse geocode failed", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadGateway, errors.New("the places service is unavailable"))
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, details)
}
