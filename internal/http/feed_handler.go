package http

import (
	"context"
	"log/slog"
	"net/http"
)

type feedService interface {
	Serve(w http.ResponseWriter, r *http.Request, userID string, isAdmin bool) error
}

// FeedHandler upgrades authenticated requests to the websocket trip feed.
type FeedHandler struct {
	feed      feedService
	responder responder
	logger    *slog.Logger
}

func NewFeedHandler(feed feedService, logger *slog.Logger) *FeedHandler {
	base := defaultLogger(logger)
	return &FeedHandler{feed: feed, responder: newResponder(base), logger: base}
}

func (h *FeedHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "FeedHandler", operation, attrs...)
}

func (h *FeedHandler) Connect(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	// Serve blocks for the life of the connection. The upgrader has
	// already written the handshake response by the time it returns, so
	// errors here are only logged.
	if err := h.feed.Serve(w, r, principal.UserID, principal.IsAdmin); err != nil {
		h.log(r.Context(), "Connect", "user_id", principal.UserID).WarnContext(r.Context(), "websocket session ended with error", "error", err)
	}
}
