package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/class-scheduler/internal/application"
)

type sessionResyncer interface {
	ResyncClass(ctx context.Context, classID string) (application.ResyncResult, error)
	ResyncAll(ctx context.Context) (int, error)
}

// ResyncHandler triggers session count recomputation on demand.
type ResyncHandler struct {
	sessions  sessionResyncer
	responder responder
	logger    *slog.Logger
}

func NewResyncHandler(sessions sessionResyncer, logger *slog.Logger) *ResyncHandler {
	return &ResyncHandler{sessions: sessions, responder: newResponder(logger), logger: defaultLogger(logger)}
}

func (h *ResyncHandler) ResyncClass(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.sessions == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	classID := strings.TrimSpace(r.PathValue("id"))
	if classID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidClassID)
		return
	}

	result, err := h.sessions.ResyncClass(r.Context(), classID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, result)
}

func (h *ResyncHandler) ResyncAll(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.sessions == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	count, err := h.sessions.ResyncAll(r.Context())
	if err != nil {
		handlerLogger(r.Context(), h.logger, "ResyncHandler", "ResyncAll").
			ErrorContext(r.Context(), "resync finished with failures", "resynced", count, "error", err)
		h.responder.writeJSON(r.Context(), w, http.StatusInternalServerError, resyncAllResponse{
			Resynced: count,
			Message:  "some classes could not be resynced",
		})
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, resyncAllResponse{Resynced: count})
}

type resyncAllResponse struct {
	Resynced int    `json:"resynced"`
	Message  string `json:"message,omitempty"`
}
