package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bip/backend/internal/models"
	"github.com/bip/backend/internal/services"
)

type ConversationHandler struct {
	matching *services.MatchingService
	logger   *slog.Logger
}

func NewConversationHandler(matching *services.MatchingService, logger *slog.Logger) *ConversationHandler {
	return &ConversationHandler{matching: matching, logger: logger}
}

func (h *ConversationHandler) Start(w http.ResponseWriter, r *http.Request) {
	id, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.StartConversationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ListenerID <= 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(map[string]string{
			"listenerID": "Listener ID is required",
		}))
		return
	}

	conversationID, isNew, err := h.matching.StartConversation(r.Context(), id.UserID, req.ListenerID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	status := http.StatusOK
	if isNew {
		status = http.StatusCreated
	}
	writeJSON(w, status, models.StartConversationResponse{
		APIResponse:    models.OK(),
		ConversationID: conversationID,
		IsNew:          isNew,
	})
}

func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := currentUser(w, r)
	if !ok {
		return
	}

	convs, err := h.matching.Conversations(r.Context(), id.UserID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, models.ConversationListResponse{
		APIResponse:   models.OK(),
		Conversations: convs,
	})
}

// Leave returns the caller to IDLE. The conversation stays open.
func (h *ConversationHandler) Leave(w http.ResponseWriter, r *http.Request) {
	id, ok := currentUser(w, r)
	if !ok {
		return
	}

	conversationID, err := strconv.ParseInt(chi.URLParam(r, "conversationID"), 10, 64)
	if err != nil || conversationID <= 0 {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid conversation ID", "invalid_conversation_id"))
		return
	}

	mode, err := h.matching.EndConversation(r.Context(), conversationID, id.UserID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, models.LeaveConversationResponse{APIResponse: models.OK(), Mode: mode})
}
