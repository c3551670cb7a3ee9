package handlers

import (
	"log/slog"
	"net/http"

	"github.com/bip/backend/internal/models"
	"github.com/bip/backend/internal/services"
)

type MessageHandler struct {
	messages *services.MessageSync
	logger   *slog.Logger
}

func NewMessageHandler(messages *services.MessageSync, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, logger: logger}
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	id, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.SendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	msg, err := h.messages.Send(r.Context(), req.ConversationID, id.UserID, req.Content)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, models.SendMessageResponse{APIResponse: models.OK(), Message: *msg})
}

// Poll returns messages after the client's lastMessageID cursor. There is no
// waiting: an empty list means nothing new yet.
func (h *MessageHandler) Poll(w http.ResponseWriter, r *http.Request) {
	id, ok := currentUser(w, r)
	if !ok {
		return
	}

	conversationID, okConv := queryInt64(r, "conversationID")
	lastMessageID, okCursor := queryInt64(r, "lastMessageID")
	if !okConv || !okCursor || conversationID == 0 {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("conversationID and lastMessageID must be non-negative integers", "invalid_query"))
		return
	}

	messages, status, err := h.messages.Poll(r.Context(), conversationID, id.UserID, lastMessageID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, models.PollResponse{
		APIResponse:        models.OK(),
		Messages:           messages,
		InterlocutorStatus: status,
	})
}
