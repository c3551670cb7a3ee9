package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/bip/backend/internal/models"
	"github.com/bip/backend/internal/services"
)

type PresenceHandler struct {
	presence  *services.PresenceRegistry
	heartbeat time.Duration
	logger    *slog.Logger
}

func NewPresenceHandler(presence *services.PresenceRegistry, heartbeat time.Duration, logger *slog.Logger) *PresenceHandler {
	return &PresenceHandler{presence: presence, heartbeat: heartbeat, logger: logger}
}

func (h *PresenceHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.UpdateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	mode, err := h.presence.SetMode(r.Context(), id.UserID, req.Mode)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, models.UpdateStatusResponse{APIResponse: models.OK(), Mode: mode})
}

// Ping is the client heartbeat. JWTAuth has already touched the caller's
// presence by the time it runs.
func (h *PresenceHandler) Ping(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}
	writeJSON(w, http.StatusOK, models.OK())
}

func (h *PresenceHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := currentUser(w, r)
	if !ok {
		return
	}

	status, err := h.presence.Status(r.Context(), id.UserID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, models.PresenceResponse{
		APIResponse:              models.OK(),
		Presence:                 status,
		HeartbeatIntervalSeconds: int(h.heartbeat / time.Second),
	})
}

func (h *PresenceHandler) Online(w http.ResponseWriter, r *http.Request) {
	id, ok := currentUser(w, r)
	if !ok {
		return
	}

	mode := models.Mode(r.URL.Query().Get("mode"))
	users, err := h.presence.Online(r.Context(), id.UserID, mode)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, models.OnlineUsersResponse{
		APIResponse: models.OK(),
		Users:       users,
		Count:       len(users),
	})
}
