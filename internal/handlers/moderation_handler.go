package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/bip/backend/internal/models"
	"github.com/bip/backend/internal/services"
)

// ModerationHandler serves the participant-facing moderation endpoints.
type ModerationHandler struct {
	moderation *services.ModerationService
	logger     *slog.Logger
}

func NewModerationHandler(moderation *services.ModerationService, logger *slog.Logger) *ModerationHandler {
	return &ModerationHandler{moderation: moderation, logger: logger}
}

func (h *ModerationHandler) FlagMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.FlagMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	reportID, err := h.moderation.FlagMessage(r.Context(), id.UserID, req.MessageID, req.Ref(), req.Reason)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, models.FlagMessageResponse{APIResponse: models.OK(), ReportID: reportID})
}

func (h *ModerationHandler) RateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.RateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.TargetUserID <= 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(map[string]string{
			"targetUserID": "Target user ID is required",
		}))
		return
	}

	if err := h.moderation.RateUser(r.Context(), id.UserID, req.TargetUserID, req.Ref(), req.RatingValue); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, models.OK())
}

// Flags lists the flag catalog, MESSAGE flags unless ?category says otherwise.
func (h *ModerationHandler) Flags(w http.ResponseWriter, r *http.Request) {
	category := models.FlagCategory(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("category"))))
	if category == "" {
		category = models.CategoryMessage
	}
	if !services.ValidCategory(category) {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid category", "invalid_category"))
		return
	}

	catalog := h.moderation.Flags()
	flags := catalog.List(category)
	writeJSON(w, http.StatusOK, models.FlagsResponse{
		APIResponse: models.OK(),
		Flags:       flags,
		Count:       len(flags),
		Version:     catalog.Version(),
	})
}
