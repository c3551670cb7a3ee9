package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bip/backend/internal/models"
	"github.com/bip/backend/internal/services"
)

// ResolvedMessage is returned when a report was resolved.
const ResolvedMessage = "Comment added and system message sent"

type AdminHandler struct {
	moderation *services.ModerationService
	logger     *slog.Logger
}

func NewAdminHandler(moderation *services.ModerationService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{moderation: moderation, logger: logger}
}

func (h *AdminHandler) ResolveReport(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.ResolveReportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errors))
		return
	}

	decision := req.Decision()
	if err := h.moderation.ResolveReport(r.Context(), admin, req.ReportID, decision, req.Comment); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, models.ResolveReportResponse{
		APIResponse: models.OK(),
		Message:     ResolvedMessage,
		Action:      decision,
		ReportID:    req.ReportID,
	})
}

func (h *AdminHandler) ApplyPenalty(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.ApplyPenaltyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.TargetUserID <= 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(map[string]string{
			"targetUserID": "Target user ID is required",
		}))
		return
	}

	penalty, err := h.moderation.ApplyPenalty(r.Context(), admin, req.TargetUserID, req.PenaltyType, req.Reason)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, models.ApplyPenaltyResponse{APIResponse: models.OK(), Penalty: *penalty})
}

func (h *AdminHandler) PendingReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.moderation.PendingReports(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, models.PendingReportsResponse{
		APIResponse: models.OK(),
		Reports:     reports,
		Count:       len(reports),
	})
}

func (h *AdminHandler) Penalties(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid user ID", "invalid_user_id"))
		return
	}

	penalties, err := h.moderation.Penalties(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, models.PenaltiesResponse{APIResponse: models.OK(), Penalties: penalties})
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.moderation.Stats(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, models.StatsResponse{APIResponse: models.OK(), Stats: *stats})
}
