package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/bip/backend/internal/middleware"
	"github.com/bip/backend/internal/models"
	"github.com/bip/backend/internal/services"
)

type AuthHandler struct {
	userService   *services.UserService
	clock         clockwork.Clock
	jwtSecret     string
	jwtExpiration time.Duration
	logger        *slog.Logger
}

func NewAuthHandler(userService *services.UserService, clock clockwork.Clock, jwtSecret string, jwtExpiration time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		userService:   userService,
		clock:         clock,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
		logger:        logger,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	req.Normalize()
	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errors))
		return
	}

	user, err := h.userService.Register(r.Context(), &req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.respondWithToken(w, r, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errors))
		return
	}

	user, err := h.userService.Login(r.Context(), &req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.respondWithToken(w, r, http.StatusOK, user)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	id, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.userService.Logout(r.Context(), id.UserID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, models.OK())
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := currentUser(w, r)
	if !ok {
		return
	}
	user, err := h.userService.GetByID(r.Context(), id.UserID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(user))
}

// AcceptWelcome records that the caller has acknowledged the disclaimer.
func (h *AuthHandler) AcceptWelcome(w http.ResponseWriter, r *http.Request) {
	id, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.userService.MarkWelcomeSeen(r.Context(), id.UserID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, models.OK())
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, r *http.Request, status int, user *models.User) {
	token, err := middleware.IssueToken(h.jwtSecret, user.ID, h.jwtExpiration, h.clock.Now())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to generate token", "user_id", user.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to generate token", "token_failed"))
		return
	}

	writeJSON(w, status, models.AuthResponse{
		APIResponse: models.OK(),
		Token:       token,
		User:        *user,
	})
}
