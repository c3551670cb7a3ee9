package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/bip/backend/internal/middleware"
	"github.com/bip/backend/internal/models"
	"github.com/bip/backend/internal/services"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// decodeJSON reads a bounded JSON body into dst, answering 400 itself on
// failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body", "invalid_body"))
		return false
	}
	return true
}

func statusFor(kind services.Kind) int {
	switch kind {
	case services.KindValidation, services.KindConflict:
		return http.StatusBadRequest
	case services.KindAuthentication:
		return http.StatusUnauthorized
	case services.KindAuthorization:
		return http.StatusForbidden
	case services.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps a service error to a status and a client-safe payload.
// Anything that is not a domain error is reported as internal.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	e, ok := services.AsError(err)
	if !ok {
		logger.ErrorContext(r.Context(), "Unhandled error", "path", r.URL.Path, "error", err)
		e = services.ErrInternal
	}
	status := statusFor(e.Kind)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", "reason", e.Reason, "error", err)
	} else {
		logger.DebugContext(r.Context(), "Request rejected", "reason", e.Reason)
	}
	writeJSON(w, status, models.NewErrorResponse(e.Message, e.Reason))
}

// currentUser returns the caller resolved by JWTAuth. Routes are only
// mounted behind that middleware, so a missing identity is a 401.
func currentUser(w http.ResponseWriter, r *http.Request) (models.Identity, bool) {
	id, ok := middleware.GetIdentity(r.Context())
	if !ok || id.UserID == 0 {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized", "unauthenticated"))
		return models.Identity{}, false
	}
	return id, true
}

// queryInt64 parses an optional non-negative integer query parameter.
func queryInt64(r *http.Request, name string) (int64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
