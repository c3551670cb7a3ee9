package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/bip/backend/internal/logging"
	"github.com/bip/backend/internal/models"
)

type contextKey string

const identityKey contextKey = "identity"

// Claims are the session token claims. Subject carries the user id.
type Claims struct {
	jwt.RegisteredClaims
}

// AccountLookup loads the account behind a token.
type AccountLookup interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// Heartbeat refreshes a user's liveness.
type Heartbeat interface {
	Touch(ctx context.Context, userID int64) error
}

// IssueToken signs a session token for userID.
func IssueToken(secret string, userID int64, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken validates tokenString and returns the user id it names.
func ParseToken(secret, tokenString string) (int64, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return 0, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return 0, jwt.ErrTokenInvalidClaims
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, jwt.ErrTokenInvalidSubject
	}
	return id, nil
}

// JWTAuth resolves the bearer token into an Identity, rejects banned
// accounts and records a heartbeat for every authenticated request.
func JWTAuth(jwtSecret string, accounts AccountLookup, heartbeat Heartbeat, logger *slog.Logger) func(http.Handler) http.Handler {
	log := logger.With("component", "auth")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Authorization header required", "unauthenticated"))
				return
			}

			scheme, tokenString, ok := strings.Cut(authHeader, " ")
			if !ok || scheme != "Bearer" || tokenString == "" {
				writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid authorization header format", "unauthenticated"))
				return
			}

			userID, err := ParseToken(jwtSecret, tokenString)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid or expired token", "unauthenticated"))
				return
			}

			ctx := r.Context()
			user, err := accounts.GetByID(ctx, userID)
			if err != nil {
				// Deleted or unknown accounts look like a bad token.
				log.WarnContext(ctx, "Token for unknown account", "user_id", userID, "error", err)
				writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid or expired token", "unauthenticated"))
				return
			}
			if user.AccountStatus == models.AccountBanned {
				writeJSON(w, http.StatusForbidden, models.NewErrorResponse("Account is banned", "account_banned"))
				return
			}

			if err := heartbeat.Touch(ctx, user.ID); err != nil {
				log.ErrorContext(ctx, "Failed to record heartbeat", "user_id", user.ID, "error", err)
			}

			logging.SetUserID(ctx, user.ID)
			ctx = context.WithValue(ctx, identityKey, models.Identity{UserID: user.ID, IsAdmin: user.IsAdmin})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects callers without the admin flag.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetIdentity(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized", "unauthenticated"))
			return
		}
		if !id.IsAdmin {
			writeJSON(w, http.StatusForbidden, models.NewErrorResponse("Admin privileges required", "not_admin"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetIdentity extracts the authenticated caller from context.
func GetIdentity(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(identityKey).(models.Identity)
	return id, ok
}

// WithIdentity returns ctx carrying id.
func WithIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
