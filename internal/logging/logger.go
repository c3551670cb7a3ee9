// Package logging builds the process logger and the HTTP access log middleware.
package logging

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
)

// NewLogger creates a slog Logger with the given level and format and installs
// it as the default logger. Unknown levels fall back to info.
func NewLogger(levelStr, format string) *slog.Logger {
	return newLogger(os.Stdout, levelStr, format)
}

func newLogger(w io.Writer, levelStr, format string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

type ctxKey struct{}

type requestInfo struct {
	userID int64
}

// SetUserID records the authenticated user for the access log line of the
// current request. It is a no-op outside RequestLogger.
func SetUserID(ctx context.Context, userID int64) {
	if info, ok := ctx.Value(ctxKey{}).(*requestInfo); ok {
		info.userID = userID
	}
}

// RequestLogger logs one line per request after the handler returns. Durations
// are measured on clock.
func RequestLogger(log *slog.Logger, clock clockwork.Clock) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := clock.Now()
			info := &requestInfo{}
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), ctxKey{}, info)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", clock.Since(start),
				"request_id", chimw.GetReqID(r.Context()),
			}
			if info.userID != 0 {
				attrs = append(attrs, "user_id", info.userID)
			}

			if status >= http.StatusInternalServerError {
				log.ErrorContext(r.Context(), "Request failed", attrs...)
				return
			}
			log.InfoContext(r.Context(), "Request handled", attrs...)
		})
	}
}
