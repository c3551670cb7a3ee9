package logging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestRequestLogger(t *testing.T) {
	t.Run("should log status and the user set by inner handlers", func(t *testing.T) {
		req := require.New(t)
		var buf bytes.Buffer
		log := newLogger(&buf, "info", "json")

		h := RequestLogger(log, clockwork.NewRealClock())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			SetUserID(r.Context(), 42)
			w.WriteHeader(http.StatusTeapot)
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/presence/me", nil))

		var line map[string]any
		req.NoError(json.Unmarshal(buf.Bytes(), &line))
		req.Equal("Request handled", line["msg"])
		req.Equal(float64(http.StatusTeapot), line["status"])
		req.Equal(float64(42), line["user_id"])
		req.Equal("/api/presence/me", line["path"])
	})

	t.Run("should measure the duration on the injected clock", func(t *testing.T) {
		req := require.New(t)
		var buf bytes.Buffer
		log := newLogger(&buf, "info", "json")
		clock := clockwork.NewFakeClock()

		h := RequestLogger(log, clock)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clock.Advance(250 * time.Millisecond)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

		var line map[string]any
		req.NoError(json.Unmarshal(buf.Bytes(), &line))
		req.Equal(float64(250*time.Millisecond), line["duration"])
	})

	t.Run("should drop debug lines at info level", func(t *testing.T) {
		req := require.New(t)
		var buf bytes.Buffer
		log := newLogger(&buf, "info", "text")
		log.Debug("hidden")
		req.Empty(buf.String())
	})
}
