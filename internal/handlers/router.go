package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jonboulle/clockwork"

	"github.com/bip/backend/internal/logging"
	appMiddleware "github.com/bip/backend/internal/middleware"
	"github.com/bip/backend/internal/services"
)

// Deps is everything the HTTP layer needs.
type Deps struct {
	Users      *services.UserService
	Presence   *services.PresenceRegistry
	Matching   *services.MatchingService
	Messages   *services.MessageSync
	Moderation *services.ModerationService
	Clock      clockwork.Clock
	Logger     *slog.Logger

	JWTSecret         string
	JWTExpiration     time.Duration
	HeartbeatInterval time.Duration
	RequestTimeout    time.Duration
	AllowedOrigins    []string
}

// NewRouter builds the API router with its middleware chain.
func NewRouter(d Deps) http.Handler {
	log := d.Logger.With("component", "http")

	authHandler := NewAuthHandler(d.Users, d.Clock, d.JWTSecret, d.JWTExpiration, log)
	presenceHandler := NewPresenceHandler(d.Presence, d.HeartbeatInterval, log)
	conversationHandler := NewConversationHandler(d.Matching, log)
	messageHandler := NewMessageHandler(d.Messages, log)
	moderationHandler := NewModerationHandler(d.Moderation, log)
	adminHandler := NewAdminHandler(d.Moderation, log)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(d.Logger, d.Clock))
	r.Use(middleware.Recoverer)
	if d.RequestTimeout > 0 {
		r.Use(middleware.Timeout(d.RequestTimeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.JWTAuth(d.JWTSecret, d.Users, d.Presence, d.Logger))

			r.Route("/auth", func(r chi.Router) {
				r.Post("/logout", authHandler.Logout)
				r.Get("/me", authHandler.Me)
				r.Post("/welcome", authHandler.AcceptWelcome)
			})

			r.Route("/presence", func(r chi.Router) {
				r.Post("/status", presenceHandler.UpdateStatus)
				r.Post("/ping", presenceHandler.Ping)
				r.Get("/me", presenceHandler.Me)
				r.Get("/online", presenceHandler.Online)
			})

			r.Route("/conversations", func(r chi.Router) {
				r.Get("/", conversationHandler.List)
				r.Post("/", conversationHandler.Start)
				r.Post("/{conversationID}/leave", conversationHandler.Leave)
			})

			r.Route("/messages", func(r chi.Router) {
				r.Get("/", messageHandler.Poll)
				r.Post("/", messageHandler.Send)
			})

			r.Get("/flags", moderationHandler.Flags)
			r.Route("/moderation", func(r chi.Router) {
				r.Post("/flag-message", moderationHandler.FlagMessage)
				r.Post("/rate-user", moderationHandler.RateUser)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(appMiddleware.RequireAdmin)
				r.Get("/reports", adminHandler.PendingReports)
				r.Post("/reports/resolve", adminHandler.ResolveReport)
				r.Post("/penalties", adminHandler.ApplyPenalty)
				r.Get("/users/{userID}/penalties", adminHandler.Penalties)
				r.Get("/stats", adminHandler.Stats)
			})
		})
	})

	return r
}
