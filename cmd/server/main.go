// Command server runs the peer-support chat API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/bip/backend/internal/app"
	"github.com/bip/backend/internal/config"
	"github.com/bip/backend/internal/handlers"
	"github.com/bip/backend/internal/logging"
	"github.com/bip/backend/internal/scheduler"
	"github.com/bip/backend/internal/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run wires every component, serves until ctx is cancelled and returns the
// process exit code.
func run(ctx context.Context) int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}

	log := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
	log.Info("Logger initialized", "level", cfg.Log.Level, "format", cfg.Log.Format)

	db, err := storage.Open(storage.Options{Path: cfg.Database.Path, MaxOpenConns: cfg.Database.MaxOpenConns}, log)
	if err != nil {
		log.Error("Failed to open database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer storage.Close(db, log)

	clock := clockwork.NewRealClock()

	notifier, err := app.NewNotifier(cfg.Notify, log)
	if err != nil {
		log.Error("Failed to initialize notifier", "error", err)
		return 1
	}

	svc, err := app.NewServices(ctx, cfg, db, clock, notifier, log)
	if err != nil {
		log.Error("Failed to initialize services", "error", err)
		return 1
	}

	sched, err := scheduler.New(clock, log)
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}
	if err := sched.AddPresenceSweep(cfg.Presence.SweepInterval, svc.Presence); err != nil {
		log.Error("Failed to register presence sweep", "error", err)
		return 1
	}

	router := handlers.NewRouter(handlers.Deps{
		Users:             svc.Users,
		Presence:          svc.Presence,
		Matching:          svc.Matching,
		Messages:          svc.Messages,
		Moderation:        svc.Moderation,
		Clock:             clock,
		Logger:            log,
		JWTSecret:         cfg.Auth.JWTSecret,
		JWTExpiration:     cfg.Auth.JWTExpiration,
		HeartbeatInterval: cfg.Presence.HeartbeatInterval,
		RequestTimeout:    cfg.Server.RequestTimeout,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("API server starting", "address", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		sched.Start()
		<-gctx.Done()
		return sched.Stop()
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server stopped due to error", "error", err)
		return 1
	}

	log.Info("Server stopped gracefully")
	return 0
}
