// Package app assembles the service graph shared by the API server and the
// operator CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"

	"github.com/bip/backend/internal/config"
	"github.com/bip/backend/internal/notify"
	"github.com/bip/backend/internal/services"
)

type Services struct {
	Users      *services.UserService
	Presence   *services.PresenceRegistry
	Store      *services.ConversationStore
	Matching   *services.MatchingService
	Messages   *services.MessageSync
	Moderation *services.ModerationService
}

// NewNotifier returns the Telegram notifier when configured, otherwise one
// that only logs.
func NewNotifier(cfg config.NotifyConfig, logger *slog.Logger) (services.Notifier, error) {
	if !cfg.Enabled() {
		return notify.NewLog(logger), nil
	}
	tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram notifier: %w", err)
	}
	return tg, nil
}

// NewServices wires every service against db. The flag catalog is loaded
// once here and stays immutable for the life of the process.
func NewServices(ctx context.Context, cfg *config.Config, db *sqlx.DB, clock clockwork.Clock, notifier services.Notifier, logger *slog.Logger) (*Services, error) {
	censor, err := services.NewCensor(cfg.Moderation.CensoredWords, cfg.Moderation.CensorRune())
	if err != nil {
		return nil, fmt.Errorf("failed to build censor: %w", err)
	}

	flags, err := services.LoadFlagCatalog(ctx, db)
	if err != nil {
		return nil, err
	}

	presence := services.NewPresenceRegistry(db, clock, cfg.Presence.FreshnessWindow, logger)
	store := services.NewConversationStore(db)

	return &Services{
		Users:      services.NewUserService(db, presence, clock, logger),
		Presence:   presence,
		Store:      store,
		Matching:   services.NewMatchingService(db, store, presence, clock, logger),
		Messages:   services.NewMessageSync(db, store, presence, censor, cfg.Messages.MaxLength, clock, logger),
		Moderation: services.NewModerationService(db, store, presence, flags, notifier, clock, logger),
	}, nil
}
