package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/bip/backend/internal/app"
	"github.com/bip/backend/internal/config"
	"github.com/bip/backend/internal/models"
	"github.com/bip/backend/internal/notify"
	"github.com/bip/backend/internal/services"
	"github.com/bip/backend/internal/storage/storagetest"
)

type cliEnv struct {
	cli *CLI
	svc *app.Services
	out *bytes.Buffer
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	color.Disable()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		Presence:   config.PresenceConfig{FreshnessWindow: 180 * time.Second},
		Messages:   config.MessagesConfig{MaxLength: 4000},
		Moderation: config.ModerationConfig{CensorChar: "*"},
	}
	svc, err := app.NewServices(context.Background(), cfg, storagetest.Open(t), clockwork.NewRealClock(), notify.NewLog(logger), logger)
	require.NoError(t, err)

	out := &bytes.Buffer{}
	return &cliEnv{cli: &CLI{svc: svc, out: out}, svc: svc, out: out}
}

func (e *cliEnv) user(t *testing.T, name string) int64 {
	t.Helper()
	req := &models.RegisterRequest{Email: "box-" + name + "@example.com", Username: name, Password: "Sunny2day"}
	req.Normalize()
	u, err := e.svc.Users.Register(context.Background(), req)
	require.NoError(t, err)
	return u.ID
}

// reportedConversation opens a conversation, sends a message and has the
// listener report it.
func (e *cliEnv) reportedConversation(t *testing.T) (talker, listener, reportID int64) {
	t.Helper()
	ctx := context.Background()
	talker = e.user(t, "talker01")
	listener = e.user(t, "listener02")
	_, err := e.svc.Presence.SetMode(ctx, listener, models.ModeListenerAvailable)
	require.NoError(t, err)
	convID, _, err := e.svc.Matching.StartConversation(ctx, talker, listener)
	require.NoError(t, err)
	msg, err := e.svc.Messages.Send(ctx, convID, talker, "you are awful")
	require.NoError(t, err)
	reportID, err = e.svc.Moderation.FlagMessage(ctx, listener, msg.ID, models.FlagRef{Code: "INSULTING"}, "rude")
	require.NoError(t, err)
	return talker, listener, reportID
}

func TestCLI(t *testing.T) {
	ctx := context.Background()

	t.Run("should reject unknown commands", func(t *testing.T) {
		env := newCLIEnv(t)
		err := env.cli.Dispatch(ctx, "frobnicate", nil)
		require.ErrorIs(t, err, errUsage)
	})

	t.Run("should say when the queue is empty", func(t *testing.T) {
		env := newCLIEnv(t)
		require.NoError(t, env.cli.Dispatch(ctx, "reports", nil))
		require.Contains(t, env.out.String(), "No pending reports")
	})

	t.Run("should list, resolve and penalize", func(t *testing.T) {
		req := require.New(t)
		env := newCLIEnv(t)
		talker, _, reportID := env.reportedConversation(t)
		admin := env.user(t, "warden03")

		req.NoError(env.cli.Dispatch(ctx, "reports", nil))
		req.Contains(env.out.String(), "INSULTING")
		req.Contains(env.out.String(), "you are awful")

		err := env.cli.Dispatch(ctx, "resolve", []string{"--admin", itoa(admin), "--report", itoa(reportID), "--status", "confirmed", "--comment", "Be kind"})
		req.ErrorIs(err, services.ErrNotAdmin)

		env.out.Reset()
		req.NoError(env.cli.Dispatch(ctx, "grant-admin", []string{"--user", itoa(admin)}))
		req.Contains(env.out.String(), "Granted admin rights")

		env.out.Reset()
		req.NoError(env.cli.Dispatch(ctx, "resolve", []string{"--admin", itoa(admin), "--report", itoa(reportID), "--status", "confirmed", "--comment", "Be kind"}))
		req.Contains(env.out.String(), "CONFIRMED")

		env.out.Reset()
		req.NoError(env.cli.Dispatch(ctx, "penalize", []string{"--admin", itoa(admin), "--user", itoa(talker), "--type", "perma_ban", "--reason", "abuse"}))
		req.Contains(env.out.String(), "BANNED")

		u, err := env.svc.Users.GetByID(ctx, talker)
		req.NoError(err)
		req.Equal(models.AccountBanned, u.AccountStatus)

		env.out.Reset()
		req.NoError(env.cli.Dispatch(ctx, "penalties", []string{"--user", itoa(talker)}))
		req.Contains(env.out.String(), "PERMA_BAN")

		env.out.Reset()
		req.NoError(env.cli.Dispatch(ctx, "stats", nil))
		req.Contains(env.out.String(), "Confirmed reports")
	})

	t.Run("should require the admin flag", func(t *testing.T) {
		env := newCLIEnv(t)
		err := env.cli.Dispatch(ctx, "penalize", []string{"--user", "1", "--type", "WARNING", "--reason", "x"})
		require.ErrorIs(t, err, errUsage)
	})

	t.Run("should sweep presence", func(t *testing.T) {
		env := newCLIEnv(t)
		require.NoError(t, env.cli.Dispatch(ctx, "sweep", nil))
		require.Contains(t, env.out.String(), "Cleared 0 stale presence flags")
	})
}

func TestEllipsis(t *testing.T) {
	require.Equal(t, "short", ellipsis("short", 10))
	require.Equal(t, "abcd…", ellipsis("abcdefgh", 5))
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
