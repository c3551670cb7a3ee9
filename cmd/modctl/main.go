// Command modctl is the moderator's command line: it lists and resolves
// reports, applies penalties and prints platform statistics against the same
// database the API server uses.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gookit/color"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/pflag"

	"github.com/bip/backend/internal/app"
	"github.com/bip/backend/internal/config"
	"github.com/bip/backend/internal/storage"
)

const usage = `Usage: modctl [--no-color] <command> [flags]

Commands:
  reports        list pending reports
  resolve        resolve a report (--admin, --report, --status, --comment)
  penalize       apply a penalty (--admin, --user, --type, --reason)
  penalties      show a user's penalty history (--user)
  stats          print platform statistics
  grant-admin    grant or revoke admin rights (--user, --revoke)
  sweep          clear stale presence flags now
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global := pflag.NewFlagSet("modctl", pflag.ContinueOnError)
	global.SetOutput(stderr)
	global.SetInterspersed(false)
	noColor := global.Bool("no-color", false, "disable colored output")
	global.Usage = func() { fmt.Fprint(stderr, usage) }

	if err := global.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *noColor {
		color.Disable()
	}
	if global.NArg() == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, color.Red.Sprintf("configuration: %v", err))
		return 1
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	db, err := storage.Open(storage.Options{Path: cfg.Database.Path, MaxOpenConns: cfg.Database.MaxOpenConns}, logger)
	if err != nil {
		fmt.Fprintln(stderr, color.Red.Sprintf("database: %v", err))
		return 1
	}
	defer storage.Close(db, logger)

	notifier, err := app.NewNotifier(cfg.Notify, logger)
	if err != nil {
		fmt.Fprintln(stderr, color.Red.Sprintf("notifier: %v", err))
		return 1
	}
	svc, err := app.NewServices(ctx, cfg, db, clockwork.NewRealClock(), notifier, logger)
	if err != nil {
		fmt.Fprintln(stderr, color.Red.Sprintf("services: %v", err))
		return 1
	}

	cli := &CLI{svc: svc, out: stdout}
	if err := cli.Dispatch(ctx, global.Arg(0), global.Args()[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, color.Red.Sprintf("error: %v", err))
		if errors.Is(err, errUsage) {
			fmt.Fprint(stderr, usage)
			return 2
		}
		return 1
	}
	return 0
}
