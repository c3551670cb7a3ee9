package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/pflag"

	"github.com/bip/backend/internal/app"
	"github.com/bip/backend/internal/models"
	"github.com/bip/backend/internal/services"
)

var errUsage = errors.New("invalid usage")

// CLI runs moderator commands against the service layer.
type CLI struct {
	svc *app.Services
	out io.Writer
}

func (c *CLI) Dispatch(ctx context.Context, command string, args []string) error {
	switch command {
	case "reports":
		return c.reports(ctx, args)
	case "resolve":
		return c.resolve(ctx, args)
	case "penalize":
		return c.penalize(ctx, args)
	case "penalties":
		return c.penalties(ctx, args)
	case "stats":
		return c.stats(ctx, args)
	case "grant-admin":
		return c.grantAdmin(ctx, args)
	case "sweep":
		return c.sweep(ctx, args)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
}

func newFlagSet(name string, out io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

// adminIdentity resolves --admin into an identity, refusing non-admins
// before any service call.
func (c *CLI) adminIdentity(ctx context.Context, adminID int64) (models.Identity, error) {
	if adminID <= 0 {
		return models.Identity{}, fmt.Errorf("%w: --admin is required", errUsage)
	}
	user, err := c.svc.Users.GetByID(ctx, adminID)
	if err != nil {
		return models.Identity{}, err
	}
	if !user.IsAdmin {
		return models.Identity{}, services.ErrNotAdmin
	}
	return models.Identity{UserID: user.ID, IsAdmin: true}, nil
}

func (c *CLI) newTable(header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(c.out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	return table
}

func (c *CLI) reports(ctx context.Context, args []string) error {
	fs := newFlagSet("reports", c.out)
	if err := fs.Parse(args); err != nil {
		return err
	}

	reports, err := c.svc.Moderation.PendingReports(ctx)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		fmt.Fprintln(c.out, color.Green.Sprint("No pending reports"))
		return nil
	}

	table := c.newTable("Report", "Conversation", "Flag", "Severity", "Reporter", "Sender", "Message", "Filed")
	for _, r := range reports {
		sender := "system"
		if r.SenderUsername != nil {
			sender = *r.SenderUsername
		}
		table.Append([]string{
			strconv.FormatInt(r.ReportID, 10),
			strconv.FormatInt(r.ConversationID, 10),
			r.FlagCode,
			severityLabel(r.Severity),
			r.ReporterUsername,
			sender,
			ellipsis(r.MessageContent, 60),
			r.CreatedAt.Format(time.DateTime),
		})
	}
	table.Render()
	return nil
}

func (c *CLI) resolve(ctx context.Context, args []string) error {
	fs := newFlagSet("resolve", c.out)
	adminID := fs.Int64("admin", 0, "acting admin user id")
	reportID := fs.Int64("report", 0, "report id")
	status := fs.String("status", "", "CONFIRMED or DISCARDED")
	comment := fs.String("comment", "", "comment posted into the conversation")
	if err := fs.Parse(args); err != nil {
		return err
	}

	admin, err := c.adminIdentity(ctx, *adminID)
	if err != nil {
		return err
	}
	decision := models.ReportStatus(strings.ToUpper(*status))
	if err := c.svc.Moderation.ResolveReport(ctx, admin, *reportID, decision, *comment); err != nil {
		return err
	}
	fmt.Fprintln(c.out, color.Green.Sprintf("Report %d marked %s", *reportID, decision))
	return nil
}

func (c *CLI) penalize(ctx context.Context, args []string) error {
	fs := newFlagSet("penalize", c.out)
	adminID := fs.Int64("admin", 0, "acting admin user id")
	userID := fs.Int64("user", 0, "target user id")
	penaltyType := fs.String("type", "", "WARNING, TEMP_BAN or PERMA_BAN")
	reason := fs.String("reason", "", "reason recorded with the penalty")
	if err := fs.Parse(args); err != nil {
		return err
	}

	admin, err := c.adminIdentity(ctx, *adminID)
	if err != nil {
		return err
	}
	penalty, err := c.svc.Moderation.ApplyPenalty(ctx, admin, *userID, models.PenaltyType(strings.ToUpper(*penaltyType)), *reason)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, color.Yellow.Sprintf("Applied %s to user %d (account now %s)",
		penalty.PenaltyType, penalty.UserID, penalty.PenaltyType.AccountStatus()))
	return nil
}

func (c *CLI) penalties(ctx context.Context, args []string) error {
	fs := newFlagSet("penalties", c.out)
	userID := fs.Int64("user", 0, "user id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID <= 0 {
		return fmt.Errorf("%w: --user is required", errUsage)
	}

	penalties, err := c.svc.Moderation.Penalties(ctx, *userID)
	if err != nil {
		return err
	}
	if len(penalties) == 0 {
		fmt.Fprintln(c.out, color.Green.Sprintf("User %d has no penalties", *userID))
		return nil
	}

	table := c.newTable("Penalty", "Type", "Admin", "Reason", "Applied")
	for _, p := range penalties {
		table.Append([]string{
			strconv.FormatInt(p.ID, 10),
			string(p.PenaltyType),
			strconv.FormatInt(p.AdminID, 10),
			p.Reason,
			p.CreatedAt.Format(time.DateTime),
		})
	}
	table.Render()
	return nil
}

func (c *CLI) stats(ctx context.Context, args []string) error {
	fs := newFlagSet("stats", c.out)
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := c.svc.Moderation.Stats(ctx)
	if err != nil {
		return err
	}

	table := c.newTable("Metric", "Value")
	table.AppendBulk([][]string{
		{"Total users", strconv.Itoa(s.TotalUsers)},
		{"Active users", strconv.Itoa(s.ActiveUsers)},
		{"Online users", strconv.Itoa(s.OnlineUsers)},
		{"Conversations", strconv.Itoa(s.Conversations)},
		{"Pending reports", strconv.Itoa(s.PendingReports)},
		{"Confirmed reports", strconv.Itoa(s.ConfirmedReports)},
	})
	table.Render()
	return nil
}

func (c *CLI) grantAdmin(ctx context.Context, args []string) error {
	fs := newFlagSet("grant-admin", c.out)
	userID := fs.Int64("user", 0, "user id")
	revoke := fs.Bool("revoke", false, "revoke instead of grant")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID <= 0 {
		return fmt.Errorf("%w: --user is required", errUsage)
	}

	if err := c.svc.Users.SetAdmin(ctx, *userID, !*revoke); err != nil {
		return err
	}
	if *revoke {
		fmt.Fprintln(c.out, color.Yellow.Sprintf("Revoked admin rights from user %d", *userID))
	} else {
		fmt.Fprintln(c.out, color.Green.Sprintf("Granted admin rights to user %d", *userID))
	}
	return nil
}

func (c *CLI) sweep(ctx context.Context, args []string) error {
	fs := newFlagSet("sweep", c.out)
	if err := fs.Parse(args); err != nil {
		return err
	}
	n, err := c.svc.Presence.SweepStale(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Cleared %d stale presence flags\n", n)
	return nil
}

func severityLabel(s models.Severity) string {
	switch s {
	case models.SeverityCritical:
		return color.Red.Sprint(string(s))
	case models.SeverityHigh:
		return color.LightRed.Sprint(string(s))
	case models.SeverityMedium:
		return color.Yellow.Sprint(string(s))
	default:
		return string(s)
	}
}

func ellipsis(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}
