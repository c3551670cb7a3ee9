// Package notify tells moderators about new reports.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"

	"github.com/bip/backend/internal/models"
)

// Log writes report alerts to the process log. It is used when no chat
// channel is configured.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger.With("component", "notify")}
}

func (l *Log) ReportFiled(ctx context.Context, r models.PendingReport) error {
	l.logger.InfoContext(ctx, "New report awaiting review",
		"report_id", r.ReportID, "flag", r.FlagCode, "severity", r.Severity, "conversation_id", r.ConversationID)
	return nil
}

// Telegram posts report alerts to a moderator chat.
type Telegram struct {
	bot    *bot.Bot
	chatID int64
	logger *slog.Logger
}

// NewTelegram creates the bot client without contacting Telegram.
func NewTelegram(token string, chatID int64, logger *slog.Logger, opts ...bot.Option) (*Telegram, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token cannot be empty")
	}
	opts = append([]bot.Option{bot.WithSkipGetMe()}, opts...)
	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &Telegram{bot: b, chatID: chatID, logger: logger.With("component", "notify")}, nil
}

func (t *Telegram) ReportFiled(ctx context.Context, r models.PendingReport) error {
	_, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: t.chatID,
		Text:   FormatReport(r),
	})
	if err != nil {
		return fmt.Errorf("failed to send report alert: %w", err)
	}
	t.logger.DebugContext(ctx, "Report alert sent", "report_id", r.ReportID)
	return nil
}

// FormatReport renders a plain-text alert.
func FormatReport(r models.PendingReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "New report #%d [%s/%s]\n", r.ReportID, r.FlagCode, r.Severity)
	fmt.Fprintf(&sb, "Conversation %d, message %d\n", r.ConversationID, r.MessageID)
	fmt.Fprintf(&sb, "Reporter: %s\n", r.ReporterUsername)
	if r.SenderUsername != nil {
		fmt.Fprintf(&sb, "Sender: %s\n", *r.SenderUsername)
	}
	fmt.Fprintf(&sb, "Message: %q", truncate(r.MessageContent, 200))
	if r.Reason != "" {
		fmt.Fprintf(&sb, "\nReason: %s", r.Reason)
	}
	return sb.String()
}

func truncate(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes-3]) + "..."
}
