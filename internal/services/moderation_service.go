package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"

	"github.com/bip/backend/internal/models"
	"github.com/bip/backend/internal/storage"
)

// SystemMessagePrefix starts every moderation outcome injected into a
// conversation.
const SystemMessagePrefix = "System Message: "

const notifyTimeout = 10 * time.Second

// Notifier is told about new reports after they are committed.
type Notifier interface {
	ReportFiled(ctx context.Context, report models.PendingReport) error
}

// ModerationService handles flag intake, report resolution and penalties.
type ModerationService struct {
	db       *sqlx.DB
	store    *ConversationStore
	presence *PresenceRegistry
	flags    *FlagCatalog
	notifier Notifier
	clock    clockwork.Clock
	logger   *slog.Logger
}

// NewModerationService wires the engine. notifier may be nil.
func NewModerationService(db *sqlx.DB, store *ConversationStore, presence *PresenceRegistry, flags *FlagCatalog, notifier Notifier, clock clockwork.Clock, logger *slog.Logger) *ModerationService {
	return &ModerationService{
		db:       db,
		store:    store,
		presence: presence,
		flags:    flags,
		notifier: notifier,
		clock:    clock,
		logger:   logger.With("component", "moderation"),
	}
}

// Flags exposes the loaded taxonomy.
func (m *ModerationService) Flags() *FlagCatalog { return m.flags }

// FlagMessage files a PENDING report against a message the reporter can see
// and marks the message flagged. An empty ref defaults to OTHER.
func (m *ModerationService) FlagMessage(ctx context.Context, reporterID, messageID int64, ref models.FlagRef, reason string) (int64, error) {
	if messageID <= 0 {
		return 0, ErrMessageNotFound
	}
	if ref.IsZero() {
		ref.Code = "OTHER"
	}
	flag, err := m.flags.Resolve(ref, models.CategoryMessage)
	if err != nil {
		return 0, err
	}

	var reportID int64
	err = storage.WithTx(ctx, m.db, func(tx *sqlx.Tx) error {
		if _, err := m.store.MessageVisibleTo(ctx, tx, messageID, reporterID); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO reports (message_id, reporter_id, flag_type_id, reason, status, created_at)
			VALUES (?, ?, ?, ?, 'PENDING', ?)`,
			messageID, reporterID, flag.ID, strings.TrimSpace(reason), m.clock.Now().UTC())
		if err != nil {
			if storage.IsUniqueViolation(err) {
				return ErrDuplicateReport
			}
			return fmt.Errorf("failed to insert report: %w", err)
		}
		if reportID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to read report id: %w", err)
		}
		return m.store.MarkFlagged(ctx, tx, messageID)
	})
	if err != nil {
		if _, ok := AsError(err); ok {
			return 0, err
		}
		m.logger.ErrorContext(ctx, "Failed to file report", "message_id", messageID, "reporter_id", reporterID, "error", err)
		return 0, persistence(ErrReportFailed, err)
	}

	m.logger.InfoContext(ctx, "Message reported",
		"report_id", reportID, "message_id", messageID, "flag", flag.Code, "severity", flag.Severity)
	m.notifyReport(ctx, reportID)
	return reportID, nil
}

// RateUser records a categorical flag and/or a star rating about target.
// Each produces its own row; a positive flag also adds target to the rater's
// safelist. A call carrying neither is accepted and writes nothing.
func (m *ModerationService) RateUser(ctx context.Context, raterID, targetID int64, ref models.FlagRef, rating *int) error {
	if raterID == targetID {
		return ErrCannotRateSelf
	}
	if ref.IsZero() && rating == nil {
		return nil
	}

	var flag *models.FlagType
	if !ref.IsZero() {
		f, err := m.flags.Resolve(ref, models.CategoryUser)
		if err != nil {
			return err
		}
		flag = &f
	}
	if rating != nil && (*rating < 1 || *rating > 5) {
		return ErrInvalidRating
	}

	err := storage.WithTx(ctx, m.db, func(tx *sqlx.Tx) error {
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM users WHERE id = ?)`, targetID); err != nil {
			return fmt.Errorf("failed to check target: %w", err)
		}
		if !exists {
			return ErrUserNotFound
		}

		now := m.clock.Now().UTC()
		insert := `INSERT INTO user_ratings (rater_id, target_id, flag_type_id, rating, created_at) VALUES (?, ?, ?, ?, ?)`

		if flag != nil {
			if _, err := tx.ExecContext(ctx, insert, raterID, targetID, flag.ID, nil, now); err != nil {
				return fmt.Errorf("failed to insert user flag: %w", err)
			}
			if flag.Sentiment == models.SentimentPositive {
				if _, err := tx.ExecContext(ctx, `
					INSERT OR IGNORE INTO safe_users (user_id, safe_user_id, created_at) VALUES (?, ?, ?)`,
					raterID, targetID, now); err != nil {
					return fmt.Errorf("failed to add safelist edge: %w", err)
				}
			}
		}
		if rating != nil {
			if _, err := tx.ExecContext(ctx, insert, raterID, targetID, nil, *rating, now); err != nil {
				return fmt.Errorf("failed to insert rating: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if _, ok := AsError(err); ok {
			return err
		}
		m.logger.ErrorContext(ctx, "Failed to rate user", "rater_id", raterID, "target_id", targetID, "error", err)
		return persistence(ErrRatingFailed, err)
	}
	return nil
}

type reportTarget struct {
	Status         models.ReportStatus `db:"status"`
	ConversationID int64               `db:"conversation_id"`
}

// ResolveReport moves a PENDING report to decision and posts the admin's
// comment into the conversation that owns the flagged message.
func (m *ModerationService) ResolveReport(ctx context.Context, admin models.Identity, reportID int64, decision models.ReportStatus, comment string) error {
	if !admin.IsAdmin {
		return ErrNotAdmin
	}
	if reportID <= 0 {
		return ErrReportNotFound
	}
	if decision != models.ReportConfirmed && decision != models.ReportDiscarded {
		return ErrInvalidDecision
	}
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return ErrMissingComment
	}

	err := storage.WithTx(ctx, m.db, func(tx *sqlx.Tx) error {
		var target reportTarget
		err := tx.GetContext(ctx, &target, `
			SELECT r.status, msg.conversation_id
			FROM reports r
			JOIN messages msg ON msg.id = r.message_id
			WHERE r.id = ?`, reportID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrReportNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load report: %w", err)
		}
		if target.Status != models.ReportPending {
			return ErrReportAlreadyResolved
		}

		now := m.clock.Now().UTC()
		res, err := tx.ExecContext(ctx, `
			UPDATE reports
			SET status = ?, admin_comment = ?, handled_by = ?, handled_at = ?
			WHERE id = ? AND status = 'PENDING'`,
			decision, comment, admin.UserID, now, reportID)
		if err != nil {
			return fmt.Errorf("failed to update report: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("failed to read update count: %w", err)
		} else if n != 1 {
			return ErrReportAlreadyResolved
		}

		_, err = m.store.InsertSystemMessage(ctx, tx, target.ConversationID, SystemMessagePrefix+comment, now)
		return err
	})
	if err != nil {
		if _, ok := AsError(err); ok {
			return err
		}
		m.logger.ErrorContext(ctx, "Failed to resolve report", "report_id", reportID, "error", err)
		return persistence(ErrResolveFailed, err)
	}

	m.logger.InfoContext(ctx, "Report resolved", "report_id", reportID, "admin_id", admin.UserID, "decision", decision)
	return nil
}

const pendingReportQuery = `
	SELECT r.id AS report_id, r.message_id, msg.conversation_id, msg.content AS message_content,
	       ft.code AS flag_code, ft.severity, r.reason, r.reporter_id, rep.username AS reporter_username,
	       msg.sender_id, snd.username AS sender_username, r.created_at
	FROM reports r
	JOIN messages msg ON msg.id = r.message_id
	JOIN flag_types ft ON ft.id = r.flag_type_id
	JOIN users rep ON rep.id = r.reporter_id
	LEFT JOIN users snd ON snd.id = msg.sender_id`

// PendingReports lists unresolved reports, oldest first.
func (m *ModerationService) PendingReports(ctx context.Context) ([]models.PendingReport, error) {
	out := []models.PendingReport{}
	err := m.db.SelectContext(ctx, &out, pendingReportQuery+`
		WHERE r.status = 'PENDING'
		ORDER BY r.created_at ASC, r.id ASC`)
	if err != nil {
		return nil, persistence(ErrInternal, err)
	}
	return out, nil
}

// Stats summarises users, conversations and the report queue.
func (m *ModerationService) Stats(ctx context.Context) (*models.Stats, error) {
	var s models.Stats
	err := m.db.GetContext(ctx, &s, `
		SELECT
			(SELECT COUNT(*) FROM users) AS total_users,
			(SELECT COUNT(*) FROM users WHERE account_status <> 'BANNED') AS active_users,
			(SELECT COUNT(*) FROM conversations) AS conversations,
			(SELECT COUNT(*) FROM reports WHERE status = 'PENDING') AS pending_reports,
			(SELECT COUNT(*) FROM reports WHERE status = 'CONFIRMED') AS confirmed_reports`)
	if err != nil {
		return nil, persistence(ErrInternal, err)
	}
	if s.OnlineUsers, err = m.presence.CountOnline(ctx); err != nil {
		return nil, err
	}
	return &s, nil
}

// notifyReport hands the committed report to the notifier without holding
// up the request.
func (m *ModerationService) notifyReport(ctx context.Context, reportID int64) {
	if m.notifier == nil {
		return
	}
	var report models.PendingReport
	if err := m.db.GetContext(ctx, &report, pendingReportQuery+` WHERE r.id = ?`, reportID); err != nil {
		m.logger.WarnContext(ctx, "Failed to load report for notification", "report_id", reportID, "error", err)
		return
	}

	go func() {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		if err := m.notifier.ReportFiled(nctx, report); err != nil {
			m.logger.WarnContext(nctx, "Failed to notify moderators", "report_id", reportID, "error", err)
		}
	}()
}
