package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"github.com/samber/lo"

	"github.com/bip/backend/internal/models"
)

// PresenceRegistry is the only writer of user_status rows. Other services
// pass their transaction in when a presence change must commit with them.
type PresenceRegistry struct {
	db        *sqlx.DB
	clock     clockwork.Clock
	freshness time.Duration
	logger    *slog.Logger
}

func NewPresenceRegistry(db *sqlx.DB, clock clockwork.Clock, freshness time.Duration, logger *slog.Logger) *PresenceRegistry {
	return &PresenceRegistry{
		db:        db,
		clock:     clock,
		freshness: freshness,
		logger:    logger.With("component", "presence"),
	}
}

// ValidMode reports whether m is one of the four presence modes.
func ValidMode(m models.Mode) bool {
	return lo.Contains(models.Modes, m)
}

// SetMode stores mode for the user and marks them online.
func (p *PresenceRegistry) SetMode(ctx context.Context, userID int64, mode models.Mode) (models.Mode, error) {
	if !ValidMode(mode) {
		return "", ErrInvalidMode
	}
	if err := p.upsertMode(ctx, p.db, userID, mode); err != nil {
		p.logger.ErrorContext(ctx, "Failed to set mode", "user_id", userID, "mode", mode, "error", err)
		return "", persistence(ErrPresenceFailed, err)
	}
	return mode, nil
}

// Touch refreshes liveness without changing the mode. The row is created
// in IDLE on first contact.
func (p *PresenceRegistry) Touch(ctx context.Context, userID int64) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO user_status (user_id, mode, is_online, last_seen)
		VALUES (?, 'IDLE', 1, ?)
		ON CONFLICT (user_id) DO UPDATE SET is_online = 1, last_seen = excluded.last_seen`,
		userID, p.now())
	if err != nil {
		return persistence(ErrPresenceFailed, err)
	}
	return nil
}

// EnterConversation moves every user to IN_CONVERSATION using ext, which is
// normally the matching transaction. Liveness is left alone: a missing row is
// created offline.
func (p *PresenceRegistry) EnterConversation(ctx context.Context, ext sqlx.ExecerContext, userIDs ...int64) error {
	for _, id := range userIDs {
		_, err := ext.ExecContext(ctx, `
			INSERT INTO user_status (user_id, mode, is_online, last_seen)
			VALUES (?, 'IN_CONVERSATION', 0, ?)
			ON CONFLICT (user_id) DO UPDATE SET mode = 'IN_CONVERSATION'`,
			id, p.now())
		if err != nil {
			return fmt.Errorf("failed to enter conversation for user %d: %w", id, err)
		}
	}
	return nil
}

// GoOffline clears liveness and resets the mode to IDLE.
func (p *PresenceRegistry) GoOffline(ctx context.Context, ext sqlx.ExecerContext, userID int64) error {
	_, err := ext.ExecContext(ctx, `
		INSERT INTO user_status (user_id, mode, is_online, last_seen)
		VALUES (?, 'IDLE', 0, ?)
		ON CONFLICT (user_id) DO UPDATE SET mode = 'IDLE', is_online = 0`,
		userID, p.now())
	if err != nil {
		return fmt.Errorf("failed to set user %d offline: %w", userID, err)
	}
	return nil
}

// LeaveConversation returns the user to IDLE if they are IN_CONVERSATION and
// leaves any other mode alone. It reports the resulting mode.
func (p *PresenceRegistry) LeaveConversation(ctx context.Context, userID int64) (models.Mode, error) {
	_, err := p.db.ExecContext(ctx, `
		UPDATE user_status SET mode = 'IDLE', is_online = 1, last_seen = ?
		WHERE user_id = ? AND mode = 'IN_CONVERSATION'`,
		p.now(), userID)
	if err != nil {
		return "", persistence(ErrPresenceFailed, err)
	}
	status, err := p.Status(ctx, userID)
	if err != nil {
		return "", err
	}
	return status.Mode, nil
}

// Status returns the derived presence of a user. A user without a status row
// is IDLE and offline.
func (p *PresenceRegistry) Status(ctx context.Context, userID int64) (models.Presence, error) {
	var s models.UserStatus
	err := p.db.GetContext(ctx, &s, `SELECT user_id, mode, is_online, last_seen FROM user_status WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Presence{Mode: models.ModeIdle}, nil
	}
	if err != nil {
		return models.Presence{}, persistence(ErrInternal, err)
	}
	return p.View(s), nil
}

// Mode returns the stored mode, IDLE when no row exists.
func (p *PresenceRegistry) Mode(ctx context.Context, q sqlx.QueryerContext, userID int64) (models.Mode, error) {
	var mode models.Mode
	err := sqlx.GetContext(ctx, q, &mode, `SELECT mode FROM user_status WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ModeIdle, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read mode for user %d: %w", userID, err)
	}
	return mode, nil
}

// IsOnline derives liveness: the flag must be set and the last heartbeat must
// fall inside the freshness window.
func (p *PresenceRegistry) IsOnline(online bool, lastSeen time.Time) bool {
	return online && p.clock.Since(lastSeen) <= p.freshness
}

// View converts a stored row into its client-facing form.
func (p *PresenceRegistry) View(s models.UserStatus) models.Presence {
	lastSeen := s.LastSeen
	return models.Presence{
		Mode:       s.Mode,
		IsOnline:   p.IsOnline(s.IsOnline, s.LastSeen),
		LastSeenAt: &lastSeen,
	}
}

// Online lists users that are currently online, excluding viewerID, with
// safelisted users first. An empty mode lists every mode.
func (p *PresenceRegistry) Online(ctx context.Context, viewerID int64, mode models.Mode) ([]models.OnlineUser, error) {
	if mode != "" && !ValidMode(mode) {
		return nil, ErrInvalidMode
	}

	var rows []models.OnlineUser
	err := p.db.SelectContext(ctx, &rows, `
		SELECT u.id AS user_id, u.username, u.profile_color, s.mode, s.is_online, s.last_seen,
		       EXISTS (SELECT 1 FROM safe_users su WHERE su.user_id = ? AND su.safe_user_id = u.id) AS is_in_safelist
		FROM users u
		JOIN user_status s ON s.user_id = u.id
		WHERE s.is_online = 1
		  AND u.id <> ?
		  AND u.account_status <> 'BANNED'
		  AND (? = '' OR s.mode = ?)
		ORDER BY is_in_safelist DESC, s.mode, u.username`,
		viewerID, viewerID, mode, mode)
	if err != nil {
		return nil, persistence(ErrInternal, err)
	}

	return lo.Filter(rows, func(u models.OnlineUser, _ int) bool {
		return p.IsOnline(u.RawOnlineFlag, u.LastSeenAt)
	}), nil
}

// CountOnline returns how many users are online right now.
func (p *PresenceRegistry) CountOnline(ctx context.Context) (int, error) {
	var seen []time.Time
	if err := p.db.SelectContext(ctx, &seen, `SELECT last_seen FROM user_status WHERE is_online = 1`); err != nil {
		return 0, persistence(ErrInternal, err)
	}
	return lo.CountBy(seen, func(t time.Time) bool { return p.IsOnline(true, t) }), nil
}

// SweepStale clears liveness flags whose heartbeat is older than the
// freshness window. Reads derive liveness anyway; this keeps the table honest.
func (p *PresenceRegistry) SweepStale(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.freshness)
	res, err := p.db.ExecContext(ctx, `UPDATE user_status SET is_online = 0 WHERE is_online = 1 AND last_seen < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep stale presence: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count swept rows: %w", err)
	}
	if n > 0 {
		p.logger.DebugContext(ctx, "Swept stale presence", "count", n)
	}
	return n, nil
}

func (p *PresenceRegistry) upsertMode(ctx context.Context, ext sqlx.ExecerContext, userID int64, mode models.Mode) error {
	_, err := ext.ExecContext(ctx, `
		INSERT INTO user_status (user_id, mode, is_online, last_seen)
		VALUES (?, ?, 1, ?)
		ON CONFLICT (user_id) DO UPDATE SET mode = excluded.mode, is_online = 1, last_seen = excluded.last_seen`,
		userID, mode, p.now())
	return err
}

func (p *PresenceRegistry) now() time.Time {
	return p.clock.Now().UTC()
}
