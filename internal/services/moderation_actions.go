package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/bip/backend/internal/models"
	"github.com/bip/backend/internal/storage"
)

// ApplyPenalty records a penalty and moves the target's account status in
// the same transaction. A permanent ban also takes the target offline.
func (m *ModerationService) ApplyPenalty(ctx context.Context, admin models.Identity, targetID int64, penalty models.PenaltyType, reason string) (*models.UserPenalty, error) {
	if !admin.IsAdmin {
		return nil, ErrNotAdmin
	}
	switch penalty {
	case models.PenaltyWarning, models.PenaltyTempBan, models.PenaltyPermaBan:
	default:
		return nil, ErrInvalidPenalty
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrMissingReason
	}

	out := &models.UserPenalty{
		UserID:      targetID,
		AdminID:     admin.UserID,
		PenaltyType: penalty,
		Reason:      reason,
		CreatedAt:   m.clock.Now().UTC(),
	}

	err := storage.WithTx(ctx, m.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE users SET account_status = ? WHERE id = ?`,
			penalty.AccountStatus(), targetID)
		if err != nil {
			return fmt.Errorf("failed to update account status: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("failed to read update count: %w", err)
		} else if n == 0 {
			return ErrUserNotFound
		}

		res, err = sqlx.NamedExecContext(ctx, tx, `
			INSERT INTO user_penalties (user_id, admin_id, penalty_type, reason, created_at)
			VALUES (:user_id, :admin_id, :penalty_type, :reason, :created_at)`, out)
		if err != nil {
			return fmt.Errorf("failed to insert penalty: %w", err)
		}
		if out.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to read penalty id: %w", err)
		}

		if penalty == models.PenaltyPermaBan {
			return m.presence.GoOffline(ctx, tx, targetID)
		}
		return nil
	})
	if err != nil {
		if _, ok := AsError(err); ok {
			return nil, err
		}
		m.logger.ErrorContext(ctx, "Failed to apply penalty", "target_id", targetID, "penalty", penalty, "error", err)
		return nil, persistence(ErrPenaltyFailed, err)
	}

	m.logger.InfoContext(ctx, "Penalty applied",
		"penalty_id", out.ID, "target_id", targetID, "admin_id", admin.UserID, "penalty", penalty)
	return out, nil
}

// Penalties lists the audit trail for a user, newest first.
func (m *ModerationService) Penalties(ctx context.Context, userID int64) ([]models.UserPenalty, error) {
	out := []models.UserPenalty{}
	err := m.db.SelectContext(ctx, &out, `
		SELECT id, user_id, admin_id, penalty_type, reason, created_at
		FROM user_penalties
		WHERE user_id = ?
		ORDER BY id DESC`, userID)
	if err != nil {
		return nil, persistence(ErrInternal, err)
	}
	return out, nil
}
