package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"

	"github.com/bip/backend/internal/models"
	"github.com/bip/backend/internal/storage"
)

// UserService stores accounts and checks credentials. It stands in for the
// session collaborator that resolves identities for the core.
type UserService struct {
	db       *sqlx.DB
	presence *PresenceRegistry
	clock    clockwork.Clock
	logger   *slog.Logger
}

func NewUserService(db *sqlx.DB, presence *PresenceRegistry, clock clockwork.Clock, logger *slog.Logger) *UserService {
	return &UserService{
		db:       db,
		presence: presence,
		clock:    clock,
		logger:   logger.With("component", "users"),
	}
}

const userColumns = `id, email, username, password_hash, profile_color, account_status, is_admin, has_seen_welcome, created_at`

// Register creates an ACTIVE, non-admin account. req must be normalized and
// validated by the caller.
func (s *UserService) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, persistence(ErrInternal, err)
	}

	user := &models.User{
		Email:         req.Email,
		Username:      req.Username,
		PasswordHash:  string(hashedPassword),
		ProfileColor:  req.ProfileColor,
		AccountStatus: models.AccountActive,
		CreatedAt:     s.clock.Now().UTC(),
	}

	res, err := s.db.NamedExecContext(ctx, `
		INSERT INTO users (email, username, password_hash, profile_color, account_status, created_at)
		VALUES (:email, :username, :password_hash, :profile_color, :account_status, :created_at)`, user)
	if err != nil {
		if storage.IsUniqueViolation(err) {
			return nil, ErrEmailExists
		}
		return nil, persistence(ErrInternal, err)
	}
	if user.ID, err = res.LastInsertId(); err != nil {
		return nil, persistence(ErrInternal, err)
	}

	s.logger.InfoContext(ctx, "User registered", "user_id", user.ID)
	return user, nil
}

// Login checks credentials, refuses banned accounts and marks the user online.
func (s *UserService) Login(ctx context.Context, req *models.LoginRequest) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE email = lower(trim(?))`, req.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, persistence(ErrInternal, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if user.AccountStatus == models.AccountBanned {
		return nil, ErrAccountBanned
	}

	if err := s.presence.Touch(ctx, user.ID); err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout takes the user offline and resets their mode.
func (s *UserService) Logout(ctx context.Context, userID int64) error {
	if err := s.presence.GoOffline(ctx, s.db, userID); err != nil {
		return persistence(ErrPresenceFailed, err)
	}
	return nil
}

func (s *UserService) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, persistence(ErrInternal, fmt.Errorf("failed to load user %d: %w", id, err))
	}
	return &user, nil
}

// MarkWelcomeSeen records that the user accepted the disclaimer.
func (s *UserService) MarkWelcomeSeen(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET has_seen_welcome = 1 WHERE id = ?`, id)
	if err != nil {
		return persistence(ErrInternal, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetAdmin grants or revokes admin rights. Used by the operator CLI.
func (s *UserService) SetAdmin(ctx context.Context, id int64, admin bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET is_admin = ? WHERE id = ?`, admin, id)
	if err != nil {
		return persistence(ErrInternal, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}
