package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bip/backend/internal/models"
)

func TestUserService(t *testing.T) {
	ctx := context.Background()
	register := func(t *testing.T, env *testEnv) *models.User {
		t.Helper()
		r := &models.RegisterRequest{Email: "Kim@Example.com", Username: "quiet2024x", Password: "Sup3rSecret", ProfileColor: "#9b59b6"}
		r.Normalize()
		require.Empty(t, r.Validate())
		u, err := env.users.Register(ctx, r)
		require.NoError(t, err)
		return u
	}

	t.Run("should register and log in, creating presence lazily", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		u := register(t, env)
		req.Equal("kim@example.com", u.Email)
		req.Equal(models.AccountActive, u.AccountStatus)

		status, err := env.presence.Status(ctx, u.ID)
		req.NoError(err)
		req.False(status.IsOnline)

		logged, err := env.users.Login(ctx, &models.LoginRequest{Email: " KIM@example.com", Password: "Sup3rSecret"})
		req.NoError(err)
		req.Equal(u.ID, logged.ID)
		req.Equal("#9B59B6", logged.ProfileColor)

		status, err = env.presence.Status(ctx, u.ID)
		req.NoError(err)
		req.True(status.IsOnline)
		req.Equal(models.ModeIdle, status.Mode)
	})

	t.Run("should reject duplicates and bad passwords", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		register(t, env)

		dup := &models.RegisterRequest{Email: "kim@example.com", Username: "other99", Password: "Sup3rSecret", ProfileColor: "#9B59B6"}
		_, err := env.users.Register(ctx, dup)
		req.ErrorIs(err, ErrEmailExists)

		_, err = env.users.Login(ctx, &models.LoginRequest{Email: "kim@example.com", Password: "wrong"})
		req.ErrorIs(err, ErrInvalidCredentials)
		_, err = env.users.Login(ctx, &models.LoginRequest{Email: "nobody@example.com", Password: "wrong"})
		req.ErrorIs(err, ErrInvalidCredentials)
	})

	t.Run("should refuse banned accounts", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		u := register(t, env)
		_, err := env.db.Exec(`UPDATE users SET account_status = 'BANNED' WHERE id = ?`, u.ID)
		req.NoError(err)

		_, err = env.users.Login(ctx, &models.LoginRequest{Email: "kim@example.com", Password: "Sup3rSecret"})
		req.ErrorIs(err, ErrAccountBanned)
	})

	t.Run("should log out and record the welcome flag", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		u := register(t, env)
		_, err := env.presence.SetMode(ctx, u.ID, models.ModeListenerAvailable)
		req.NoError(err)

		req.NoError(env.users.Logout(ctx, u.ID))
		status, err := env.presence.Status(ctx, u.ID)
		req.NoError(err)
		req.False(status.IsOnline)
		req.Equal(models.ModeIdle, status.Mode)

		req.NoError(env.users.MarkWelcomeSeen(ctx, u.ID))
		got, err := env.users.GetByID(ctx, u.ID)
		req.NoError(err)
		req.True(got.HasSeenWelcome)

		req.ErrorIs(env.users.MarkWelcomeSeen(ctx, 9999), ErrUserNotFound)
		_, err = env.users.GetByID(ctx, 9999)
		req.ErrorIs(err, ErrUserNotFound)
	})
}
