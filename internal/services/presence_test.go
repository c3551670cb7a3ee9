package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bip/backend/internal/models"
)

func TestPresenceSetMode(t *testing.T) {
	ctx := context.Background()

	t.Run("should accept every mode and mark the user online", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		id := env.addUser(t, "mode1")

		for _, m := range models.Modes {
			got, err := env.presence.SetMode(ctx, id, m)
			req.NoError(err)
			req.Equal(m, got)

			status, err := env.presence.Status(ctx, id)
			req.NoError(err)
			req.Equal(m, status.Mode)
			req.True(status.IsOnline)
		}
	})

	t.Run("should reject unknown modes", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		id := env.addUser(t, "mode2")

		_, err := env.presence.SetMode(ctx, id, "AWAY")
		req.ErrorIs(err, ErrInvalidMode)
		requireKind(t, err, KindValidation)

		status, err := env.presence.Status(ctx, id)
		req.NoError(err)
		req.Equal(models.ModeIdle, status.Mode)
		req.False(status.IsOnline)
		req.Nil(status.LastSeenAt)
	})
}

func TestPresenceDerivedOnline(t *testing.T) {
	ctx := context.Background()

	t.Run("should go offline once the freshness window passes", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		id := env.addUser(t, "fresh1")

		_, err := env.presence.SetMode(ctx, id, models.ModeListenerAvailable)
		req.NoError(err)

		env.clock.Advance(testFreshness)
		status, err := env.presence.Status(ctx, id)
		req.NoError(err)
		req.True(status.IsOnline)

		env.clock.Advance(time.Second)
		status, err = env.presence.Status(ctx, id)
		req.NoError(err)
		req.False(status.IsOnline)
		req.Equal(models.ModeListenerAvailable, status.Mode)
	})

	t.Run("should refresh liveness on touch without changing mode", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		id := env.addUser(t, "touch1")

		_, err := env.presence.SetMode(ctx, id, models.ModeLookingToTalk)
		req.NoError(err)
		env.clock.Advance(10 * time.Minute)

		req.NoError(env.presence.Touch(ctx, id))
		status, err := env.presence.Status(ctx, id)
		req.NoError(err)
		req.True(status.IsOnline)
		req.Equal(models.ModeLookingToTalk, status.Mode)
		req.True(status.LastSeenAt.Equal(env.clock.Now()))
	})

	t.Run("should create an idle row on first touch", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		id := env.addUser(t, "touch2")

		req.NoError(env.presence.Touch(ctx, id))
		status, err := env.presence.Status(ctx, id)
		req.NoError(err)
		req.Equal(models.ModeIdle, status.Mode)
		req.True(status.IsOnline)
	})
}

func TestPresenceOnline(t *testing.T) {
	ctx := context.Background()

	t.Run("should list fresh users with safelisted ones first", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		viewer := env.addUser(t, "viewer1")
		stale := env.addUser(t, "stale1")
		amy := env.addUser(t, "amy1")
		zed := env.addUser(t, "zed1")
		banned := env.addUser(t, "banned1")

		_, err := env.presence.SetMode(ctx, stale, models.ModeListenerAvailable)
		req.NoError(err)
		env.clock.Advance(testFreshness + time.Second)

		for _, id := range []int64{viewer, amy, zed, banned} {
			_, err := env.presence.SetMode(ctx, id, models.ModeListenerAvailable)
			req.NoError(err)
		}
		_, err = env.db.Exec(`UPDATE users SET account_status = 'BANNED' WHERE id = ?`, banned)
		req.NoError(err)
		_, err = env.db.Exec(`INSERT INTO safe_users (user_id, safe_user_id, created_at) VALUES (?, ?, ?)`, viewer, zed, env.clock.Now().UTC())
		req.NoError(err)

		users, err := env.presence.Online(ctx, viewer, "")
		req.NoError(err)
		req.Len(users, 2)
		req.Equal(zed, users[0].UserID)
		req.True(users[0].IsInSafelist)
		req.Equal(amy, users[1].UserID)
		req.False(users[1].IsInSafelist)

		count, err := env.presence.CountOnline(ctx)
		req.NoError(err)
		req.Equal(4, count)
	})

	t.Run("should filter by mode", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		viewer := env.addUser(t, "viewer2")
		talker := env.addUser(t, "talker2")
		listener := env.addUser(t, "listener2")

		_, err := env.presence.SetMode(ctx, talker, models.ModeLookingToTalk)
		req.NoError(err)
		_, err = env.presence.SetMode(ctx, listener, models.ModeListenerAvailable)
		req.NoError(err)

		users, err := env.presence.Online(ctx, viewer, models.ModeListenerAvailable)
		req.NoError(err)
		req.Len(users, 1)
		req.Equal(listener, users[0].UserID)

		_, err = env.presence.Online(ctx, viewer, "BUSY")
		req.ErrorIs(err, ErrInvalidMode)
	})
}

func TestPresenceSweepStale(t *testing.T) {
	t.Run("should clear only stale liveness flags", func(t *testing.T) {
		req := require.New(t)
		ctx := context.Background()
		env := newTestEnv(t)
		old := env.addUser(t, "old1")
		fresh := env.addUser(t, "fresh2")

		req.NoError(env.presence.Touch(ctx, old))
		env.clock.Advance(testFreshness + time.Minute)
		req.NoError(env.presence.Touch(ctx, fresh))

		n, err := env.presence.SweepStale(ctx)
		req.NoError(err)
		req.EqualValues(1, n)
		req.Equal(0, env.count(t, `SELECT is_online FROM user_status WHERE user_id = ?`, old))
		req.Equal(1, env.count(t, `SELECT is_online FROM user_status WHERE user_id = ?`, fresh))
	})
}

func TestPresenceGoOffline(t *testing.T) {
	t.Run("should reset mode and liveness", func(t *testing.T) {
		req := require.New(t)
		ctx := context.Background()
		env := newTestEnv(t)
		id := env.addUser(t, "gone1")

		_, err := env.presence.SetMode(ctx, id, models.ModeListenerAvailable)
		req.NoError(err)
		req.NoError(env.presence.GoOffline(ctx, env.db, id))

		status, err := env.presence.Status(ctx, id)
		req.NoError(err)
		req.Equal(models.ModeIdle, status.Mode)
		req.False(status.IsOnline)
	})
}
