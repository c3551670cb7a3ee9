package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/bip/backend/internal/models"
	"github.com/bip/backend/internal/storage/storagetest"
)

const testFreshness = 180 * time.Second

type testEnv struct {
	db         *sqlx.DB
	clock      *clockwork.FakeClock
	presence   *PresenceRegistry
	store      *ConversationStore
	matching   *MatchingService
	messages   *MessageSync
	moderation *ModerationService
	users      *UserService
	notifier   *recordingNotifier
}

type recordingNotifier struct {
	reports chan models.PendingReport
}

func (n *recordingNotifier) ReportFiled(_ context.Context, r models.PendingReport) error {
	n.reports <- r
	return nil
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithCensor(t, nil)
}

func newTestEnvWithCensor(t *testing.T, words []string) *testEnv {
	t.Helper()
	return newTestEnvOn(t, storagetest.Open(t), words)
}

func newTestEnvOn(t *testing.T, db *sqlx.DB, words []string) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))

	censor, err := NewCensor(words, '*')
	require.NoError(t, err)
	flags, err := LoadFlagCatalog(ctx, db)
	require.NoError(t, err)

	presence := NewPresenceRegistry(db, clock, testFreshness, logger)
	store := NewConversationStore(db)
	notifier := &recordingNotifier{reports: make(chan models.PendingReport, 16)}

	return &testEnv{
		db:         db,
		clock:      clock,
		presence:   presence,
		store:      store,
		matching:   NewMatchingService(db, store, presence, clock, logger),
		messages:   NewMessageSync(db, store, presence, censor, 50, clock, logger),
		moderation: NewModerationService(db, store, presence, flags, notifier, clock, logger),
		users:      NewUserService(db, presence, clock, logger),
		notifier:   notifier,
	}
}

// addUser inserts an account directly, skipping bcrypt.
func (e *testEnv) addUser(t *testing.T, name string) int64 {
	t.Helper()
	res, err := e.db.Exec(`
		INSERT INTO users (email, username, password_hash, created_at) VALUES (?, ?, 'x', ?)`,
		name+"@example.com", name, e.clock.Now().UTC())
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func (e *testEnv) addAdmin(t *testing.T, name string) models.Identity {
	t.Helper()
	id := e.addUser(t, name)
	_, err := e.db.Exec(`UPDATE users SET is_admin = 1 WHERE id = ?`, id)
	require.NoError(t, err)
	return models.Identity{UserID: id, IsAdmin: true}
}

// pair creates a talker and an available listener and starts their
// conversation.
func (e *testEnv) pair(t *testing.T, prefix string) (talker, listener, conversationID int64) {
	t.Helper()
	ctx := context.Background()
	talker = e.addUser(t, prefix+"talker1")
	listener = e.addUser(t, prefix+"listener1")
	_, err := e.presence.SetMode(ctx, talker, models.ModeLookingToTalk)
	require.NoError(t, err)
	_, err = e.presence.SetMode(ctx, listener, models.ModeListenerAvailable)
	require.NoError(t, err)

	conversationID, isNew, err := e.matching.StartConversation(ctx, talker, listener)
	require.NoError(t, err)
	require.True(t, isNew)
	return talker, listener, conversationID
}

func (e *testEnv) count(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, e.db.Get(&n, query, args...), fmt.Sprintf("query: %s", query))
	return n
}

func (e *testEnv) accountStatus(t *testing.T, id int64) models.AccountStatus {
	t.Helper()
	var s models.AccountStatus
	require.NoError(t, e.db.Get(&s, `SELECT account_status FROM users WHERE id = ?`, id))
	return s
}

func requireKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	e, ok := AsError(err)
	require.True(t, ok, "expected domain error, got %v", err)
	require.Equal(t, kind, e.Kind)
}
