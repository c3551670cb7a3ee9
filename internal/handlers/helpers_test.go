package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/bip/backend/internal/models"
	"github.com/bip/backend/internal/services"
	"github.com/bip/backend/internal/storage/storagetest"
)

const testSecret = "handler-test-secret-0123456789"

type testAPI struct {
	t       *testing.T
	handler http.Handler
	users   *services.UserService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db := storagetest.Open(t)
	clock := clockwork.NewRealClock()

	censor, err := services.NewCensor([]string{"darn"}, '*')
	require.NoError(t, err)
	flags, err := services.LoadFlagCatalog(ctx, db)
	require.NoError(t, err)

	presence := services.NewPresenceRegistry(db, clock, 180*time.Second, logger)
	store := services.NewConversationStore(db)
	users := services.NewUserService(db, presence, clock, logger)

	handler := NewRouter(Deps{
		Users:             users,
		Presence:          presence,
		Matching:          services.NewMatchingService(db, store, presence, clock, logger),
		Messages:          services.NewMessageSync(db, store, presence, censor, 200, clock, logger),
		Moderation:        services.NewModerationService(db, store, presence, flags, nil, clock, logger),
		Clock:             clock,
		Logger:            logger,
		JWTSecret:         testSecret,
		JWTExpiration:     time.Hour,
		HeartbeatInterval: 30 * time.Second,
		RequestTimeout:    5 * time.Second,
		AllowedOrigins:    []string{"*"},
	})
	return &testAPI{t: t, handler: handler, users: users}
}

// do sends body as JSON and, when out is non-nil, decodes the response into it.
func (a *testAPI) do(method, path, token string, body, out any) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	if out != nil {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec
}

type account struct {
	ID    int64
	Token string
}

// register creates an account through the API. name must contain a digit.
func (a *testAPI) register(name string) account {
	a.t.Helper()
	var resp models.AuthResponse
	rec := a.do(http.MethodPost, "/api/auth/register", "", models.RegisterRequest{
		Email:    "mail-" + strings.ToLower(name) + "@example.com",
		Username: name,
		Password: "Sunny2day",
	}, &resp)
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	require.True(a.t, resp.Success)
	require.NotEmpty(a.t, resp.Token)
	return account{ID: resp.User.ID, Token: resp.Token}
}

func (a *testAPI) admin(name string) account {
	a.t.Helper()
	acc := a.register(name)
	require.NoError(a.t, a.users.SetAdmin(context.Background(), acc.ID, true))
	return acc
}

func (a *testAPI) setMode(acc account, mode models.Mode) {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/presence/status", acc.Token, models.UpdateStatusRequest{Mode: mode}, nil)
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
}

// match puts talker and listener in their modes and opens a conversation.
func (a *testAPI) match(talker, listener account) int64 {
	a.t.Helper()
	a.setMode(talker, models.ModeLookingToTalk)
	a.setMode(listener, models.ModeListenerAvailable)
	var resp models.StartConversationResponse
	rec := a.do(http.MethodPost, "/api/conversations", talker.Token,
		models.StartConversationRequest{ListenerID: listener.ID}, &resp)
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return resp.ConversationID
}

func (a *testAPI) send(acc account, conversationID int64, content string) models.Message {
	a.t.Helper()
	var resp models.SendMessageResponse
	rec := a.do(http.MethodPost, "/api/messages", acc.Token,
		models.SendMessageRequest{ConversationID: conversationID, Content: content}, &resp)
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return resp.Message
}

func (a *testAPI) poll(acc account, conversationID, after int64) models.PollResponse {
	a.t.Helper()
	var resp models.PollResponse
	rec := a.do(http.MethodGet, pollPath(conversationID, after), acc.Token, nil, &resp)
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
	return resp
}

func pollPath(conversationID, after int64) string {
	return "/api/messages?conversationID=" + itoa(conversationID) + "&lastMessageID=" + itoa(after)
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

func requireReason(t *testing.T, rec *httptest.ResponseRecorder, status int, reason string) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	var body models.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.False(t, body.Success)
	require.Equal(t, reason, body.Reason)
	require.NotEmpty(t, body.Error)
}
