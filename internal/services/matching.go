package services

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"

	"github.com/bip/backend/internal/models"
	"github.com/bip/backend/internal/storage"
)

// ConversationStartedMessage is the system message opening every conversation.
const ConversationStartedMessage = "Conversation started"

// MatchingService pairs a talker with an available listener.
type MatchingService struct {
	db       *sqlx.DB
	store    *ConversationStore
	presence *PresenceRegistry
	clock    clockwork.Clock
	logger   *slog.Logger
}

func NewMatchingService(db *sqlx.DB, store *ConversationStore, presence *PresenceRegistry, clock clockwork.Clock, logger *slog.Logger) *MatchingService {
	return &MatchingService{
		db:       db,
		store:    store,
		presence: presence,
		clock:    clock,
		logger:   logger.With("component", "matching"),
	}
}

type listenerState struct {
	AccountStatus models.AccountStatus `db:"account_status"`
	Mode          models.Mode          `db:"mode"`
}

// StartConversation returns the conversation between talker and listener,
// creating it when the pair has none. isNew is false when an existing
// conversation was returned.
func (s *MatchingService) StartConversation(ctx context.Context, talkerID, listenerID int64) (conversationID int64, isNew bool, err error) {
	if talkerID == listenerID {
		return 0, false, ErrSelfMatch
	}

	if _, err := s.listenerState(ctx, s.db, listenerID); err != nil {
		return 0, false, err
	}

	if id, ok, err := s.store.FindBetween(ctx, s.db, talkerID, listenerID); err != nil {
		return 0, false, persistence(ErrConversationCreationFailed, err)
	} else if ok {
		return id, false, nil
	}

	var existing bool
	err = storage.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		// Re-check inside the transaction: a concurrent request may have
		// paired these users or claimed the listener since the reads above.
		id, ok, err := s.store.FindBetween(ctx, tx, talkerID, listenerID)
		if err != nil {
			return err
		}
		if ok {
			conversationID, existing = id, true
			return nil
		}

		state, err := s.listenerState(ctx, tx, listenerID)
		if err != nil {
			return err
		}
		if state.AccountStatus != models.AccountActive || state.Mode != models.ModeListenerAvailable {
			return ErrListenerUnavailable
		}

		now := s.clock.Now().UTC()
		conversationID, err = s.store.Create(ctx, tx, talkerID, listenerID, now)
		if err != nil {
			return err
		}
		if _, err := s.store.InsertSystemMessage(ctx, tx, conversationID, ConversationStartedMessage, now); err != nil {
			return err
		}
		return s.presence.EnterConversation(ctx, tx, talkerID, listenerID)
	})

	switch {
	case err == nil && existing:
		return conversationID, false, nil
	case err == nil:
		s.logger.InfoContext(ctx, "Conversation started",
			"conversation_id", conversationID, "talker_id", talkerID, "listener_id", listenerID)
		return conversationID, true, nil
	case storage.IsUniqueViolation(err):
		// Lost the race for this pair; the winner's conversation is the answer.
		id, ok, lookupErr := s.store.FindBetween(ctx, s.db, talkerID, listenerID)
		if lookupErr == nil && ok {
			return id, false, nil
		}
		return 0, false, persistence(ErrConversationCreationFailed, err)
	}

	if _, ok := AsError(err); ok {
		return 0, false, err
	}
	s.logger.ErrorContext(ctx, "Failed to create conversation",
		"talker_id", talkerID, "listener_id", listenerID, "error", err)
	return 0, false, persistence(ErrConversationCreationFailed, err)
}

// EndConversation returns the caller to IDLE if they are IN_CONVERSATION.
// The conversation itself has no closed state and stays readable. Matching
// never calls this; it exists for clients that want an explicit leave.
func (s *MatchingService) EndConversation(ctx context.Context, conversationID, userID int64) (models.Mode, error) {
	ok, err := s.store.IsParticipant(ctx, s.db, conversationID, userID)
	if err != nil {
		return "", persistence(ErrInternal, err)
	}
	if !ok {
		return "", ErrNotParticipant
	}
	return s.presence.LeaveConversation(ctx, userID)
}

// Conversations lists the user's conversations with each interlocutor's
// presence derived at read time.
func (s *MatchingService) Conversations(ctx context.Context, userID int64) ([]models.ConversationSummary, error) {
	convs, err := s.store.ListForUser(ctx, s.db, userID)
	if err != nil {
		return nil, persistence(ErrInternal, err)
	}
	for i := range convs {
		c := &convs[i]
		if c.InterlocutorMode == nil || c.InterlocutorOnline == nil || c.InterlocutorLastSeen == nil {
			c.InterlocutorStatus = models.Presence{Mode: models.ModeIdle}
			continue
		}
		c.InterlocutorStatus = s.presence.View(models.UserStatus{
			UserID:   c.InterlocutorID,
			Mode:     *c.InterlocutorMode,
			IsOnline: *c.InterlocutorOnline,
			LastSeen: *c.InterlocutorLastSeen,
		})
	}
	return convs, nil
}

func (s *MatchingService) listenerState(ctx context.Context, q sqlx.QueryerContext, listenerID int64) (*listenerState, error) {
	var st listenerState
	err := sqlx.GetContext(ctx, q, &st, `
		SELECT u.account_status, COALESCE(s.mode, 'IDLE') AS mode
		FROM users u
		LEFT JOIN user_status s ON s.user_id = u.id
		WHERE u.id = ?`, listenerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrListenerNotFound
	}
	if err != nil {
		return nil, persistence(ErrConversationCreationFailed, err)
	}
	return &st, nil
}
