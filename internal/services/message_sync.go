package services

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"

	"github.com/bip/backend/internal/models"
)

// MessageSync implements the send and cursor-based poll protocol.
type MessageSync struct {
	db        *sqlx.DB
	store     *ConversationStore
	presence  *PresenceRegistry
	censor    *Censor
	maxLength int
	clock     clockwork.Clock
	logger    *slog.Logger
}

func NewMessageSync(db *sqlx.DB, store *ConversationStore, presence *PresenceRegistry, censor *Censor, maxLength int, clock clockwork.Clock, logger *slog.Logger) *MessageSync {
	return &MessageSync{
		db:        db,
		store:     store,
		presence:  presence,
		censor:    censor,
		maxLength: maxLength,
		clock:     clock,
		logger:    logger.With("component", "messages"),
	}
}

// Send stores a user message and returns it with the sender's display
// attributes.
func (s *MessageSync) Send(ctx context.Context, conversationID, senderID int64, content string) (*models.Message, error) {
	if err := s.requireParticipant(ctx, conversationID, senderID); err != nil {
		return nil, err
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if s.maxLength > 0 && utf8.RuneCountInString(content) > s.maxLength {
		return nil, ErrContentTooLong
	}
	content = s.censor.Apply(content)

	id, err := s.store.InsertMessage(ctx, s.db, conversationID, senderID, content, s.clock.Now().UTC())
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to store message",
			"conversation_id", conversationID, "sender_id", senderID, "error", err)
		return nil, persistence(ErrMessageFailed, err)
	}

	msg, err := s.store.Message(ctx, s.db, id)
	if err != nil {
		return nil, persistence(ErrMessageFailed, err)
	}
	return msg, nil
}

// Poll returns every message with id greater than sinceMessageID in
// ascending order, plus the other participant's derived presence.
func (s *MessageSync) Poll(ctx context.Context, conversationID, requesterID, sinceMessageID int64) ([]models.Message, models.Presence, error) {
	if err := s.requireParticipant(ctx, conversationID, requesterID); err != nil {
		return nil, models.Presence{}, err
	}

	messages, err := s.store.MessagesAfter(ctx, s.db, conversationID, max(sinceMessageID, 0))
	if err != nil {
		return nil, models.Presence{}, persistence(ErrPollFailed, err)
	}

	otherID, err := s.store.Interlocutor(ctx, s.db, conversationID, requesterID)
	if err != nil {
		return nil, models.Presence{}, persistence(ErrPollFailed, err)
	}
	status, err := s.presence.Status(ctx, otherID)
	if err != nil {
		return nil, models.Presence{}, persistence(ErrPollFailed, err)
	}
	return messages, status, nil
}

func (s *MessageSync) requireParticipant(ctx context.Context, conversationID, userID int64) error {
	ok, err := s.store.IsParticipant(ctx, s.db, conversationID, userID)
	if err != nil {
		return persistence(ErrInternal, err)
	}
	if !ok {
		return ErrNotParticipant
	}
	return nil
}
