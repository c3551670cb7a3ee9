package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/bip/backend/internal/models"
)

// ConversationStore owns conversations, participants and messages. Methods
// take the querier explicitly so callers choose between the pool and a
// transaction.
type ConversationStore struct {
	db *sqlx.DB
}

func NewConversationStore(db *sqlx.DB) *ConversationStore {
	return &ConversationStore{db: db}
}

const messageColumns = `
	m.id, m.conversation_id, m.sender_id, m.content, m.is_system, m.is_flagged, m.created_at,
	u.username AS sender_username, u.profile_color AS sender_color`

// orderedPair returns the ids as stored in pair_low/pair_high.
func orderedPair(a, b int64) (int64, int64) {
	if a < b {
		return a, b
	}
	return b, a
}

// FindBetween returns the conversation shared by the two users in either role.
func (s *ConversationStore) FindBetween(ctx context.Context, q sqlx.QueryerContext, a, b int64) (int64, bool, error) {
	low, high := orderedPair(a, b)
	var id int64
	err := sqlx.GetContext(ctx, q, &id, `SELECT id FROM conversations WHERE pair_low = ? AND pair_high = ?`, low, high)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up conversation: %w", err)
	}
	return id, true, nil
}

// Create inserts the conversation row and both participants.
func (s *ConversationStore) Create(ctx context.Context, ext sqlx.ExtContext, talkerID, listenerID int64, now time.Time) (int64, error) {
	low, high := orderedPair(talkerID, listenerID)
	res, err := ext.ExecContext(ctx, `
		INSERT INTO conversations (created_by, initiator_role, pair_low, pair_high, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		talkerID, models.RoleTalker, low, high, now)
	if err != nil {
		return 0, fmt.Errorf("failed to insert conversation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read conversation id: %w", err)
	}

	for _, p := range []models.Participant{
		{ConversationID: id, UserID: talkerID, Role: models.RoleTalker, JoinedAt: now},
		{ConversationID: id, UserID: listenerID, Role: models.RoleListener, JoinedAt: now},
	} {
		if _, err := sqlx.NamedExecContext(ctx, ext, `
			INSERT INTO conversation_participants (conversation_id, user_id, role, joined_at)
			VALUES (:conversation_id, :user_id, :role, :joined_at)`, p); err != nil {
			return 0, fmt.Errorf("failed to insert %s participant: %w", p.Role, err)
		}
	}
	return id, nil
}

// IsParticipant reports whether userID belongs to the conversation.
func (s *ConversationStore) IsParticipant(ctx context.Context, q sqlx.QueryerContext, conversationID, userID int64) (bool, error) {
	var ok bool
	err := sqlx.GetContext(ctx, q, &ok, `
		SELECT EXISTS (SELECT 1 FROM conversation_participants WHERE conversation_id = ? AND user_id = ?)`,
		conversationID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to check participant: %w", err)
	}
	return ok, nil
}

// Interlocutor returns the other participant of the conversation.
func (s *ConversationStore) Interlocutor(ctx context.Context, q sqlx.QueryerContext, conversationID, userID int64) (int64, error) {
	var id int64
	err := sqlx.GetContext(ctx, q, &id, `
		SELECT user_id FROM conversation_participants WHERE conversation_id = ? AND user_id <> ?`,
		conversationID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to load interlocutor: %w", err)
	}
	return id, nil
}

// InsertMessage stores a user message and returns its id.
func (s *ConversationStore) InsertMessage(ctx context.Context, ext sqlx.ExecerContext, conversationID, senderID int64, content string, now time.Time) (int64, error) {
	return s.insertMessage(ctx, ext, conversationID, &senderID, content, now)
}

// InsertSystemMessage stores a platform message without a sender.
func (s *ConversationStore) InsertSystemMessage(ctx context.Context, ext sqlx.ExecerContext, conversationID int64, content string, now time.Time) (int64, error) {
	return s.insertMessage(ctx, ext, conversationID, nil, content, now)
}

func (s *ConversationStore) insertMessage(ctx context.Context, ext sqlx.ExecerContext, conversationID int64, senderID *int64, content string, now time.Time) (int64, error) {
	res, err := ext.ExecContext(ctx, `
		INSERT INTO messages (conversation_id, sender_id, content, is_system, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		conversationID, senderID, content, senderID == nil, now)
	if err != nil {
		return 0, fmt.Errorf("failed to insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read message id: %w", err)
	}
	return id, nil
}

// Message returns one message enriched with its sender's display attributes.
func (s *ConversationStore) Message(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.Message, error) {
	var m models.Message
	err := sqlx.GetContext(ctx, q, &m, `SELECT `+messageColumns+`
		FROM messages m
		LEFT JOIN users u ON u.id = m.sender_id
		WHERE m.id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load message: %w", err)
	}
	return &m, nil
}

// MessageVisibleTo returns the message only if userID participates in its
// conversation.
func (s *ConversationStore) MessageVisibleTo(ctx context.Context, q sqlx.QueryerContext, messageID, userID int64) (*models.Message, error) {
	var m models.Message
	err := sqlx.GetContext(ctx, q, &m, `SELECT `+messageColumns+`
		FROM messages m
		JOIN conversation_participants cp ON cp.conversation_id = m.conversation_id AND cp.user_id = ?
		LEFT JOIN users u ON u.id = m.sender_id
		WHERE m.id = ?`, userID, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load message: %w", err)
	}
	return &m, nil
}

// MessagesAfter returns messages with id strictly greater than afterID in
// ascending id order.
func (s *ConversationStore) MessagesAfter(ctx context.Context, q sqlx.QueryerContext, conversationID, afterID int64) ([]models.Message, error) {
	out := []models.Message{}
	err := sqlx.SelectContext(ctx, q, &out, `SELECT `+messageColumns+`
		FROM messages m
		LEFT JOIN users u ON u.id = m.sender_id
		WHERE m.conversation_id = ? AND m.id > ?
		ORDER BY m.id ASC`, conversationID, afterID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return out, nil
}

// MarkFlagged sets is_flagged on a message. Repeated calls are harmless.
func (s *ConversationStore) MarkFlagged(ctx context.Context, ext sqlx.ExecerContext, messageID int64) error {
	if _, err := ext.ExecContext(ctx, `UPDATE messages SET is_flagged = 1 WHERE id = ?`, messageID); err != nil {
		return fmt.Errorf("failed to flag message: %w", err)
	}
	return nil
}

// ListForUser returns the user's conversations with the interlocutor's
// profile, raw presence row and the latest message, newest activity first.
func (s *ConversationStore) ListForUser(ctx context.Context, q sqlx.QueryerContext, userID int64) ([]models.ConversationSummary, error) {
	out := []models.ConversationSummary{}
	err := sqlx.SelectContext(ctx, q, &out, `
		SELECT c.id AS conversation_id,
		       me.role,
		       c.created_at,
		       u.id AS interlocutor_id,
		       u.username AS interlocutor_username,
		       u.profile_color AS interlocutor_color,
		       st.mode AS interlocutor_mode,
		       st.is_online AS interlocutor_online,
		       st.last_seen AS interlocutor_last_seen,
		       lm.content AS last_message,
		       lm.created_at AS last_message_at,
		       EXISTS (SELECT 1 FROM safe_users su WHERE su.user_id = me.user_id AND su.safe_user_id = u.id) AS is_in_safelist
		FROM conversation_participants me
		JOIN conversations c ON c.id = me.conversation_id
		JOIN conversation_participants other ON other.conversation_id = c.id AND other.user_id <> me.user_id
		JOIN users u ON u.id = other.user_id
		LEFT JOIN user_status st ON st.user_id = u.id
		LEFT JOIN messages lm ON lm.id = (SELECT MAX(id) FROM messages WHERE conversation_id = c.id)
		WHERE me.user_id = ?
		ORDER BY COALESCE(lm.id, 0) DESC, c.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return out, nil
}
