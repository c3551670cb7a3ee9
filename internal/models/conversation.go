package models

import "time"

type Role string

const (
	RoleTalker   Role = "TALKER"
	RoleListener Role = "LISTENER"
)

type Conversation struct {
	ID            int64     `json:"conversationID" db:"id"`
	CreatedBy     int64     `json:"createdBy" db:"created_by"`
	InitiatorRole Role      `json:"initiatorRole" db:"initiator_role"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
}

type Participant struct {
	ConversationID int64     `json:"conversationID" db:"conversation_id"`
	UserID         int64     `json:"userID" db:"user_id"`
	Role           Role      `json:"role" db:"role"`
	JoinedAt       time.Time `json:"joinedAt" db:"joined_at"`
}

type StartConversationRequest struct {
	ListenerID int64 `json:"listenerID"`
}

type StartConversationResponse struct {
	APIResponse
	ConversationID int64 `json:"conversationID"`
	IsNew          bool  `json:"isNew"`
}

// ConversationSummary is one row of the caller's conversation list.
type ConversationSummary struct {
	ConversationID       int64      `json:"conversationID" db:"conversation_id"`
	Role                 Role       `json:"role" db:"role"`
	CreatedAt            time.Time  `json:"createdAt" db:"created_at"`
	InterlocutorID       int64      `json:"interlocutorID" db:"interlocutor_id"`
	InterlocutorUsername string     `json:"interlocutorUsername" db:"interlocutor_username"`
	InterlocutorColor    string     `json:"interlocutorColor" db:"interlocutor_color"`
	InterlocutorStatus   Presence   `json:"interlocutorStatus" db:"-"`
	LastMessage          *string    `json:"lastMessage" db:"last_message"`
	LastMessageAt        *time.Time `json:"lastMessageAt" db:"last_message_at"`
	IsInSafelist         bool       `json:"isInSafelist" db:"is_in_safelist"`

	InterlocutorMode     *Mode      `json:"-" db:"interlocutor_mode"`
	InterlocutorOnline   *bool      `json:"-" db:"interlocutor_online"`
	InterlocutorLastSeen *time.Time `json:"-" db:"interlocutor_last_seen"`
}

type ConversationListResponse struct {
	APIResponse
	Conversations []ConversationSummary `json:"conversations"`
}

type LeaveConversationResponse struct {
	APIResponse
	Mode Mode `json:"mode"`
}
