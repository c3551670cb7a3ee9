package models

import "time"

// Message is a stored chat message enriched with the sender's display
// attributes. System messages carry no sender.
type Message struct {
	ID             int64     `json:"messageID" db:"id"`
	ConversationID int64     `json:"conversationID" db:"conversation_id"`
	SenderID       *int64    `json:"senderUserID" db:"sender_id"`
	SenderUsername *string   `json:"senderUsername" db:"sender_username"`
	SenderColor    *string   `json:"senderColor" db:"sender_color"`
	Content        string    `json:"content" db:"content"`
	IsSystem       bool      `json:"isSystem" db:"is_system"`
	IsFlagged      bool      `json:"isFlagged" db:"is_flagged"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
}

type SendMessageRequest struct {
	ConversationID int64  `json:"conversationID"`
	Content        string `json:"content"`
}

type SendMessageResponse struct {
	APIResponse
	Message Message `json:"message"`
}

type PollResponse struct {
	APIResponse
	Messages           []Message `json:"messages"`
	InterlocutorStatus Presence  `json:"interlocutorStatus"`
}
