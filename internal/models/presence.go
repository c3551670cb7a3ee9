package models

import "time"

// Mode is a user's availability for matching.
type Mode string

const (
	ModeIdle              Mode = "IDLE"
	ModeListenerAvailable Mode = "LISTENER_AVAILABLE"
	ModeLookingToTalk     Mode = "LOOKING_TO_TALK"
	ModeInConversation    Mode = "IN_CONVERSATION"
)

var Modes = []Mode{ModeIdle, ModeListenerAvailable, ModeLookingToTalk, ModeInConversation}

// UserStatus is the stored presence row. IsOnline here is the raw liveness
// flag; use Presence for the derived view.
type UserStatus struct {
	UserID   int64     `db:"user_id"`
	Mode     Mode      `db:"mode"`
	IsOnline bool      `db:"is_online"`
	LastSeen time.Time `db:"last_seen"`
}

// Presence is the derived, client-facing view of a UserStatus.
type Presence struct {
	Mode       Mode       `json:"mode"`
	IsOnline   bool       `json:"isOnline"`
	LastSeenAt *time.Time `json:"lastSeenAt"`
}

type UpdateStatusRequest struct {
	Mode Mode `json:"mode"`
}

type UpdateStatusResponse struct {
	APIResponse
	Mode Mode `json:"mode"`
}

type PresenceResponse struct {
	APIResponse
	Presence
	HeartbeatIntervalSeconds int `json:"heartbeatIntervalSeconds"`
}

// OnlineUser is an entry of the online users listing.
type OnlineUser struct {
	UserID        int64     `json:"userID" db:"user_id"`
	Username      string    `json:"username" db:"username"`
	ProfileColor  string    `json:"profileColor" db:"profile_color"`
	Mode          Mode      `json:"mode" db:"mode"`
	LastSeenAt    time.Time `json:"lastSeenAt" db:"last_seen"`
	IsInSafelist  bool      `json:"isInSafelist" db:"is_in_safelist"`
	RawOnlineFlag bool      `json:"-" db:"is_online"`
}

type OnlineUsersResponse struct {
	APIResponse
	Users []OnlineUser `json:"users"`
	Count int          `json:"count"`
}
