package services

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error for transport mapping.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
	KindPersistence
)

// Error is a domain failure with a stable machine-readable reason.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on reason so wrapped sentinels compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Reason == t.Reason
}

func newError(kind Kind, reason, message string) *Error {
	return &Error{Kind: kind, Reason: reason, Message: message}
}

// Persistence wraps a storage failure behind a client-safe sentinel.
func persistence(sentinel *Error, err error) error {
	return &Error{Kind: sentinel.Kind, Reason: sentinel.Reason, Message: sentinel.Message, Err: err}
}

// AsError extracts the domain error from err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

var (
	ErrInvalidMode = newError(KindValidation, "invalid_mode", "Invalid mode")
	ErrSelfMatch   = newError(KindValidation, "self_match", "Cannot start a conversation with yourself")

	ErrListenerNotFound           = newError(KindNotFound, "listener_not_found", "Listener not found")
	ErrListenerUnavailable        = newError(KindValidation, "listener_unavailable", "Listener is not available")
	ErrConversationCreationFailed = newError(KindPersistence, "conversation_creation_failed", "Failed to create conversation")

	ErrNotParticipant = newError(KindAuthorization, "not_participant", "Not a participant of this conversation")
	ErrEmptyContent   = newError(KindValidation, "empty_content", "Message content cannot be empty")
	ErrContentTooLong = newError(KindValidation, "content_too_long", "Message content is too long")
	ErrMessageFailed  = newError(KindPersistence, "message_failed", "Failed to send message")
	ErrPollFailed     = newError(KindPersistence, "poll_failed", "Failed to load messages")

	ErrMessageNotFound = newError(KindNotFound, "message_not_found", "Message not found or access denied")
	ErrDuplicateReport = newError(KindConflict, "duplicate_report", "You have already reported this message")
	ErrInvalidFlag     = newError(KindValidation, "invalid_flag", "Invalid flag type")
	ErrReportFailed    = newError(KindPersistence, "report_failed", "Failed to report message")

	ErrCannotRateSelf = newError(KindConflict, "cannot_rate_self", "Cannot rate yourself")
	ErrInvalidRating  = newError(KindValidation, "invalid_rating", "Rating must be between 1 and 5")
	ErrRatingFailed   = newError(KindPersistence, "rating_failed", "Failed to submit rating")

	ErrNotAdmin              = newError(KindAuthorization, "not_admin", "Admin privileges required")
	ErrReportNotFound        = newError(KindNotFound, "report_not_found", "Report not found")
	ErrReportAlreadyResolved = newError(KindConflict, "report_already_resolved", "Report has already been resolved")
	ErrInvalidDecision       = newError(KindValidation, "invalid_decision", "Status must be CONFIRMED or DISCARDED")
	ErrMissingComment        = newError(KindValidation, "missing_comment", "Comment is required")
	ErrResolveFailed         = newError(KindPersistence, "resolve_failed", "Failed to resolve report")

	ErrInvalidPenalty = newError(KindValidation, "invalid_penalty", "Invalid penalty type")
	ErrMissingReason  = newError(KindValidation, "missing_reason", "Reason is required")
	ErrPenaltyFailed  = newError(KindPersistence, "penalty_failed", "Failed to apply penalty")

	ErrUserNotFound       = newError(KindNotFound, "user_not_found", "User not found")
	ErrEmailExists        = newError(KindConflict, "email_exists", "Email or username already registered")
	ErrInvalidCredentials = newError(KindAuthentication, "invalid_credentials", "Invalid email or password")
	ErrAccountBanned      = newError(KindAuthorization, "account_banned", "Account is banned")
	ErrPresenceFailed     = newError(KindPersistence, "presence_failed", "Failed to update status")
	ErrInternal           = newError(KindPersistence, "internal_error", "Internal server error")
)
