package models

import (
	"strings"
	"time"
)

type FlagCategory string

const (
	CategoryMessage FlagCategory = "MESSAGE"
	CategoryUser    FlagCategory = "USER"
	CategoryBoth    FlagCategory = "BOTH"
)

type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "POSITIVE"
	SentimentNegative Sentiment = "NEGATIVE"
	SentimentNeutral  Sentiment = "NEUTRAL"
)

type FlagType struct {
	ID          int64        `json:"flagTypeID" db:"id"`
	Code        string       `json:"code" db:"code"`
	DisplayName string       `json:"displayName" db:"display_name"`
	Description string       `json:"description" db:"description"`
	Category    FlagCategory `json:"category" db:"category"`
	Severity    Severity     `json:"severity" db:"severity"`
	Sentiment   Sentiment    `json:"sentiment" db:"sentiment"`
	IsActive    bool         `json:"-" db:"is_active"`
}

// AppliesTo reports whether the flag may be used for category c.
func (f FlagType) AppliesTo(c FlagCategory) bool {
	return f.Category == CategoryBoth || c == CategoryBoth || f.Category == c
}

// FlagRef names a flag type either by code or by id.
type FlagRef struct {
	Code string
	ID   int64
}

func (r FlagRef) IsZero() bool {
	return r.Code == "" && r.ID == 0
}

type ReportStatus string

const (
	ReportPending   ReportStatus = "PENDING"
	ReportConfirmed ReportStatus = "CONFIRMED"
	ReportDiscarded ReportStatus = "DISCARDED"
)

type Report struct {
	ID           int64        `json:"reportID" db:"id"`
	MessageID    int64        `json:"messageID" db:"message_id"`
	ReporterID   int64        `json:"reporterUserID" db:"reporter_id"`
	FlagTypeID   int64        `json:"flagTypeID" db:"flag_type_id"`
	Reason       string       `json:"reason" db:"reason"`
	Status       ReportStatus `json:"status" db:"status"`
	AdminComment *string      `json:"adminComment" db:"admin_comment"`
	HandledBy    *int64       `json:"handledBy" db:"handled_by"`
	HandledAt    *time.Time   `json:"handledAt" db:"handled_at"`
	CreatedAt    time.Time    `json:"createdAt" db:"created_at"`
}

// PendingReport is a report joined with what a moderator needs to judge it.
type PendingReport struct {
	ReportID         int64     `json:"reportID" db:"report_id"`
	MessageID        int64     `json:"messageID" db:"message_id"`
	ConversationID   int64     `json:"conversationID" db:"conversation_id"`
	MessageContent   string    `json:"messageContent" db:"message_content"`
	FlagCode         string    `json:"flagType" db:"flag_code"`
	Severity         Severity  `json:"severity" db:"severity"`
	Reason           string    `json:"reason" db:"reason"`
	ReporterID       int64     `json:"reporterUserID" db:"reporter_id"`
	ReporterUsername string    `json:"reporterUsername" db:"reporter_username"`
	SenderID         *int64    `json:"senderUserID" db:"sender_id"`
	SenderUsername   *string   `json:"senderUsername" db:"sender_username"`
	CreatedAt        time.Time `json:"createdAt" db:"created_at"`
}

type PenaltyType string

const (
	PenaltyWarning  PenaltyType = "WARNING"
	PenaltyTempBan  PenaltyType = "TEMP_BAN"
	PenaltyPermaBan PenaltyType = "PERMA_BAN"
)

// AccountStatus returns the account status a penalty moves its target to.
func (p PenaltyType) AccountStatus() AccountStatus {
	if p == PenaltyPermaBan {
		return AccountBanned
	}
	return AccountWarned
}

type UserPenalty struct {
	ID          int64       `json:"penaltyID" db:"id"`
	UserID      int64       `json:"targetUserID" db:"user_id"`
	AdminID     int64       `json:"adminID" db:"admin_id"`
	PenaltyType PenaltyType `json:"penaltyType" db:"penalty_type"`
	Reason      string      `json:"reason" db:"reason"`
	CreatedAt   time.Time   `json:"createdAt" db:"created_at"`
}

type FlagMessageRequest struct {
	MessageID  int64  `json:"messageID"`
	FlagType   string `json:"flagType"`
	FlagTypeID int64  `json:"flagTypeID"`
	Reason     string `json:"reason"`
}

type FlagMessageResponse struct {
	APIResponse
	ReportID int64 `json:"reportID"`
}

func (r FlagMessageRequest) Ref() FlagRef {
	return FlagRef{Code: strings.TrimSpace(r.FlagType), ID: r.FlagTypeID}
}

type RateUserRequest struct {
	TargetUserID int64  `json:"targetUserID"`
	FlagType     string `json:"flagType"`
	FlagTypeID   int64  `json:"flagTypeID"`
	RatingValue  *int   `json:"ratingValue"`
}

func (r RateUserRequest) Ref() FlagRef {
	return FlagRef{Code: strings.TrimSpace(r.FlagType), ID: r.FlagTypeID}
}

type ResolveReportRequest struct {
	ReportID int64        `json:"reportID"`
	Status   ReportStatus `json:"status"`
	Action   ReportStatus `json:"action"`
	Comment  string       `json:"comment"`
}

// Decision returns status, falling back to the older action field.
func (r ResolveReportRequest) Decision() ReportStatus {
	if r.Status != "" {
		return r.Status
	}
	return r.Action
}

// Validate reports missing fields. The decision value itself is checked by
// the moderation service.
func (r ResolveReportRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.ReportID <= 0 {
		errors["reportID"] = "Report ID is required"
	}
	if r.Decision() == "" {
		errors["status"] = "Status is required"
	}
	return errors
}

type ResolveReportResponse struct {
	APIResponse
	Message  string       `json:"message"`
	Action   ReportStatus `json:"action"`
	ReportID int64        `json:"reportID"`
}

type ApplyPenaltyRequest struct {
	TargetUserID int64       `json:"targetUserID"`
	PenaltyType  PenaltyType `json:"penaltyType"`
	Reason       string      `json:"reason"`
}

type ApplyPenaltyResponse struct {
	APIResponse
	Penalty UserPenalty `json:"penalty"`
}

type PenaltiesResponse struct {
	APIResponse
	Penalties []UserPenalty `json:"penalties"`
}

type StatsResponse struct {
	APIResponse
	Stats Stats `json:"stats"`
}

type FlagsResponse struct {
	APIResponse
	Flags   []FlagType `json:"flags"`
	Count   int        `json:"count"`
	Version int64      `json:"version"`
}

type PendingReportsResponse struct {
	APIResponse
	Reports []PendingReport `json:"reports"`
	Count   int             `json:"count"`
}

// Stats is the moderator dashboard summary.
type Stats struct {
	TotalUsers       int `json:"totalUsers" db:"total_users"`
	ActiveUsers      int `json:"activeUsers" db:"active_users"`
	OnlineUsers      int `json:"onlineUsers" db:"-"`
	Conversations    int `json:"conversations" db:"conversations"`
	PendingReports   int `json:"pendingReports" db:"pending_reports"`
	ConfirmedReports int `json:"confirmedReports" db:"confirmed_reports"`
}
