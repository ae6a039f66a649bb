package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	followupdomain "github.com/devmarvs/backoffice/internal/followup/domain"
	invoicedomain "github.com/devmarvs/backoffice/internal/invoice/domain"
	"gorm.io/gorm"
)

type EventType string

const (
	TypeSession EventType = "session"
	TypeNoShow  EventType = "no_show"
	TypeAdmin   EventType = "admin"
)

func (t EventType) Valid() bool {
	switch t {
	case TypeSession, TypeNoShow, TypeAdmin:
		return true
	default:
		return false
	}
}

// WorkEvent is an immutable log entry. Rows are never updated after insert;
// corrections are new events.
type WorkEvent struct {
	ID              snowflake.ID  `json:"id" gorm:"primaryKey"`
	UserID          snowflake.ID  `json:"user_id" gorm:"not null"`
	ClientID        snowflake.ID  `json:"client_id" gorm:"not null"`
	Type            EventType     `json:"type" gorm:"type:text;not null"`
	StartAt         time.Time     `json:"start_at" gorm:"not null"`
	DurationMinutes int           `json:"duration_minutes" gorm:"not null;default:0"`
	Billable        bool          `json:"billable" gorm:"not null;default:false"`
	Notes           *string       `json:"notes"`
	SourceType      *string       `json:"source_type"`
	SourceID        *snowflake.ID `json:"source_id"`
	CreatedAt       time.Time     `json:"created_at" gorm:"not null"`
}

func (WorkEvent) TableName() string { return "work_events" }

type LogRequest struct {
	ClientID        snowflake.ID `json:"client_id"`
	Type            EventType    `json:"type"`
	StartAt         time.Time    `json:"start_at"`
	DurationMinutes int          `json:"duration_minutes"`
	Billable        *bool        `json:"billable"`
	Notes           *string      `json:"notes"`
	RateCents       *int64       `json:"rate_cents"`
	Currency        *string      `json:"currency"`

	// Origin of the event when it was not logged by hand, e.g. a calendar
	// sync passes "calendar_event" plus the synced entry's id.
	SourceType *string       `json:"source_type"`
	SourceID   *snowflake.ID `json:"source_id"`
}

type ListRequest struct {
	From     *time.Time
	To       *time.Time
	ClientID *snowflake.ID
}

// PackageUse reports a credit burned from a session package.
type PackageUse struct {
	PackageID         snowflake.ID `json:"id"`
	RemainingSessions int          `json:"remaining_sessions"`
}

// AutopilotResult lists the side effects produced for one logged event. Nil
// fields mean the corresponding rule did not fire.
type AutopilotResult struct {
	InvoiceDraft *invoicedomain.InvoiceDraft `json:"invoice_draft"`
	InvoiceLine  *invoicedomain.InvoiceLine  `json:"invoice_line"`
	Package      *PackageUse                 `json:"package"`
	FollowUp     *followupdomain.FollowUp    `json:"follow_up"`
}

type LogResult struct {
	WorkEvent *WorkEvent       `json:"work_event"`
	Autopilot *AutopilotResult `json:"autopilot"`
}

type Service interface {
	Log(ctx context.Context, userID snowflake.ID, req LogRequest) (*LogResult, error)
	List(ctx context.Context, userID snowflake.ID, req ListRequest) ([]WorkEvent, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, event *WorkEvent) error
	List(ctx context.Context, db *gorm.DB, userID snowflake.ID, req ListRequest) ([]WorkEvent, error)
}

var (
	ErrInvalidType     = errors.New("invalid_work_event_type")
	ErrInvalidStartAt  = errors.New("invalid_start_at")
	ErrInvalidDuration = errors.New("invalid_duration")
	ErrInvalidRate     = errors.New("invalid_rate")
	ErrInvalidCurrency = errors.New("invalid_currency")
)
