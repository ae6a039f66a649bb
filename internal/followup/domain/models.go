package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Status string

const (
	StatusOpen      Status = "open"
	StatusDone      Status = "done"
	StatusDismissed Status = "dismissed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusDone, StatusDismissed:
		return true
	default:
		return false
	}
}

const (
	SourceWorkEvent    = "work_event"
	SourceInvoiceDraft = "invoice_draft"
)

// FollowUp is a queued nudge to contact a client. At most one open follow-up
// exists per (user, source_type, source_id); the partial unique index
// ux_follow_ups_open_source enforces this.
type FollowUp struct {
	ID               snowflake.ID  `json:"id" gorm:"primaryKey"`
	UserID           snowflake.ID  `json:"user_id" gorm:"not null"`
	ClientID         snowflake.ID  `json:"client_id" gorm:"not null"`
	DueAt            time.Time     `json:"due_at" gorm:"not null"`
	SuggestedMessage string        `json:"suggested_message" gorm:"type:text;not null"`
	Status           Status        `json:"status" gorm:"type:text;not null;default:'open'"`
	SourceType       *string       `json:"source_type"`
	SourceID         *snowflake.ID `json:"source_id"`
	CreatedAt        time.Time     `json:"created_at" gorm:"not null"`
	UpdatedAt        time.Time     `json:"updated_at" gorm:"not null"`
}

func (FollowUp) TableName() string { return "follow_ups" }

type CreateFollowUpRequest struct {
	ClientID         snowflake.ID
	DueAt            time.Time
	SuggestedMessage string
	SourceType       *string
	SourceID         *snowflake.ID
}

type Service interface {
	// Create inserts a follow-up. When the source already has an open
	// follow-up the call is a no-op and returns (nil, nil).
	Create(ctx context.Context, db *gorm.DB, userID snowflake.ID, req CreateFollowUpRequest) (*FollowUp, error)
	List(ctx context.Context, userID snowflake.ID, status *Status) ([]FollowUp, error)
	HasOpenForSource(ctx context.Context, userID snowflake.ID, sourceType string, sourceID snowflake.ID) (bool, error)

	// Transition moves an open follow-up to done or dismissed.
	Transition(ctx context.Context, userID, followUpID snowflake.ID, to Status) (*FollowUp, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, fu *FollowUp) error
	FindByID(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*FollowUp, error)
	FindOpenBySource(ctx context.Context, db *gorm.DB, userID snowflake.ID, sourceType string, sourceID snowflake.ID) (*FollowUp, error)
	ListByStatus(ctx context.Context, db *gorm.DB, userID snowflake.ID, status *Status) ([]FollowUp, error)

	// UpdateStatusFromOpen flips status only while the row is still open.
	// Returns false when the row was not open anymore.
	UpdateStatusFromOpen(ctx context.Context, db *gorm.DB, userID, id snowflake.ID, to Status, updatedAt time.Time) (bool, error)
}

var (
	ErrNotFound          = errors.New("follow_up_not_found")
	ErrInvalidStatus     = errors.New("invalid_follow_up_status")
	ErrInvalidTransition = errors.New("invalid_follow_up_transition")
)
