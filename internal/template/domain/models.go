package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// TemplateType enumerates the three fixed message template slots.
type TemplateType string

const (
	TypeFollowUp        TemplateType = "follow_up"
	TypePaymentReminder TemplateType = "payment_reminder"
	TypeNoShow          TemplateType = "no_show"
)

func (t TemplateType) Valid() bool {
	switch t {
	case TypeFollowUp, TypePaymentReminder, TypeNoShow:
		return true
	default:
		return false
	}
}

type MessageTemplate struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID    snowflake.ID `json:"user_id" gorm:"not null;uniqueIndex:ux_message_templates_user_type"`
	Type      TemplateType `json:"type" gorm:"type:text;not null;uniqueIndex:ux_message_templates_user_type"`
	Subject   *string      `json:"subject"`
	Body      string       `json:"body" gorm:"type:text;not null"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null"`
}

func (MessageTemplate) TableName() string { return "message_templates" }

type Service interface {
	// Resolve returns the user's template body (or the per-type default) with
	// every {{key}} in context substituted literally. Unmatched placeholders
	// are left verbatim.
	Resolve(ctx context.Context, db *gorm.DB, userID snowflake.ID, templateType TemplateType, vars map[string]string) (string, error)
	ListForUser(ctx context.Context, userID snowflake.ID) ([]MessageTemplate, error)
	Upsert(ctx context.Context, userID snowflake.ID, templateType TemplateType, subject *string, body string) (*MessageTemplate, error)
}

type Repository interface {
	FindByType(ctx context.Context, db *gorm.DB, userID snowflake.ID, templateType TemplateType) (*MessageTemplate, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]MessageTemplate, error)
	Upsert(ctx context.Context, db *gorm.DB, tmpl *MessageTemplate) error
}

var (
	ErrInvalidType = errors.New("invalid_template_type")
	ErrInvalidBody = errors.New("invalid_template_body")
)
