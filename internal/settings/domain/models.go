package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// UserSettings carries the per-user defaults that cascade into the autopilot
// and the reminder sweeper.
type UserSettings struct {
	UserID              snowflake.ID `json:"user_id" gorm:"primaryKey"`
	DefaultRateCents    *int64       `json:"default_rate_cents"`
	DefaultCurrency     *string      `json:"default_currency"`
	FollowUpDays        *int         `json:"follow_up_days"`
	InvoiceReminderDays *int         `json:"invoice_reminder_days"`
	LastReminderRunAt   *time.Time   `json:"last_reminder_run_at"`
	LastReminderCreated *int         `json:"last_reminder_created"`
	UpdatedAt           time.Time    `json:"updated_at" gorm:"not null"`
}

func (UserSettings) TableName() string { return "user_settings" }

// BillingContext is the fully resolved set of billing parameters for one
// request: explicit override beats the user default beats the system default.
// It is resolved once and passed down; no layer re-reads settings.
type BillingContext struct {
	RateCents    *int64
	Currency     string
	FollowUpDays int
}

type UpdateSettingsRequest struct {
	DefaultRateCents    *int64  `json:"default_rate_cents"`
	DefaultCurrency     *string `json:"default_currency"`
	FollowUpDays        *int    `json:"follow_up_days"`
	InvoiceReminderDays *int    `json:"invoice_reminder_days"`
}

type Service interface {
	Get(ctx context.Context, userID snowflake.ID) (*UserSettings, error)
	Update(ctx context.Context, userID snowflake.ID, req UpdateSettingsRequest) (*UserSettings, error)
	// EffectiveBilling resolves the billing context for one logged work event.
	EffectiveBilling(ctx context.Context, userID snowflake.ID, rateCents *int64, currency *string) (BillingContext, error)
	// ReminderDays resolves the effective invoice reminder threshold; nil means
	// the user has reminders disabled explicitly.
	ReminderDays(ctx context.Context, userID snowflake.ID) (*int, error)
	RecordReminderRun(ctx context.Context, userID snowflake.ID, runAt time.Time, created int) error
}

type Repository interface {
	FindByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*UserSettings, error)
	Upsert(ctx context.Context, db *gorm.DB, settings *UserSettings) error
	UpdateReminderRun(ctx context.Context, db *gorm.DB, userID snowflake.ID, runAt time.Time, created int) error
}
