package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/devmarvs/backoffice/internal/settings/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*domain.UserSettings, error) {
	var settings domain.UserSettings
	err := db.WithContext(ctx).Raw(
		`SELECT user_id, default_rate_cents, default_currency, follow_up_days,
		        invoice_reminder_days, last_reminder_run_at, last_reminder_created, updated_at
		 FROM user_settings WHERE user_id = ?`,
		userID,
	).Scan(&settings).Error
	if err != nil {
		return nil, err
	}
	if settings.UserID == 0 {
		return nil, nil
	}
	return &settings, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, settings *domain.UserSettings) error {
	res := db.WithContext(ctx).Exec(
		`UPDATE user_settings
		 SET default_rate_cents = ?, default_currency = ?, follow_up_days = ?,
		     invoice_reminder_days = ?, updated_at = ?
		 WHERE user_id = ?`,
		settings.DefaultRateCents,
		settings.DefaultCurrency,
		settings.FollowUpDays,
		settings.InvoiceReminderDays,
		settings.UpdatedAt,
		settings.UserID,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO user_settings (user_id, default_rate_cents, default_currency, follow_up_days, invoice_reminder_days, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		settings.UserID,
		settings.DefaultRateCents,
		settings.DefaultCurrency,
		settings.FollowUpDays,
		settings.InvoiceReminderDays,
		settings.UpdatedAt,
	).Error
}

func (r *repo) UpdateReminderRun(ctx context.Context, db *gorm.DB, userID snowflake.ID, runAt time.Time, created int) error {
	res := db.WithContext(ctx).Exec(
		`UPDATE user_settings
		 SET last_reminder_run_at = ?, last_reminder_created = ?, updated_at = ?
		 WHERE user_id = ?`,
		runAt,
		created,
		runAt,
		userID,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO user_settings (user_id, last_reminder_run_at, last_reminder_created, updated_at)
		 VALUES (?, ?, ?, ?)`,
		userID,
		runAt,
		created,
		runAt,
	).Error
}
