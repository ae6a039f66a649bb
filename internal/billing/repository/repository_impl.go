package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/devmarvs/backoffice/internal/billing/domain"
	pkgdb "github.com/devmarvs/backoffice/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertEventIfAbsent(ctx context.Context, db *gorm.DB, event *domain.WebhookEvent) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO billing_webhook_events (id, provider, event_id, event_type, payload, status, received_at)
		 VALUES (?, ?, ?, ?, ?, 'received', ?)
		 ON CONFLICT (provider, event_id) DO NOTHING`,
		event.ID,
		event.Provider,
		event.EventID,
		event.EventType,
		event.Payload,
		event.ReceivedAt,
	)
	if res.Error != nil {
		if pkgdb.IsDuplicateKeyErr(res.Error) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindEvent(ctx context.Context, db *gorm.DB, provider, eventID string) (*domain.WebhookEvent, error) {
	var row domain.WebhookEvent
	err := db.WithContext(ctx).Raw(
		`SELECT id, provider, event_id, event_type, payload, status, error_message, received_at, processed_at
		 FROM billing_webhook_events WHERE provider = ? AND event_id = ?`,
		provider,
		eventID,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &row, nil
}

// MarkEventProcessing claims the event for this delivery. Only rows still in
// received or failed are claimable; anything else means another delivery owns
// or already finished it.
func (r *repo) MarkEventProcessing(ctx context.Context, db *gorm.DB, provider, eventID string) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE billing_webhook_events SET status = 'processing', error_message = NULL
		 WHERE provider = ? AND event_id = ? AND status IN ('received', 'failed')`,
		provider,
		eventID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) MarkEventProcessed(ctx context.Context, db *gorm.DB, provider, eventID string, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE billing_webhook_events SET status = 'processed', processed_at = ?, error_message = NULL
		 WHERE provider = ? AND event_id = ?`,
		at,
		provider,
		eventID,
	).Error
}

func (r *repo) MarkEventFailed(ctx context.Context, db *gorm.DB, provider, eventID, errorMessage string, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE billing_webhook_events SET status = 'failed', error_message = ?, processed_at = ?
		 WHERE provider = ? AND event_id = ?`,
		errorMessage,
		at,
		provider,
		eventID,
	).Error
}

func (r *repo) FindSubscriptionByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, provider string) (*domain.BillingSubscription, error) {
	var row domain.BillingSubscription
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, provider, customer_id, subscription_id, status, current_period_end, plan, created_at, updated_at
		 FROM billing_subscriptions WHERE user_id = ? AND provider = ?`,
		userID,
		provider,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &row, nil
}

func (r *repo) FindSubscriptionByProviderID(ctx context.Context, db *gorm.DB, provider, subscriptionID string) (*domain.BillingSubscription, error) {
	var row domain.BillingSubscription
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, provider, customer_id, subscription_id, status, current_period_end, plan, created_at, updated_at
		 FROM billing_subscriptions WHERE provider = ? AND subscription_id = ?`,
		provider,
		subscriptionID,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &row, nil
}

func (r *repo) UpsertSubscription(ctx context.Context, db *gorm.DB, userID snowflake.ID, provider string, id snowflake.ID, data domain.SubscriptionUpsert, now time.Time) (*domain.BillingSubscription, error) {
	err := db.WithContext(ctx).Exec(
		`INSERT INTO billing_subscriptions (id, user_id, provider, customer_id, subscription_id, status, current_period_end, plan, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, provider) DO UPDATE SET
		   customer_id = COALESCE(excluded.customer_id, billing_subscriptions.customer_id),
		   subscription_id = COALESCE(excluded.subscription_id, billing_subscriptions.subscription_id),
		   status = excluded.status,
		   current_period_end = COALESCE(excluded.current_period_end, billing_subscriptions.current_period_end),
		   plan = COALESCE(excluded.plan, billing_subscriptions.plan),
		   updated_at = excluded.updated_at`,
		id,
		userID,
		provider,
		data.CustomerID,
		data.SubscriptionID,
		data.Status,
		data.CurrentPeriodEnd,
		data.Plan,
		now,
		now,
	).Error
	if err != nil {
		return nil, err
	}
	return r.FindSubscriptionByUser(ctx, db, userID, provider)
}

func (r *repo) InsertLink(ctx context.Context, db *gorm.DB, link *domain.PaymentLink) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payment_links (id, invoice_draft_id, provider, provider_id, url, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		link.ID,
		link.InvoiceDraftID,
		link.Provider,
		link.ProviderID,
		link.URL,
		link.Status,
		link.CreatedAt,
		link.UpdatedAt,
	).Error
}

func (r *repo) FindLinkByProviderRef(ctx context.Context, db *gorm.DB, provider, providerID string) (*domain.LinkWithOwner, error) {
	var row domain.LinkWithOwner
	err := db.WithContext(ctx).Raw(
		`SELECT pl.id, pl.invoice_draft_id, pl.provider, pl.provider_id, pl.url, pl.status, pl.created_at, pl.updated_at,
		        d.user_id AS user_id
		 FROM payment_links pl
		 JOIN invoice_drafts d ON d.id = pl.invoice_draft_id
		 WHERE pl.provider = ? AND pl.provider_id = ?`,
		provider,
		providerID,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &row, nil
}

func (r *repo) FindActiveLinkForInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (*domain.PaymentLink, error) {
	var row domain.PaymentLink
	err := db.WithContext(ctx).Raw(
		`SELECT id, invoice_draft_id, provider, provider_id, url, status, created_at, updated_at
		 FROM payment_links WHERE invoice_draft_id = ? AND status = 'active'
		 ORDER BY created_at DESC, id DESC LIMIT 1`,
		invoiceID,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &row, nil
}

func (r *repo) UpdateLinkStatus(ctx context.Context, db *gorm.DB, linkID snowflake.ID, to domain.LinkStatus, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payment_links SET status = ?, updated_at = ? WHERE id = ? AND status <> ?`,
		to,
		at,
		linkID,
		to,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) DeactivateLinksForInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payment_links SET status = 'inactive', updated_at = ?
		 WHERE invoice_draft_id = ? AND status = 'active'`,
		at,
		invoiceID,
	).Error
}
