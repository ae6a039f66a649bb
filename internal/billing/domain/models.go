package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EventKind is the closed set of provider notifications the reconciler acts
// on. Raw provider type strings are mapped to a kind once, at the boundary.
type EventKind int

const (
	KindUnhandled EventKind = iota
	KindCheckoutCompleted
	KindPaymentFailed
	KindRefunded
	KindDisputed
	KindSubscriptionUpdated
	KindSubscriptionDeleted
)

func (k EventKind) String() string {
	switch k {
	case KindCheckoutCompleted:
		return "checkout_completed"
	case KindPaymentFailed:
		return "payment_failed"
	case KindRefunded:
		return "refunded"
	case KindDisputed:
		return "disputed"
	case KindSubscriptionUpdated:
		return "subscription_updated"
	case KindSubscriptionDeleted:
		return "subscription_deleted"
	default:
		return "unhandled"
	}
}

// ProviderEvent is a provider notification after signature verification and
// parsing. Zero-value fields mean the payload did not carry them.
type ProviderEvent struct {
	Provider       string
	EventID        string
	EventType      string
	Kind           EventKind
	UserID         snowflake.ID
	CustomerID     string
	SubscriptionID string
	PaymentLinkRef string
	Status         string
	PeriodEnd      *time.Time
	Payload        []byte
}

type WebhookStatus string

const (
	WebhookReceived   WebhookStatus = "received"
	WebhookProcessing WebhookStatus = "processing"
	WebhookProcessed  WebhookStatus = "processed"
	WebhookFailed     WebhookStatus = "failed"
)

// WebhookEvent is the ledger row behind the (provider, event_id) idempotency
// key.
type WebhookEvent struct {
	ID           snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider     string         `json:"provider" gorm:"type:text;not null;uniqueIndex:ux_billing_webhook_events_provider_event"`
	EventID      string         `json:"event_id" gorm:"type:text;not null;uniqueIndex:ux_billing_webhook_events_provider_event"`
	EventType    string         `json:"event_type" gorm:"type:text;not null"`
	Payload      datatypes.JSON `json:"payload" gorm:"type:jsonb"`
	Status       WebhookStatus  `json:"status" gorm:"type:text;not null;default:'received'"`
	ErrorMessage *string        `json:"error_message"`
	ReceivedAt   time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt  *time.Time     `json:"processed_at"`
}

func (WebhookEvent) TableName() string { return "billing_webhook_events" }

type BillingSubscription struct {
	ID               snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID           snowflake.ID `json:"user_id" gorm:"not null;uniqueIndex:ux_billing_subscriptions_user_provider"`
	Provider         string       `json:"provider" gorm:"type:text;not null;uniqueIndex:ux_billing_subscriptions_user_provider"`
	CustomerID       *string      `json:"customer_id"`
	SubscriptionID   *string      `json:"subscription_id"`
	Status           string       `json:"status" gorm:"type:text;not null;default:'pending'"`
	CurrentPeriodEnd *time.Time   `json:"current_period_end"`
	Plan             *string      `json:"plan"`
	CreatedAt        time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt        time.Time    `json:"updated_at" gorm:"not null"`
}

func (BillingSubscription) TableName() string { return "billing_subscriptions" }

type SubscriptionUpsert struct {
	CustomerID       *string
	SubscriptionID   *string
	Status           string
	CurrentPeriodEnd *time.Time
	Plan             *string
}

type LinkStatus string

const (
	LinkActive   LinkStatus = "active"
	LinkPaid     LinkStatus = "paid"
	LinkFailed   LinkStatus = "failed"
	LinkRefunded LinkStatus = "refunded"
	LinkDisputed LinkStatus = "disputed"
	LinkInactive LinkStatus = "inactive"
)

type PaymentLink struct {
	ID             snowflake.ID `json:"id" gorm:"primaryKey"`
	InvoiceDraftID snowflake.ID `json:"invoice_draft_id" gorm:"not null"`
	Provider       string       `json:"provider" gorm:"type:text;not null;uniqueIndex:ux_payment_links_provider"`
	ProviderID     string       `json:"provider_id" gorm:"type:text;not null;uniqueIndex:ux_payment_links_provider"`
	URL            string       `json:"url" gorm:"type:text;not null"`
	Status         LinkStatus   `json:"status" gorm:"type:text;not null;default:'active'"`
	CreatedAt      time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt      time.Time    `json:"updated_at" gorm:"not null"`
}

func (PaymentLink) TableName() string { return "payment_links" }

// LinkWithOwner carries a payment link together with the owning user of its
// invoice, resolved in one query.
type LinkWithOwner struct {
	PaymentLink
	UserID snowflake.ID
}

// WebhookResult is what the HTTP layer reports back to the provider.
type WebhookResult struct {
	Duplicate bool   `json:"duplicate"`
	Kind      string `json:"kind"`
}

type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type Service interface {
	// ProcessWebhook runs the reconciler algorithm for one raw delivery.
	ProcessWebhook(ctx context.Context, provider string, payload []byte, signature string) (*WebhookResult, error)

	CreateCheckoutSession(ctx context.Context, userID snowflake.ID, email string) (*CheckoutSession, error)
	SubscriptionStatus(ctx context.Context, userID snowflake.ID, provider string) (*BillingSubscription, error)
	ConfirmPayPalSubscription(ctx context.Context, userID snowflake.ID, subscriptionID string) (*BillingSubscription, error)
	ManageURL() (string, error)

	// CreatePaymentLink returns a provider checkout link for a payable
	// invoice. An existing active link is reused unless refresh is set, in
	// which case it is retired and a new one minted.
	CreatePaymentLink(ctx context.Context, userID, invoiceID snowflake.ID, refresh bool) (*PaymentLink, error)
}

type Repository interface {
	// InsertEventIfAbsent writes the received row unless the idempotency key
	// already exists. Returns whether this call inserted it.
	InsertEventIfAbsent(ctx context.Context, db *gorm.DB, event *WebhookEvent) (bool, error)
	FindEvent(ctx context.Context, db *gorm.DB, provider, eventID string) (*WebhookEvent, error)
	MarkEventProcessing(ctx context.Context, db *gorm.DB, provider, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, db *gorm.DB, provider, eventID string, at time.Time) error
	MarkEventFailed(ctx context.Context, db *gorm.DB, provider, eventID, errorMessage string, at time.Time) error

	FindSubscriptionByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, provider string) (*BillingSubscription, error)
	FindSubscriptionByProviderID(ctx context.Context, db *gorm.DB, provider, subscriptionID string) (*BillingSubscription, error)
	UpsertSubscription(ctx context.Context, db *gorm.DB, userID snowflake.ID, provider string, id snowflake.ID, data SubscriptionUpsert, now time.Time) (*BillingSubscription, error)

	InsertLink(ctx context.Context, db *gorm.DB, link *PaymentLink) error
	FindLinkByProviderRef(ctx context.Context, db *gorm.DB, provider, providerID string) (*LinkWithOwner, error)
	FindActiveLinkForInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (*PaymentLink, error)
	// UpdateLinkStatus flips a link's status unless it already has it.
	// Returns false when nothing changed.
	UpdateLinkStatus(ctx context.Context, db *gorm.DB, linkID snowflake.ID, to LinkStatus, at time.Time) (bool, error)
	DeactivateLinksForInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, at time.Time) error
}

var (
	ErrInvalidProvider  = errors.New("invalid_provider")
	ErrInvalidSignature = errors.New("invalid_webhook_signature")
	ErrInvalidPayload   = errors.New("invalid_webhook_payload")
	ErrNotConfigured    = errors.New("billing_not_configured")
	ErrInvalidSub       = errors.New("invalid_subscription")
	ErrNotPayable       = errors.New("invoice_not_payable")
)
