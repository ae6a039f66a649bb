package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/devmarvs/backoffice/internal/audit/domain"
	"github.com/devmarvs/backoffice/internal/billing/domain"
	"github.com/devmarvs/backoffice/internal/billing/paypal"
	"github.com/devmarvs/backoffice/internal/billing/stripe"
	"github.com/devmarvs/backoffice/internal/clock"
	"github.com/devmarvs/backoffice/internal/config"
	invoicedomain "github.com/devmarvs/backoffice/internal/invoice/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Config    config.Config
	Repo      domain.Repository
	Stripe    *stripe.Adapter
	StripeAPI *stripe.Client
	PayPal    *paypal.Client
	Invoices  invoicedomain.Service
	Audit     auditdomain.Service
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	cfg       config.Config
	repo      domain.Repository
	stripe    *stripe.Adapter
	stripeAPI *stripe.Client
	paypal    *paypal.Client
	invoices  invoicedomain.Service
	audit     auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log,
		genID:     p.GenID,
		clock:     p.Clock,
		cfg:       p.Config,
		repo:      p.Repo,
		stripe:    p.Stripe,
		stripeAPI: p.StripeAPI,
		paypal:    p.PayPal,
		invoices:  p.Invoices,
		audit:     p.Audit,
	}
}

// ProcessWebhook reconciles one raw provider delivery. Verification failures
// leave no trace; everything after the ledger insert is replay-safe.
func (s *Service) ProcessWebhook(ctx context.Context, provider string, payload []byte, signature string) (*domain.WebhookResult, error) {
	if provider != "stripe" {
		return nil, domain.ErrInvalidProvider
	}
	if err := s.stripe.Verify(payload, signature); err != nil {
		return nil, err
	}

	event, err := s.stripe.Parse(payload)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	inserted, err := s.repo.InsertEventIfAbsent(ctx, s.db, &domain.WebhookEvent{
		ID:         s.genID.Generate(),
		Provider:   event.Provider,
		EventID:    event.EventID,
		EventType:  event.EventType,
		Payload:    payload,
		ReceivedAt: now,
	})
	if err != nil {
		return nil, err
	}
	if !inserted {
		existing, err := s.repo.FindEvent(ctx, s.db, event.Provider, event.EventID)
		if err != nil {
			return nil, err
		}
		if existing.Status != domain.WebhookReceived && existing.Status != domain.WebhookFailed {
			return &domain.WebhookResult{Duplicate: true, Kind: event.Kind.String()}, nil
		}
	}

	claimed, err := s.repo.MarkEventProcessing(ctx, s.db, event.Provider, event.EventID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// Lost the claim to a concurrent delivery of the same event.
		return &domain.WebhookResult{Duplicate: true, Kind: event.Kind.String()}, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.dispatch(ctx, tx, event)
	})
	if err != nil {
		failedAt := s.clock.Now().UTC()
		if markErr := s.repo.MarkEventFailed(ctx, s.db, event.Provider, event.EventID, err.Error(), failedAt); markErr != nil {
			s.log.Error("mark webhook event failed", zap.Error(markErr),
				zap.String("event_id", event.EventID))
		}
		return nil, fmt.Errorf("process %s: %w", event.EventType, err)
	}

	if err := s.repo.MarkEventProcessed(ctx, s.db, event.Provider, event.EventID, s.clock.Now().UTC()); err != nil {
		return nil, err
	}
	return &domain.WebhookResult{Kind: event.Kind.String()}, nil
}

func (s *Service) dispatch(ctx context.Context, tx *gorm.DB, event *domain.ProviderEvent) error {
	switch event.Kind {
	case domain.KindCheckoutCompleted:
		return s.handleCheckoutCompleted(ctx, tx, event)
	case domain.KindPaymentFailed:
		_, err := s.settleLink(ctx, tx, event, domain.LinkFailed, "")
		return err
	case domain.KindRefunded:
		_, err := s.settleLink(ctx, tx, event, domain.LinkRefunded, "invoice.refunded")
		return err
	case domain.KindDisputed:
		_, err := s.settleLink(ctx, tx, event, domain.LinkDisputed, "invoice.disputed")
		return err
	case domain.KindSubscriptionUpdated:
		return s.handleSubscriptionChanged(ctx, tx, event, false)
	case domain.KindSubscriptionDeleted:
		return s.handleSubscriptionChanged(ctx, tx, event, true)
	default:
		// Unrecognized event types are acknowledged without side effects so
		// the provider stops retrying them.
		return nil
	}
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, tx *gorm.DB, event *domain.ProviderEvent) error {
	now := s.clock.Now().UTC()

	if event.UserID != 0 && event.SubscriptionID != "" {
		status := event.Status
		if status == "" || status == "complete" {
			status = "active"
		}
		_, err := s.repo.UpsertSubscription(ctx, tx, event.UserID, "stripe", s.genID.Generate(), domain.SubscriptionUpsert{
			CustomerID:     optional(event.CustomerID),
			SubscriptionID: optional(event.SubscriptionID),
			Status:         status,
		}, now)
		if err != nil {
			return err
		}
	}

	if event.PaymentLinkRef == "" {
		return nil
	}

	link, err := s.repo.FindLinkByProviderRef(ctx, tx, "stripe", event.PaymentLinkRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// A link minted outside this system; nothing to settle.
			return nil
		}
		return err
	}

	if _, err := s.repo.UpdateLinkStatus(ctx, tx, link.ID, domain.LinkPaid, now); err != nil {
		return err
	}
	if _, err := s.invoices.MarkPaidByProvider(ctx, tx, link.UserID, link.InvoiceDraftID, "stripe"); err != nil {
		return err
	}
	return nil
}

// settleLink flips the referenced payment link to the given status. When
// auditAction is set and the flip actually changed the link, an audit entry
// is written against the owning invoice.
func (s *Service) settleLink(ctx context.Context, tx *gorm.DB, event *domain.ProviderEvent, to domain.LinkStatus, auditAction string) (bool, error) {
	if event.PaymentLinkRef == "" {
		return false, nil
	}

	link, err := s.repo.FindLinkByProviderRef(ctx, tx, "stripe", event.PaymentLinkRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}

	changed, err := s.repo.UpdateLinkStatus(ctx, tx, link.ID, to, s.clock.Now().UTC())
	if err != nil {
		return false, err
	}
	if changed && auditAction != "" {
		invoiceID := link.InvoiceDraftID
		if err := s.audit.RecordTx(ctx, tx, link.UserID, auditAction, "invoice_draft", &invoiceID, map[string]any{
			"provider": "stripe",
			"event_id": event.EventID,
		}); err != nil {
			return false, err
		}
	}
	return changed, nil
}

func (s *Service) handleSubscriptionChanged(ctx context.Context, tx *gorm.DB, event *domain.ProviderEvent, deleted bool) error {
	if event.SubscriptionID == "" {
		return nil
	}

	userID := event.UserID
	existingStatus := ""
	if userID == 0 {
		existing, err := s.repo.FindSubscriptionByProviderID(ctx, tx, "stripe", event.SubscriptionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Subscription we never sold; skip.
				return nil
			}
			return err
		}
		userID = existing.UserID
		existingStatus = existing.Status
	}

	status := event.Status
	if deleted {
		status = "canceled"
	}
	if status == "" {
		status = existingStatus
	}
	if status == "" {
		status = "active"
	}

	_, err := s.repo.UpsertSubscription(ctx, tx, userID, "stripe", s.genID.Generate(), domain.SubscriptionUpsert{
		CustomerID:       optional(event.CustomerID),
		SubscriptionID:   optional(event.SubscriptionID),
		Status:           status,
		CurrentPeriodEnd: event.PeriodEnd,
	}, s.clock.Now().UTC())
	return err
}

func (s *Service) CreateCheckoutSession(ctx context.Context, userID snowflake.ID, email string) (*domain.CheckoutSession, error) {
	if !s.stripeAPI.Configured() || s.cfg.StripePriceID == "" {
		return nil, domain.ErrNotConfigured
	}

	session, err := s.stripeAPI.CreateCheckoutSession(ctx, stripe.CheckoutSessionParams{
		PriceID:           s.cfg.StripePriceID,
		CustomerEmail:     strings.TrimSpace(email),
		ClientReferenceID: userID.String(),
		SuccessURL:        s.cfg.StripeSuccessURL,
		CancelURL:         s.cfg.StripeCancelURL,
	})
	if err != nil {
		return nil, err
	}
	return &domain.CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

func (s *Service) SubscriptionStatus(ctx context.Context, userID snowflake.ID, provider string) (*domain.BillingSubscription, error) {
	sub, err := s.repo.FindSubscriptionByUser(ctx, s.db, userID, provider)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return sub, nil
}

func (s *Service) ConfirmPayPalSubscription(ctx context.Context, userID snowflake.ID, subscriptionID string) (*domain.BillingSubscription, error) {
	subscriptionID = strings.TrimSpace(subscriptionID)
	if subscriptionID == "" {
		return nil, domain.ErrInvalidSub
	}
	if !s.paypal.Configured() {
		return nil, domain.ErrNotConfigured
	}

	remote, err := s.paypal.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	var periodEnd *time.Time
	if !remote.BillingInfo.NextBillingTime.IsZero() {
		at := remote.BillingInfo.NextBillingTime.UTC()
		periodEnd = &at
	}

	sub, err := s.repo.UpsertSubscription(ctx, s.db, userID, "paypal", s.genID.Generate(), domain.SubscriptionUpsert{
		CustomerID:       optional(remote.Subscriber.PayerID),
		SubscriptionID:   optional(remote.ID),
		Status:           strings.ToLower(strings.TrimSpace(remote.Status)),
		CurrentPeriodEnd: periodEnd,
		Plan:             optional(remote.PlanID),
	}, s.clock.Now().UTC())
	if err != nil {
		return nil, err
	}

	if err := s.audit.Record(ctx, userID, "subscription.confirmed", "billing_subscription", &sub.ID, map[string]any{
		"provider": "paypal",
		"status":   sub.Status,
	}); err != nil {
		s.log.Warn("audit record failed", zap.Error(err))
	}
	return sub, nil
}

func (s *Service) ManageURL() (string, error) {
	if strings.TrimSpace(s.cfg.PayPalManageURL) == "" {
		return "", domain.ErrNotConfigured
	}
	return s.cfg.PayPalManageURL, nil
}

func (s *Service) CreatePaymentLink(ctx context.Context, userID, invoiceID snowflake.ID, refresh bool) (*domain.PaymentLink, error) {
	if !s.stripeAPI.Configured() {
		return nil, domain.ErrNotConfigured
	}

	invoice, err := s.invoices.GetByID(ctx, userID, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.Status != invoicedomain.StatusDraft && invoice.Status != invoicedomain.StatusSent {
		return nil, domain.ErrNotPayable
	}
	if invoice.AmountCents <= 0 {
		return nil, domain.ErrNotPayable
	}

	if !refresh {
		existing, err := s.repo.FindActiveLinkForInvoice(ctx, s.db, invoiceID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	remote, err := s.stripeAPI.CreatePaymentLink(ctx, stripe.PaymentLinkParams{
		AmountCents: invoice.AmountCents,
		Currency:    invoice.Currency,
		Description: "Invoice #" + strconv.FormatInt(int64(invoiceID), 10),
		InvoiceID:   invoiceID.String(),
		UserID:      userID.String(),
	})
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	link := &domain.PaymentLink{
		ID:             s.genID.Generate(),
		InvoiceDraftID: invoiceID,
		Provider:       "stripe",
		ProviderID:     remote.ID,
		URL:            remote.URL,
		Status:         domain.LinkActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.DeactivateLinksForInvoice(ctx, tx, invoiceID, now); err != nil {
			return err
		}
		if err := s.repo.InsertLink(ctx, tx, link); err != nil {
			return err
		}
		return s.audit.RecordTx(ctx, tx, userID, "payment_link.created", "invoice_draft", &invoiceID, map[string]any{
			"provider":    "stripe",
			"provider_id": remote.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
