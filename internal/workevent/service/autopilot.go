package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	followupdomain "github.com/devmarvs/backoffice/internal/followup/domain"
	invoicedomain "github.com/devmarvs/backoffice/internal/invoice/domain"
	packdomain "github.com/devmarvs/backoffice/internal/pack/domain"
	settingsdomain "github.com/devmarvs/backoffice/internal/settings/domain"
	templatedomain "github.com/devmarvs/backoffice/internal/template/domain"
	"github.com/devmarvs/backoffice/internal/workevent/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Autopilot turns one logged work event into bookkeeping side effects inside
// the caller's transaction. The three rules are independent: a billable
// session yields an invoice draft, any session burns a package credit, and
// any session schedules a follow-up when a follow-up window is configured.
type Autopilot struct {
	log       *zap.Logger
	packs     packdomain.Service
	invoices  invoicedomain.Service
	followUps followupdomain.Service
	templates templatedomain.Service
}

func NewAutopilot(log *zap.Logger, packs packdomain.Service, invoices invoicedomain.Service, followUps followupdomain.Service, templates templatedomain.Service) *Autopilot {
	return &Autopilot{
		log:       log.Named("workevent.autopilot"),
		packs:     packs,
		invoices:  invoices,
		followUps: followUps,
		templates: templates,
	}
}

func (a *Autopilot) Process(ctx context.Context, tx *gorm.DB, event *domain.WorkEvent, clientName string, billing settingsdomain.BillingContext) (*domain.AutopilotResult, error) {
	result := &domain.AutopilotResult{}
	isSession := event.Type == domain.TypeSession

	if isSession && event.Billable {
		if err := a.draftInvoice(ctx, tx, event, billing, result); err != nil {
			return nil, err
		}
	}

	if isSession {
		pkg, err := a.packs.Consume(ctx, tx, event.UserID, event.ClientID)
		if err != nil {
			return nil, err
		}
		if pkg != nil {
			result.Package = &domain.PackageUse{
				PackageID:         pkg.ID,
				RemainingSessions: pkg.Remaining(),
			}
		}
	}

	if isSession && billing.FollowUpDays > 0 {
		if err := a.scheduleFollowUp(ctx, tx, event, clientName, billing.FollowUpDays, result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (a *Autopilot) draftInvoice(ctx context.Context, tx *gorm.DB, event *domain.WorkEvent, billing settingsdomain.BillingContext, result *domain.AutopilotResult) error {
	currency := billing.Currency
	if currency == "" {
		currency = "EUR"
	}

	quantityHours := 0.0
	if event.DurationMinutes > 0 {
		quantityHours = math.Round(float64(event.DurationMinutes)/60*100) / 100
	}

	var amountCents int64
	var unitPrice int64
	if billing.RateCents != nil {
		amountCents = int64(math.Round(float64(*billing.RateCents) * quantityHours))
		unitPrice = *billing.RateCents
	}

	draft, err := a.invoices.CreateDraft(ctx, tx, event.UserID, invoicedomain.CreateDraftRequest{
		ClientID:    event.ClientID,
		AmountCents: amountCents,
		Currency:    currency,
	})
	if err != nil {
		return err
	}

	lineQuantity := quantityHours
	if lineQuantity <= 0 {
		lineQuantity = 1.0
	}
	line, err := a.invoices.AddLine(ctx, tx, event.UserID, draft.ID, invoicedomain.AddLineRequest{
		WorkEventID:    &event.ID,
		Description:    fmt.Sprintf("Session (%s)", formatDuration(event.DurationMinutes)),
		Quantity:       fmt.Sprintf("%.2f", lineQuantity),
		UnitPriceCents: unitPrice,
	})
	if err != nil {
		return err
	}

	draft.AmountCents = amountCents
	result.InvoiceDraft = draft
	result.InvoiceLine = line
	return nil
}

func (a *Autopilot) scheduleFollowUp(ctx context.Context, tx *gorm.DB, event *domain.WorkEvent, clientName string, followUpDays int, result *domain.AutopilotResult) error {
	dueAt := event.StartAt.AddDate(0, 0, followUpDays)

	if strings.TrimSpace(clientName) == "" {
		clientName = "your client"
	}
	sessionDate := event.StartAt.UTC().Format("Jan 2")

	message, err := a.templates.Resolve(ctx, tx, event.UserID, templatedomain.TypeFollowUp, map[string]string{
		"client_name":  clientName,
		"session_date": sessionDate,
	})
	if err != nil {
		return err
	}
	if message == "" {
		message = fmt.Sprintf("Follow up with %s about the %s session.", clientName, sessionDate)
	}

	sourceType := followupdomain.SourceWorkEvent
	fu, err := a.followUps.Create(ctx, tx, event.UserID, followupdomain.CreateFollowUpRequest{
		ClientID:         event.ClientID,
		DueAt:            dueAt,
		SuggestedMessage: message,
		SourceType:       &sourceType,
		SourceID:         &event.ID,
	})
	if err != nil {
		return err
	}
	result.FollowUp = fu
	return nil
}

func formatDuration(minutes int) string {
	if minutes <= 0 {
		return "0m"
	}
	hours := minutes / 60
	rest := minutes % 60
	switch {
	case hours > 0 && rest > 0:
		return fmt.Sprintf("%dh %dm", hours, rest)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dm", rest)
	}
}
