package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/devmarvs/backoffice/internal/audit/domain"
	"github.com/devmarvs/backoffice/internal/clock"
	followupdomain "github.com/devmarvs/backoffice/internal/followup/domain"
	invoicedomain "github.com/devmarvs/backoffice/internal/invoice/domain"
	"github.com/devmarvs/backoffice/internal/lock"
	"github.com/devmarvs/backoffice/internal/reminder/domain"
	settingsdomain "github.com/devmarvs/backoffice/internal/settings/domain"
	templatedomain "github.com/devmarvs/backoffice/internal/template/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const sweepLockTTL = time.Minute

type Params struct {
	fx.In

	Log       *zap.Logger
	Clock     clock.Clock
	Settings  settingsdomain.Service
	Invoices  invoicedomain.Service
	FollowUps followupdomain.Service
	Templates templatedomain.Service
	Audit     auditdomain.Service
	Locker    *lock.Locker `optional:"true"`
}

type Service struct {
	log       *zap.Logger
	clock     clock.Clock
	settings  settingsdomain.Service
	invoices  invoicedomain.Service
	followUps followupdomain.Service
	templates templatedomain.Service
	audit     auditdomain.Service
	locker    *lock.Locker
}

func NewService(p Params) domain.Service {
	return &Service{
		log:       p.Log.Named("reminder.service"),
		clock:     p.Clock,
		settings:  p.Settings,
		invoices:  p.Invoices,
		followUps: p.FollowUps,
		templates: p.Templates,
		audit:     p.Audit,
		locker:    p.Locker,
	}
}

func (s *Service) RunForUser(ctx context.Context, userID snowflake.ID) (*domain.RunResult, error) {
	key := lock.SweepKey(userID)
	token, acquired, err := s.locker.TryLock(ctx, key, sweepLockTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, domain.ErrSweepRunning
	}
	defer func() {
		if err := s.locker.Release(ctx, key, token); err != nil {
			s.log.Warn("sweep lock release failed", zap.Error(err))
		}
	}()

	reminderDays, err := s.settings.ReminderDays(ctx, userID)
	if err != nil {
		return nil, err
	}
	runAt := s.clock.Now().UTC()

	if reminderDays == nil || *reminderDays <= 0 {
		if err := s.recordRun(ctx, userID, runAt, 0, reminderDays, true); err != nil {
			return nil, err
		}
		return &domain.RunResult{Created: 0, Disabled: true, ReminderDays: reminderDays}, nil
	}

	cutoff := runAt.AddDate(0, 0, -*reminderDays)
	drafts, err := s.invoices.ListDraftsCreatedBefore(ctx, userID, cutoff)
	if err != nil {
		return nil, err
	}

	created := 0
	for _, draft := range drafts {
		open, err := s.followUps.HasOpenForSource(ctx, userID, followupdomain.SourceInvoiceDraft, draft.ID)
		if err != nil {
			return nil, err
		}
		if open {
			continue
		}

		amount := invoicedomain.FormatAmount(draft.Currency, draft.AmountCents)
		message, err := s.templates.Resolve(ctx, nil, userID, templatedomain.TypePaymentReminder, map[string]string{
			"invoice_id": strconv.FormatInt(int64(draft.ID), 10),
			"amount":     amount,
		})
		if err != nil {
			return nil, err
		}
		if message == "" {
			message = fmt.Sprintf("Reminder: invoice #%d for %s is ready when you are.", draft.ID, amount)
		}

		sourceType := followupdomain.SourceInvoiceDraft
		draftID := draft.ID
		fu, err := s.followUps.Create(ctx, nil, userID, followupdomain.CreateFollowUpRequest{
			ClientID:         draft.ClientID,
			DueAt:            runAt,
			SuggestedMessage: message,
			SourceType:       &sourceType,
			SourceID:         &draftID,
		})
		if err != nil {
			return nil, err
		}
		if fu != nil {
			created++
		}
	}

	if err := s.recordRun(ctx, userID, runAt, created, reminderDays, false); err != nil {
		return nil, err
	}
	return &domain.RunResult{Created: created, ReminderDays: reminderDays}, nil
}

func (s *Service) recordRun(ctx context.Context, userID snowflake.ID, runAt time.Time, created int, reminderDays *int, disabled bool) error {
	if err := s.settings.RecordReminderRun(ctx, userID, runAt, created); err != nil {
		return err
	}

	metadata := map[string]any{
		"created":       created,
		"reminder_days": reminderDays,
	}
	if disabled {
		metadata["disabled"] = true
	}
	return s.audit.Record(ctx, userID, "reminders.run", "reminder_run", nil, metadata)
}
