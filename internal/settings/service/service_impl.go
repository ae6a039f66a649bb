package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/devmarvs/backoffice/internal/clock"
	"github.com/devmarvs/backoffice/internal/config"
	"github.com/devmarvs/backoffice/internal/settings/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Repo     domain.Repository
	Defaults *config.BillingDefaultsHolder
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	repo     domain.Repository
	defaults *config.BillingDefaultsHolder
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("settings.service"),
		clock:    p.Clock,
		repo:     p.Repo,
		defaults: p.Defaults,
	}
}

func (s *Service) Get(ctx context.Context, userID snowflake.ID) (*domain.UserSettings, error) {
	settings, err := s.repo.FindByUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		settings = &domain.UserSettings{UserID: userID}
	}
	return settings, nil
}

func (s *Service) Update(ctx context.Context, userID snowflake.ID, req domain.UpdateSettingsRequest) (*domain.UserSettings, error) {
	existing, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.DefaultRateCents != nil {
		existing.DefaultRateCents = req.DefaultRateCents
	}
	if req.DefaultCurrency != nil {
		currency := strings.ToUpper(strings.TrimSpace(*req.DefaultCurrency))
		existing.DefaultCurrency = &currency
	}
	if req.FollowUpDays != nil {
		existing.FollowUpDays = req.FollowUpDays
	}
	if req.InvoiceReminderDays != nil {
		existing.InvoiceReminderDays = req.InvoiceReminderDays
	}
	existing.UpdatedAt = s.clock.Now().UTC()

	if err := s.repo.Upsert(ctx, s.db, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *Service) EffectiveBilling(ctx context.Context, userID snowflake.ID, rateCents *int64, currency *string) (domain.BillingContext, error) {
	settings, err := s.repo.FindByUser(ctx, s.db, userID)
	if err != nil {
		return domain.BillingContext{}, err
	}
	defaults := s.defaults.Get()

	bc := domain.BillingContext{
		Currency:     defaults.Currency,
		FollowUpDays: defaults.FollowUpDays,
	}
	if settings != nil {
		if settings.DefaultRateCents != nil {
			bc.RateCents = settings.DefaultRateCents
		}
		if settings.DefaultCurrency != nil && strings.TrimSpace(*settings.DefaultCurrency) != "" {
			bc.Currency = strings.ToUpper(strings.TrimSpace(*settings.DefaultCurrency))
		}
		if settings.FollowUpDays != nil {
			bc.FollowUpDays = *settings.FollowUpDays
		}
	}
	if rateCents != nil {
		bc.RateCents = rateCents
	}
	if currency != nil && strings.TrimSpace(*currency) != "" {
		bc.Currency = strings.ToUpper(strings.TrimSpace(*currency))
	}
	return bc, nil
}

func (s *Service) ReminderDays(ctx context.Context, userID snowflake.ID) (*int, error) {
	settings, err := s.repo.FindByUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if settings != nil && settings.InvoiceReminderDays != nil {
		return settings.InvoiceReminderDays, nil
	}
	days := s.defaults.Get().InvoiceReminderDays
	return &days, nil
}

func (s *Service) RecordReminderRun(ctx context.Context, userID snowflake.ID, runAt time.Time, created int) error {
	return s.repo.UpdateReminderRun(ctx, s.db, userID, runAt.UTC(), created)
}
