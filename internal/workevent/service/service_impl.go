package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	clientdomain "github.com/devmarvs/backoffice/internal/client/domain"
	"github.com/devmarvs/backoffice/internal/clock"
	settingsdomain "github.com/devmarvs/backoffice/internal/settings/domain"
	"github.com/devmarvs/backoffice/internal/workevent/domain"
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
	Repo      domain.Repository
	Clients   clientdomain.Service
	Settings  settingsdomain.Service
	Autopilot *Autopilot
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	clients   clientdomain.Service
	settings  settingsdomain.Service
	autopilot *Autopilot
}

func NewService(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("workevent.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		clients:   p.Clients,
		settings:  p.Settings,
		autopilot: p.Autopilot,
	}
}

// Log records a work event and runs the autopilot in the same transaction.
// Either everything lands or nothing does.
func (s *Service) Log(ctx context.Context, userID snowflake.ID, req domain.LogRequest) (*domain.LogResult, error) {
	eventType := req.Type
	if eventType == "" {
		eventType = domain.TypeSession
	}
	if !eventType.Valid() {
		return nil, domain.ErrInvalidType
	}
	if req.StartAt.IsZero() {
		return nil, domain.ErrInvalidStartAt
	}
	if req.DurationMinutes <= 0 {
		return nil, domain.ErrInvalidDuration
	}
	if req.RateCents != nil && *req.RateCents < 0 {
		return nil, domain.ErrInvalidRate
	}
	if req.Currency != nil {
		currency := strings.TrimSpace(*req.Currency)
		if currency != "" && len(currency) != 3 {
			return nil, domain.ErrInvalidCurrency
		}
	}

	client, err := s.clients.GetByID(ctx, userID, req.ClientID)
	if err != nil {
		return nil, err
	}

	billing, err := s.settings.EffectiveBilling(ctx, userID, req.RateCents, req.Currency)
	if err != nil {
		return nil, err
	}

	billable := true
	if req.Billable != nil {
		billable = *req.Billable
	}

	var sourceType *string
	if req.SourceType != nil {
		if st := strings.TrimSpace(*req.SourceType); st != "" {
			sourceType = &st
		}
	}

	event := &domain.WorkEvent{
		ID:              s.genID.Generate(),
		UserID:          userID,
		ClientID:        req.ClientID,
		Type:            eventType,
		StartAt:         req.StartAt.UTC(),
		DurationMinutes: req.DurationMinutes,
		Billable:        billable,
		Notes:           req.Notes,
		SourceType:      sourceType,
		SourceID:        req.SourceID,
		CreatedAt:       s.clock.Now().UTC(),
	}

	var result domain.LogResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, event); err != nil {
			return err
		}
		autopilot, err := s.autopilot.Process(ctx, tx, event, client.Name, billing)
		if err != nil {
			return err
		}
		result.WorkEvent = event
		result.Autopilot = autopilot
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *Service) List(ctx context.Context, userID snowflake.ID, req domain.ListRequest) ([]domain.WorkEvent, error) {
	return s.repo.List(ctx, s.db, userID, req)
}
