package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/devmarvs/backoffice/internal/audit/domain"
	"github.com/devmarvs/backoffice/internal/clock"
	"github.com/devmarvs/backoffice/internal/followup/domain"
	pkgdb "github.com/devmarvs/backoffice/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
	Audit auditdomain.Service
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
	audit auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("followup.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
		audit: p.Audit,
	}
}

func (s *Service) Create(ctx context.Context, db *gorm.DB, userID snowflake.ID, req domain.CreateFollowUpRequest) (*domain.FollowUp, error) {
	if db == nil {
		db = s.db
	}

	now := s.clock.Now().UTC()
	fu := &domain.FollowUp{
		ID:               s.genID.Generate(),
		UserID:           userID,
		ClientID:         req.ClientID,
		DueAt:            req.DueAt.UTC(),
		SuggestedMessage: strings.TrimSpace(req.SuggestedMessage),
		Status:           domain.StatusOpen,
		SourceType:       req.SourceType,
		SourceID:         req.SourceID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Insert(ctx, db, fu); err != nil {
		// The partial unique index rejects a second open follow-up for the
		// same source. That is the expected outcome of replays, not a fault.
		if pkgdb.IsDuplicateKeyErr(err) {
			s.log.Debug("open follow-up already exists for source",
				zap.Stringp("source_type", req.SourceType))
			return nil, nil
		}
		return nil, err
	}
	return fu, nil
}

func (s *Service) List(ctx context.Context, userID snowflake.ID, status *domain.Status) ([]domain.FollowUp, error) {
	if status != nil && !status.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	return s.repo.ListByStatus(ctx, s.db, userID, status)
}

func (s *Service) HasOpenForSource(ctx context.Context, userID snowflake.ID, sourceType string, sourceID snowflake.ID) (bool, error) {
	fu, err := s.repo.FindOpenBySource(ctx, s.db, userID, sourceType, sourceID)
	if err != nil {
		return false, err
	}
	return fu != nil, nil
}

func (s *Service) Transition(ctx context.Context, userID, followUpID snowflake.ID, to domain.Status) (*domain.FollowUp, error) {
	if to != domain.StatusDone && to != domain.StatusDismissed {
		return nil, domain.ErrInvalidStatus
	}

	fu, err := s.repo.FindByID(ctx, s.db, userID, followUpID)
	if err != nil {
		return nil, err
	}
	if fu == nil {
		return nil, domain.ErrNotFound
	}
	if fu.Status != domain.StatusOpen {
		return nil, domain.ErrInvalidTransition
	}

	now := s.clock.Now().UTC()
	ok, err := s.repo.UpdateStatusFromOpen(ctx, s.db, userID, followUpID, to, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrInvalidTransition
	}

	fu.Status = to
	fu.UpdatedAt = now
	if s.audit != nil {
		if err := s.audit.Record(ctx, userID, "followup."+string(to), "follow_up", &followUpID, nil); err != nil {
			s.log.Warn("audit record failed", zap.Error(err))
		}
	}
	return fu, nil
}
