package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/devmarvs/backoffice/internal/audit/domain"
	"github.com/devmarvs/backoffice/internal/clock"
	"github.com/devmarvs/backoffice/internal/pack/domain"
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
		log:   p.Log.Named("pack.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
		audit: p.Audit,
	}
}

func (s *Service) Create(ctx context.Context, userID snowflake.ID, req domain.CreatePackageRequest) (*domain.Package, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, domain.ErrInvalidTitle
	}
	if req.TotalSessions <= 0 {
		return nil, domain.ErrInvalidTotal
	}

	pkg := &domain.Package{
		ID:            s.genID.Generate(),
		UserID:        userID,
		ClientID:      req.ClientID,
		Title:         title,
		TotalSessions: req.TotalSessions,
		UsedSessions:  0,
		PriceCents:    req.PriceCents,
		Currency:      strings.ToUpper(strings.TrimSpace(req.Currency)),
		CreatedAt:     s.clock.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, s.db, pkg); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, userID, "package.created", pkg.ID, map[string]any{
		"client_id":      pkg.ClientID.String(),
		"total_sessions": pkg.TotalSessions,
	})
	return pkg, nil
}

func (s *Service) Update(ctx context.Context, userID, packageID snowflake.ID, req domain.UpdatePackageRequest) (*domain.Package, error) {
	pkg, err := s.repo.FindByID(ctx, s.db, userID, packageID)
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		return nil, domain.ErrNotFound
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, domain.ErrInvalidTitle
		}
		pkg.Title = title
	}
	if req.TotalSessions != nil {
		if *req.TotalSessions <= 0 {
			return nil, domain.ErrInvalidTotal
		}
		// Shrinking below what was already consumed would break the
		// bounds invariant.
		if *req.TotalSessions < pkg.UsedSessions {
			return nil, domain.ErrTotalBelowUsed
		}
		pkg.TotalSessions = *req.TotalSessions
	}
	if req.PriceCents != nil {
		pkg.PriceCents = *req.PriceCents
	}

	if err := s.repo.Update(ctx, s.db, pkg); err != nil {
		return nil, err
	}
	return pkg, nil
}

func (s *Service) List(ctx context.Context, userID snowflake.ID, clientID *snowflake.ID) ([]domain.Package, error) {
	return s.repo.ListByUser(ctx, s.db, userID, clientID)
}

func (s *Service) GetByID(ctx context.Context, userID, packageID snowflake.ID) (*domain.Package, error) {
	pkg, err := s.repo.FindByID(ctx, s.db, userID, packageID)
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		return nil, domain.ErrNotFound
	}
	return pkg, nil
}

// Consume walks the client's packages oldest first and claims one session
// from the first row with spare capacity. The conditional UPDATE means a
// concurrent consumer racing on the same row simply moves on to the next
// candidate.
func (s *Service) Consume(ctx context.Context, db *gorm.DB, userID, clientID snowflake.ID) (*domain.Package, error) {
	if db == nil {
		db = s.db
	}

	candidates, err := s.repo.CandidatesWithCapacity(ctx, db, userID, clientID)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		ok, err := s.repo.ConsumeOne(ctx, db, userID, candidates[i].ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		pkg := candidates[i]
		pkg.UsedSessions++
		return &pkg, nil
	}
	return nil, nil
}

func (s *Service) recordAudit(ctx context.Context, userID snowflake.ID, action string, entityID snowflake.ID, metadata map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, userID, action, "package", &entityID, metadata); err != nil {
		s.log.Warn("audit record failed", zap.String("action", action), zap.Error(err))
	}
}
