package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/devmarvs/backoffice/internal/client/domain"
	"github.com/devmarvs/backoffice/internal/clock"
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
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("client.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, userID snowflake.ID, req domain.CreateClientRequest) (*domain.Client, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	now := s.clock.Now().UTC()
	client := &domain.Client{
		ID:        s.genID.Generate(),
		UserID:    userID,
		Name:      name,
		Email:     strings.TrimSpace(req.Email),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, client); err != nil {
		return nil, err
	}
	return client, nil
}

func (s *Service) List(ctx context.Context, userID snowflake.ID) ([]domain.Client, error) {
	return s.repo.List(ctx, s.db, userID)
}

func (s *Service) GetByID(ctx context.Context, userID, id snowflake.ID) (*domain.Client, error) {
	client, err := s.repo.FindByID(ctx, s.db, userID, id)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, domain.ErrNotFound
	}
	return client, nil
}
