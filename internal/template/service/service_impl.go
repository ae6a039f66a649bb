package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/devmarvs/backoffice/internal/clock"
	"github.com/devmarvs/backoffice/internal/template/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// defaultBodies are the hardcoded fallbacks used when a user has no override
// or the stored body is empty.
var defaultBodies = map[domain.TemplateType]string{
	domain.TypeFollowUp:        "Follow up with {{client_name}} about your {{session_date}} session.",
	domain.TypePaymentReminder: "Reminder: invoice #{{invoice_id}} for {{amount}} is ready when you are.",
	domain.TypeNoShow:          "Sorry we missed each other today. Let me know if you want to reschedule.",
}

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
		log:   p.Log.Named("template.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Resolve(ctx context.Context, db *gorm.DB, userID snowflake.ID, templateType domain.TemplateType, vars map[string]string) (string, error) {
	if !templateType.Valid() {
		return "", domain.ErrInvalidType
	}
	if db == nil {
		db = s.db
	}

	body := defaultBodies[templateType]
	tmpl, err := s.repo.FindByType(ctx, db, userID, templateType)
	if err != nil {
		return "", err
	}
	if tmpl != nil && strings.TrimSpace(tmpl.Body) != "" {
		body = tmpl.Body
	}
	if body == "" {
		return "", nil
	}

	for key, value := range vars {
		body = strings.ReplaceAll(body, "{{"+key+"}}", value)
	}
	return body, nil
}

func (s *Service) ListForUser(ctx context.Context, userID snowflake.ID) ([]domain.MessageTemplate, error) {
	rows, err := s.repo.ListByUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	byType := make(map[domain.TemplateType]domain.MessageTemplate, len(rows))
	for _, row := range rows {
		byType[row.Type] = row
	}
	for _, t := range []domain.TemplateType{domain.TypeFollowUp, domain.TypePaymentReminder, domain.TypeNoShow} {
		if _, ok := byType[t]; !ok {
			byType[t] = domain.MessageTemplate{
				UserID: userID,
				Type:   t,
				Body:   defaultBodies[t],
			}
		}
	}

	out := make([]domain.MessageTemplate, 0, len(byType))
	for _, t := range []domain.TemplateType{domain.TypeFollowUp, domain.TypeNoShow, domain.TypePaymentReminder} {
		out = append(out, byType[t])
	}
	return out, nil
}

func (s *Service) Upsert(ctx context.Context, userID snowflake.ID, templateType domain.TemplateType, subject *string, body string) (*domain.MessageTemplate, error) {
	if !templateType.Valid() {
		return nil, domain.ErrInvalidType
	}
	if strings.TrimSpace(body) == "" {
		return nil, domain.ErrInvalidBody
	}

	tmpl := &domain.MessageTemplate{
		ID:        s.genID.Generate(),
		UserID:    userID,
		Type:      templateType,
		Subject:   subject,
		Body:      body,
		UpdatedAt: s.clock.Now().UTC(),
	}
	if err := s.repo.Upsert(ctx, s.db, tmpl); err != nil {
		return nil, err
	}
	return tmpl, nil
}
