package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/devmarvs/backoffice/internal/template/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByType(ctx context.Context, db *gorm.DB, userID snowflake.ID, templateType domain.TemplateType) (*domain.MessageTemplate, error) {
	var tmpl domain.MessageTemplate
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, type, subject, body, updated_at
		 FROM message_templates WHERE user_id = ? AND type = ?`,
		userID,
		templateType,
	).Scan(&tmpl).Error
	if err != nil {
		return nil, err
	}
	if tmpl.ID == 0 {
		return nil, nil
	}
	return &tmpl, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]domain.MessageTemplate, error) {
	var rows []domain.MessageTemplate
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, type, subject, body, updated_at
		 FROM message_templates WHERE user_id = ?
		 ORDER BY type ASC`,
		userID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, tmpl *domain.MessageTemplate) error {
	res := db.WithContext(ctx).Exec(
		`UPDATE message_templates
		 SET subject = ?, body = ?, updated_at = ?
		 WHERE user_id = ? AND type = ?`,
		tmpl.Subject,
		tmpl.Body,
		tmpl.UpdatedAt,
		tmpl.UserID,
		tmpl.Type,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO message_templates (id, user_id, type, subject, body, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		tmpl.ID,
		tmpl.UserID,
		tmpl.Type,
		tmpl.Subject,
		tmpl.Body,
		tmpl.UpdatedAt,
	).Error
}
