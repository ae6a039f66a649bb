package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/devmarvs/backoffice/internal/followup/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, fu *domain.FollowUp) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO follow_ups (id, user_id, client_id, due_at, suggested_message, status, source_type, source_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fu.ID,
		fu.UserID,
		fu.ClientID,
		fu.DueAt,
		fu.SuggestedMessage,
		fu.Status,
		fu.SourceType,
		fu.SourceID,
		fu.CreatedAt,
		fu.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*domain.FollowUp, error) {
	var fu domain.FollowUp
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, client_id, due_at, suggested_message, status, source_type, source_id, created_at, updated_at
		 FROM follow_ups WHERE id = ? AND user_id = ?`,
		id,
		userID,
	).Scan(&fu).Error
	if err != nil {
		return nil, err
	}
	if fu.ID == 0 {
		return nil, nil
	}
	return &fu, nil
}

func (r *repo) FindOpenBySource(ctx context.Context, db *gorm.DB, userID snowflake.ID, sourceType string, sourceID snowflake.ID) (*domain.FollowUp, error) {
	var fu domain.FollowUp
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, client_id, due_at, suggested_message, status, source_type, source_id, created_at, updated_at
		 FROM follow_ups
		 WHERE user_id = ? AND source_type = ? AND source_id = ? AND status = 'open'`,
		userID,
		sourceType,
		sourceID,
	).Scan(&fu).Error
	if err != nil {
		return nil, err
	}
	if fu.ID == 0 {
		return nil, nil
	}
	return &fu, nil
}

func (r *repo) ListByStatus(ctx context.Context, db *gorm.DB, userID snowflake.ID, status *domain.Status) ([]domain.FollowUp, error) {
	query := `SELECT id, user_id, client_id, due_at, suggested_message, status, source_type, source_id, created_at, updated_at
		 FROM follow_ups WHERE user_id = ?`
	args := []interface{}{userID}
	if status != nil {
		query += ` AND status = ?`
		args = append(args, *status)
	}
	query += ` ORDER BY due_at ASC, id ASC`

	var rows []domain.FollowUp
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) UpdateStatusFromOpen(ctx context.Context, db *gorm.DB, userID, id snowflake.ID, to domain.Status, updatedAt time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE follow_ups SET status = ?, updated_at = ?
		 WHERE id = ? AND user_id = ? AND status = 'open'`,
		to,
		updatedAt,
		id,
		userID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
