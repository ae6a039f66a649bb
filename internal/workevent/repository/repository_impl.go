package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/devmarvs/backoffice/internal/workevent/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, event *domain.WorkEvent) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO work_events (id, user_id, client_id, type, start_at, duration_minutes, billable, notes, source_type, source_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.UserID,
		event.ClientID,
		event.Type,
		event.StartAt,
		event.DurationMinutes,
		event.Billable,
		event.Notes,
		event.SourceType,
		event.SourceID,
		event.CreatedAt,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, userID snowflake.ID, req domain.ListRequest) ([]domain.WorkEvent, error) {
	query := `SELECT id, user_id, client_id, type, start_at, duration_minutes, billable, notes, source_type, source_id, created_at
		 FROM work_events WHERE user_id = ?`
	args := []interface{}{userID}
	if req.From != nil {
		query += ` AND start_at >= ?`
		args = append(args, *req.From)
	}
	if req.To != nil {
		query += ` AND start_at <= ?`
		args = append(args, *req.To)
	}
	if req.ClientID != nil {
		query += ` AND client_id = ?`
		args = append(args, *req.ClientID)
	}
	query += ` ORDER BY start_at DESC, id DESC`

	var rows []domain.WorkEvent
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
