package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/devmarvs/backoffice/internal/client/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, client *domain.Client) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO clients (id, user_id, name, email, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		client.ID,
		client.UserID,
		client.Name,
		client.Email,
		client.CreatedAt,
		client.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*domain.Client, error) {
	var client domain.Client
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, name, email, created_at, updated_at
		 FROM clients WHERE user_id = ? AND id = ?`,
		userID,
		id,
	).Scan(&client).Error
	if err != nil {
		return nil, err
	}
	if client.ID == 0 {
		return nil, nil
	}
	return &client, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]domain.Client, error) {
	var clients []domain.Client
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, name, email, created_at, updated_at
		 FROM clients WHERE user_id = ?
		 ORDER BY name ASC`,
		userID,
	).Scan(&clients).Error
	if err != nil {
		return nil, err
	}
	return clients, nil
}
