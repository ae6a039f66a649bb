package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/devmarvs/backoffice/internal/pack/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, pkg *domain.Package) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO packages (id, user_id, client_id, title, total_sessions, used_sessions, price_cents, currency, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pkg.ID,
		pkg.UserID,
		pkg.ClientID,
		pkg.Title,
		pkg.TotalSessions,
		pkg.UsedSessions,
		pkg.PriceCents,
		pkg.Currency,
		pkg.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, userID, packageID snowflake.ID) (*domain.Package, error) {
	var pkg domain.Package
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, client_id, title, total_sessions, used_sessions, price_cents, currency, created_at
		 FROM packages WHERE id = ? AND user_id = ?`,
		packageID,
		userID,
	).Scan(&pkg).Error
	if err != nil {
		return nil, err
	}
	if pkg.ID == 0 {
		return nil, nil
	}
	return &pkg, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, clientID *snowflake.ID) ([]domain.Package, error) {
	query := `SELECT id, user_id, client_id, title, total_sessions, used_sessions, price_cents, currency, created_at
		 FROM packages WHERE user_id = ?`
	args := []interface{}{userID}
	if clientID != nil {
		query += ` AND client_id = ?`
		args = append(args, *clientID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	var rows []domain.Package
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, pkg *domain.Package) error {
	return db.WithContext(ctx).Exec(
		`UPDATE packages SET title = ?, total_sessions = ?, price_cents = ?
		 WHERE id = ? AND user_id = ?`,
		pkg.Title,
		pkg.TotalSessions,
		pkg.PriceCents,
		pkg.ID,
		pkg.UserID,
	).Error
}

func (r *repo) CandidatesWithCapacity(ctx context.Context, db *gorm.DB, userID, clientID snowflake.ID) ([]domain.Package, error) {
	var rows []domain.Package
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, client_id, title, total_sessions, used_sessions, price_cents, currency, created_at
		 FROM packages
		 WHERE user_id = ? AND client_id = ? AND used_sessions < total_sessions
		 ORDER BY created_at ASC, id ASC`,
		userID,
		clientID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) ConsumeOne(ctx context.Context, db *gorm.DB, userID, packageID snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE packages SET used_sessions = used_sessions + 1
		 WHERE id = ? AND user_id = ? AND used_sessions < total_sessions`,
		packageID,
		userID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
