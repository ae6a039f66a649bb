package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditLog is an append-only record of a state transition. It is never read
// back by business logic.
type AuditLog struct {
	ID         snowflake.ID      `json:"id" gorm:"primaryKey"`
	UserID     snowflake.ID      `json:"user_id" gorm:"not null;index"`
	Action     string            `json:"action" gorm:"type:text;not null"`
	EntityType string            `json:"entity_type" gorm:"type:text;not null"`
	EntityID   *snowflake.ID     `json:"entity_id"`
	Metadata   datatypes.JSONMap `json:"metadata" gorm:"type:jsonb"`
	CreatedAt  time.Time         `json:"created_at" gorm:"not null"`
}

func (AuditLog) TableName() string { return "audit_logs" }

type Service interface {
	Record(ctx context.Context, userID snowflake.ID, action, entityType string, entityID *snowflake.ID, metadata map[string]any) error
	RecordTx(ctx context.Context, tx *gorm.DB, userID snowflake.ID, action, entityType string, entityID *snowflake.ID, metadata map[string]any) error
	List(ctx context.Context, userID snowflake.ID, limit int) ([]AuditLog, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, userID snowflake.ID, limit int) ([]AuditLog, error)
}

var ErrInvalidAction = errors.New("invalid_action")
