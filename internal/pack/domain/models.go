package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Package is a block of prepaid sessions for a client. used_sessions only
// ever moves forward, guarded by the bounds check in the table schema.
type Package struct {
	ID            snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID        snowflake.ID `json:"user_id" gorm:"not null"`
	ClientID      snowflake.ID `json:"client_id" gorm:"not null"`
	Title         string       `json:"title" gorm:"type:text;not null"`
	TotalSessions int          `json:"total_sessions" gorm:"not null"`
	UsedSessions  int          `json:"used_sessions" gorm:"not null;default:0"`
	PriceCents    int64        `json:"price_cents" gorm:"not null;default:0"`
	Currency      string       `json:"currency" gorm:"type:text;not null"`
	CreatedAt     time.Time    `json:"created_at" gorm:"not null"`
}

func (Package) TableName() string { return "packages" }

func (p Package) Remaining() int {
	return p.TotalSessions - p.UsedSessions
}

type CreatePackageRequest struct {
	ClientID      snowflake.ID `json:"client_id"`
	Title         string       `json:"title"`
	TotalSessions int          `json:"total_sessions"`
	PriceCents    int64        `json:"price_cents"`
	Currency      string       `json:"currency"`
}

type UpdatePackageRequest struct {
	Title         *string `json:"title"`
	TotalSessions *int    `json:"total_sessions"`
	PriceCents    *int64  `json:"price_cents"`
}

type Service interface {
	Create(ctx context.Context, userID snowflake.ID, req CreatePackageRequest) (*Package, error)
	Update(ctx context.Context, userID, packageID snowflake.ID, req UpdatePackageRequest) (*Package, error)
	List(ctx context.Context, userID snowflake.ID, clientID *snowflake.ID) ([]Package, error)
	GetByID(ctx context.Context, userID, packageID snowflake.ID) (*Package, error)

	// Consume burns one session from the oldest package with spare capacity
	// for the client. Returns the consumed package, or nil when no package
	// has room left.
	Consume(ctx context.Context, db *gorm.DB, userID, clientID snowflake.ID) (*Package, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, pkg *Package) error
	FindByID(ctx context.Context, db *gorm.DB, userID, packageID snowflake.ID) (*Package, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, clientID *snowflake.ID) ([]Package, error)
	Update(ctx context.Context, db *gorm.DB, pkg *Package) error

	// CandidatesWithCapacity returns the client's packages with spare room,
	// oldest first.
	CandidatesWithCapacity(ctx context.Context, db *gorm.DB, userID, clientID snowflake.ID) ([]Package, error)

	// ConsumeOne increments used_sessions by one if and only if capacity
	// remains. Returns false when the row was already full.
	ConsumeOne(ctx context.Context, db *gorm.DB, userID, packageID snowflake.ID) (bool, error)
}

var (
	ErrNotFound       = errors.New("package_not_found")
	ErrInvalidTitle   = errors.New("invalid_package_title")
	ErrInvalidTotal   = errors.New("invalid_total_sessions")
	ErrTotalBelowUsed = errors.New("total_sessions_below_used")
)
