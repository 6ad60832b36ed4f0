package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

const (
	StatusActive   = "ACTIVE"
	StatusInactive = "INACTIVE"
)

var ErrNotFound = errors.New("staff not found")

type Staff struct {
	ID       snowflake.ID `json:"id" gorm:"primaryKey"`
	VenueID  snowflake.ID `json:"venue_id" gorm:"not null;index"`
	Name     string       `json:"name" gorm:"type:text;not null"`
	Status   string       `json:"status" gorm:"type:text;not null;default:ACTIVE"`
	// InPool marks staff that share pooled tips. Individual-only staff
	// keep receiving direct tips while opted out of the pool.
	InPool    bool      `json:"in_pool" gorm:"not null;default:true"`
	Balance   int64     `json:"balance" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

func (Staff) TableName() string { return "staff" }

type BalanceRow struct {
	StaffID snowflake.ID `json:"staff_id"`
	Name    string       `json:"name"`
	Balance int64        `json:"balance"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, staff *Staff) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Staff, error)
	// ListActivePool returns the venue's active pool members ordered by id,
	// so remainder assignment is deterministic.
	ListActivePool(ctx context.Context, db *gorm.DB, venueID snowflake.ID) ([]Staff, error)
	IsVenueMember(ctx context.Context, db *gorm.DB, venueID, staffID snowflake.ID) (bool, error)
	IncrementBalance(ctx context.Context, db *gorm.DB, staffID snowflake.ID, amount int64) error
	ListBalances(ctx context.Context, db *gorm.DB, venueID snowflake.ID) ([]BalanceRow, error)
}
