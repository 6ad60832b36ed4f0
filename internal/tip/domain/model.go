package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// TypePersonal is the only tip type currently issued. The column exists so
// venue-level or event-level tips can be told apart later without a backfill.
const TypePersonal = "PERSONAL"

type Tip struct {
	ID              snowflake.ID    `json:"id" gorm:"primaryKey"`
	VenueID         snowflake.ID    `json:"venue_id" gorm:"not null;index"`
	QRCodeID        snowflake.ID    `json:"qr_code_id" gorm:"not null;index"`
	StaffID         *snowflake.ID   `json:"staff_id" gorm:"index"`
	Type            string          `json:"type" gorm:"type:text;not null;default:PERSONAL"`
	OrderID         string          `json:"order_id" gorm:"type:text;not null;uniqueIndex"`
	Amount          int64           `json:"amount" gorm:"not null"`
	PlatformFee     int64           `json:"platform_fee" gorm:"not null"`
	NetAmount       int64           `json:"net_amount" gorm:"not null"`
	GrossAmount     int64           `json:"gross_amount" gorm:"not null"`
	Status          Status          `json:"status" gorm:"type:text;not null"`
	AllocationState AllocationState `json:"allocation_state" gorm:"type:text;not null;default:''"`
	GuestName       string          `json:"guest_name" gorm:"type:text"`
	Message         string          `json:"message" gorm:"type:text"`
	TransactionID   string          `json:"transaction_id" gorm:"type:text"`
	PaymentType     string          `json:"payment_type" gorm:"type:text"`
	TransactionTime *time.Time      `json:"transaction_time"`
	SettledAt       *time.Time      `json:"settled_at"`
	CreatedAt       time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt       time.Time       `json:"updated_at" gorm:"not null"`
}

func (Tip) TableName() string { return "tips" }

// Allocation is a staff member's share of a settled tip. Rows are written
// once, in the same transaction that marks the tip paid, and later stamped
// with a payout id when the venue pays out.
type Allocation struct {
	ID        snowflake.ID  `json:"id" gorm:"primaryKey"`
	TipID     snowflake.ID  `json:"tip_id" gorm:"not null;uniqueIndex:idx_tip_staff"`
	StaffID   snowflake.ID  `json:"staff_id" gorm:"not null;uniqueIndex:idx_tip_staff;index"`
	VenueID   snowflake.ID  `json:"venue_id" gorm:"not null;index"`
	Amount    int64         `json:"amount" gorm:"not null"`
	// Date is the allocation day at local midnight, for daily summaries.
	Date      time.Time     `json:"date" gorm:"not null;index"`
	PayoutID  *snowflake.ID `json:"payout_id" gorm:"index"`
	CreatedAt time.Time     `json:"created_at" gorm:"not null"`
}

func (Allocation) TableName() string { return "tip_allocations" }

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, tip *Tip) error
	FindByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*Tip, error)
	LockByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*Tip, error)
	Update(ctx context.Context, db *gorm.DB, tip *Tip) error
	InsertAllocations(ctx context.Context, db *gorm.DB, allocations []Allocation) error
	ListStale(ctx context.Context, db *gorm.DB, olderThan time.Time, limit int) ([]Tip, error)
}
