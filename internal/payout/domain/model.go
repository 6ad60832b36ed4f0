package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var ErrNothingToPay = errors.New("no unpaid allocations for venue")

// Payout is one settlement run for a venue: every unpaid allocation gets
// stamped with the payout id and the matching balances are drained.
type Payout struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	VenueID   snowflake.ID `json:"venue_id" gorm:"not null;index"`
	Reference string       `json:"reference" gorm:"type:text;not null;uniqueIndex"`
	Total     int64        `json:"total" gorm:"not null"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
}

func (Payout) TableName() string { return "payouts" }

type Service interface {
	CreatePayout(ctx context.Context, venueID snowflake.ID) (*Payout, error)
}
