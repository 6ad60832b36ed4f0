package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Type string

const (
	// TypeIndividual points guests at one staff member.
	TypeIndividual Type = "INDIVIDUAL"
	// TypeTeam is a shared code, usually on a table or the counter.
	TypeTeam Type = "TEAM"
)

var (
	ErrNotFound    = errors.New("qr code not found")
	ErrUnknownType = errors.New("unknown qr code type")
)

// NormalizeType folds the aliases that appear in older rows and client
// payloads onto the two canonical types.
func NormalizeType(raw string) (Type, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "INDIVIDUAL", "PERSONAL", "STAFF":
		return TypeIndividual, nil
	case "TEAM", "TABLE", "VENUE", "POOL":
		return TypeTeam, nil
	default:
		return "", ErrUnknownType
	}
}

type QRCode struct {
	ID      snowflake.ID `json:"id" gorm:"primaryKey"`
	VenueID snowflake.ID `json:"venue_id" gorm:"not null;index"`
	Type    Type         `json:"type" gorm:"type:text;not null"`
	// StaffID is the bound recipient for INDIVIDUAL codes, nil for TEAM.
	StaffID    *snowflake.ID `json:"staff_id"`
	Label      string        `json:"label" gorm:"type:text"`
	Recipients []Recipient   `json:"recipients" gorm:"-"`
	CreatedAt  time.Time     `json:"created_at" gorm:"not null"`
	UpdatedAt  time.Time     `json:"updated_at" gorm:"not null"`
}

func (QRCode) TableName() string { return "qr_codes" }

// Recipient restricts which staff a guest may pick on a TEAM code.
// A TEAM code with no recipient rows accepts any active venue staff.
type Recipient struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	QRCodeID  snowflake.ID `json:"qr_code_id" gorm:"not null;uniqueIndex:idx_qr_staff"`
	StaffID   snowflake.ID `json:"staff_id" gorm:"not null;uniqueIndex:idx_qr_staff"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
}

func (Recipient) TableName() string { return "qr_code_recipients" }

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, code *QRCode) error
	// FindByID loads the code along with its recipient rows.
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*QRCode, error)
	AddRecipient(ctx context.Context, db *gorm.DB, recipient *Recipient) error
}
