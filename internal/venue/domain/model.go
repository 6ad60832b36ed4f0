package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/tipdrop/tipdrop/internal/gateway"
)

const (
	StatusActive  = "active"
	StatusBlocked = "blocked"

	EnvironmentSandbox    = "sandbox"
	EnvironmentProduction = "production"
)

var (
	ErrNotFound = errors.New("venue not found")
	ErrBlocked  = errors.New("venue is blocked")
	// ErrPaymentConfig covers missing or undecryptable gateway credentials.
	ErrPaymentConfig = errors.New("payment configuration error")
)

type Venue struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	Name        string       `json:"name" gorm:"type:text;not null"`
	Slug        string       `json:"slug" gorm:"type:text;not null;uniqueIndex"`
	Status      string       `json:"status" gorm:"type:text;not null;default:active"`
	Environment string       `json:"environment" gorm:"type:text;not null;default:sandbox"`
	MerchantID  string       `json:"merchant_id" gorm:"type:text"`
	// ServerKey and ClientKey hold vault ciphertext. Rows migrated from
	// before encryption may still hold plaintext; reads tolerate both and
	// writes always re-encrypt.
	ServerKey string `json:"-" gorm:"type:text"`
	ClientKey string `json:"-" gorm:"type:text"`
	// MidtransConnected flips on once credentials have been stored.
	MidtransConnected bool      `json:"midtrans_connected" gorm:"not null;default:false"`
	CreatedAt         time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt         time.Time `json:"updated_at" gorm:"not null"`
}

func (Venue) TableName() string { return "venues" }

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, venue *Venue) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Venue, error)
	Update(ctx context.Context, db *gorm.DB, venue *Venue) error
}

type UpsertCredentialsRequest struct {
	ServerKey   string `json:"server_key" binding:"required"`
	ClientKey   string `json:"client_key" binding:"required"`
	MerchantID  string `json:"merchant_id"`
	Environment string `json:"environment"`
}

type CreateVenueRequest struct {
	Name string `json:"name" binding:"required"`
}

type Service interface {
	Create(ctx context.Context, req CreateVenueRequest) (*Venue, error)
	Get(ctx context.Context, id snowflake.ID) (*Venue, error)
	UpsertCredentials(ctx context.Context, id snowflake.ID, req UpsertCredentialsRequest) error
	// Credentials returns the decrypted gateway credentials for a venue.
	Credentials(ctx context.Context, id snowflake.ID) (gateway.Credentials, error)
}
