package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	SourceWebhook = "webhook"
	SourceSync    = "sync"
)

var (
	ErrInvalidPayload   = errors.New("invalid notification payload")
	ErrInvalidSignature = errors.New("invalid notification signature")
)

// Log is the audit row written for every inbound notification before any
// business decision. Failed deliveries stay on record with their error.
type Log struct {
	ID        snowflake.ID   `json:"id" gorm:"primaryKey"`
	OrderID   string         `json:"order_id" gorm:"type:text;index"`
	Source    string         `json:"source" gorm:"type:text;not null;default:webhook"`
	Payload   datatypes.JSON `json:"payload" gorm:"type:jsonb;not null"`
	Processed bool           `json:"processed" gorm:"not null;default:false"`
	Error     string         `json:"error" gorm:"type:text"`
	CreatedAt time.Time      `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"not null"`
}

func (Log) TableName() string { return "webhook_logs" }

// Notification is the Midtrans payment notification payload. GrossAmount
// stays the raw string from the wire because the signature covers the
// exact formatting.
type Notification struct {
	OrderID           string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	PaymentType       string `json:"payment_type"`
	TransactionID     string `json:"transaction_id"`
	TransactionTime   string `json:"transaction_time"`
}

type SyncStatusRequest struct {
	TransactionStatus string `json:"transaction_status" binding:"required"`
	FraudStatus       string `json:"fraud_status"`
	TransactionID     string `json:"transaction_id"`
	PaymentType       string `json:"payment_type"`
	TransactionTime   string `json:"transaction_time"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, logRow *Log) error
	MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, note string) error
	MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, processingErr string) error
}

type Service interface {
	// ProcessNotification runs the full webhook pipeline for a raw payload.
	ProcessNotification(ctx context.Context, payload []byte) error
	// SyncStatus applies the same settlement semantics without signature
	// verification, for the operator-driven fallback.
	SyncStatus(ctx context.Context, orderID string, req SyncStatusRequest) error
}
