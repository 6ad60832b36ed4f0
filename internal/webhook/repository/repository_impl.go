package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/tipdrop/tipdrop/internal/webhook/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, logRow *domain.Log) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO webhook_logs (id, order_id, source, payload, processed, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		logRow.ID,
		logRow.OrderID,
		logRow.Source,
		logRow.Payload,
		logRow.Processed,
		logRow.Error,
		logRow.CreatedAt,
		logRow.UpdatedAt,
	).Error
}

func (r *repo) MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, note string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE webhook_logs SET processed = ?, error = ?, updated_at = ? WHERE id = ?`,
		true,
		note,
		time.Now().UTC(),
		id,
	).Error
}

// MarkFailed records the error but leaves the row unprocessed so a retry
// of the same delivery is visible as a fresh attempt.
func (r *repo) MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, processingErr string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE webhook_logs SET error = ?, updated_at = ? WHERE id = ?`,
		processingErr,
		time.Now().UTC(),
		id,
	).Error
}
