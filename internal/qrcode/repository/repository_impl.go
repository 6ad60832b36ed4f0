package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/tipdrop/tipdrop/internal/qrcode/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, code *domain.QRCode) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO qr_codes (
			id, venue_id, type, staff_id, label, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		code.ID,
		code.VenueID,
		code.Type,
		code.StaffID,
		code.Label,
		code.CreatedAt,
		code.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.QRCode, error) {
	var item domain.QRCode
	err := db.WithContext(ctx).Raw(
		`SELECT id, venue_id, type, staff_id, label, created_at, updated_at
		 FROM qr_codes
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}

	err = db.WithContext(ctx).Raw(
		`SELECT id, qr_code_id, staff_id, created_at
		 FROM qr_code_recipients
		 WHERE qr_code_id = ?
		 ORDER BY staff_id`,
		id,
	).Scan(&item.Recipients).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repo) AddRecipient(ctx context.Context, db *gorm.DB, recipient *domain.Recipient) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO qr_code_recipients (id, qr_code_id, staff_id, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (qr_code_id, staff_id) DO NOTHING`,
		recipient.ID,
		recipient.QRCodeID,
		recipient.StaffID,
		recipient.CreatedAt,
	).Error
}
