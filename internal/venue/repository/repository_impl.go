package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/tipdrop/tipdrop/internal/venue/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, venue *domain.Venue) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO venues (
			id, name, slug, status, environment, merchant_id,
			server_key, client_key, midtrans_connected, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		venue.ID,
		venue.Name,
		venue.Slug,
		venue.Status,
		venue.Environment,
		venue.MerchantID,
		venue.ServerKey,
		venue.ClientKey,
		venue.MidtransConnected,
		venue.CreatedAt,
		venue.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Venue, error) {
	var item domain.Venue
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, slug, status, environment, merchant_id,
			server_key, client_key, midtrans_connected, created_at, updated_at
		 FROM venues
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
	return &item, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, venue *domain.Venue) error {
	return db.WithContext(ctx).Exec(
		`UPDATE venues
		 SET name = ?, status = ?, environment = ?, merchant_id = ?,
			server_key = ?, client_key = ?, midtrans_connected = ?, updated_at = ?
		 WHERE id = ?`,
		venue.Name,
		venue.Status,
		venue.Environment,
		venue.MerchantID,
		venue.ServerKey,
		venue.ClientKey,
		venue.MidtransConnected,
		venue.UpdatedAt,
		venue.ID,
	).Error
}
