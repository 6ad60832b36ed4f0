package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/tipdrop/tipdrop/internal/staff/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, staff *domain.Staff) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO staff (
			id, venue_id, name, status, in_pool, balance, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		staff.ID,
		staff.VenueID,
		staff.Name,
		staff.Status,
		staff.InPool,
		staff.Balance,
		staff.CreatedAt,
		staff.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Staff, error) {
	var item domain.Staff
	err := db.WithContext(ctx).Raw(
		`SELECT id, venue_id, name, status, in_pool, balance, created_at, updated_at
		 FROM staff
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

func (r *repo) ListActivePool(ctx context.Context, db *gorm.DB, venueID snowflake.ID) ([]domain.Staff, error) {
	var items []domain.Staff
	err := db.WithContext(ctx).Raw(
		`SELECT id, venue_id, name, status, in_pool, balance, created_at, updated_at
		 FROM staff
		 WHERE venue_id = ? AND status = ? AND in_pool = ?
		 ORDER BY id`,
		venueID,
		domain.StatusActive,
		true,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) IsVenueMember(ctx context.Context, db *gorm.DB, venueID, staffID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM staff WHERE id = ? AND venue_id = ? AND status = ?`,
		staffID,
		venueID,
		domain.StatusActive,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) IncrementBalance(ctx context.Context, db *gorm.DB, staffID snowflake.ID, amount int64) error {
	return db.WithContext(ctx).Exec(
		`UPDATE staff SET balance = balance + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		amount,
		staffID,
	).Error
}

func (r *repo) ListBalances(ctx context.Context, db *gorm.DB, venueID snowflake.ID) ([]domain.BalanceRow, error) {
	var rows []domain.BalanceRow
	err := db.WithContext(ctx).Raw(
		`SELECT id AS staff_id, name, balance
		 FROM staff
		 WHERE venue_id = ?
		 ORDER BY name`,
		venueID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
