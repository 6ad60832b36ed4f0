package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tipdrop/tipdrop/internal/tip/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, tip *domain.Tip) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO tips (
			id, venue_id, qr_code_id, staff_id, type, order_id,
			amount, platform_fee, net_amount, gross_amount,
			status, allocation_state, guest_name, message,
			transaction_id, payment_type, transaction_time, settled_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tip.ID,
		tip.VenueID,
		tip.QRCodeID,
		tip.StaffID,
		tip.Type,
		tip.OrderID,
		tip.Amount,
		tip.PlatformFee,
		tip.NetAmount,
		tip.GrossAmount,
		tip.Status,
		tip.AllocationState,
		tip.GuestName,
		tip.Message,
		tip.TransactionID,
		tip.PaymentType,
		tip.TransactionTime,
		tip.SettledAt,
		tip.CreatedAt,
		tip.UpdatedAt,
	).Error
}

func (r *repo) FindByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*domain.Tip, error) {
	var item domain.Tip
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM tips WHERE order_id = ? LIMIT 1`,
		orderID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

// LockByOrderID takes a row lock so concurrent notifications for the same
// order serialize on the tip. Must run inside a transaction.
func (r *repo) LockByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*domain.Tip, error) {
	var item domain.Tip
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ?", orderID).
		Limit(1).
		Find(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, tip *domain.Tip) error {
	return db.WithContext(ctx).Exec(
		`UPDATE tips
		 SET status = ?, allocation_state = ?, transaction_id = ?, payment_type = ?,
			transaction_time = ?, settled_at = ?, updated_at = ?
		 WHERE id = ?`,
		tip.Status,
		tip.AllocationState,
		tip.TransactionID,
		tip.PaymentType,
		tip.TransactionTime,
		tip.SettledAt,
		tip.UpdatedAt,
		tip.ID,
	).Error
}

func (r *repo) InsertAllocations(ctx context.Context, db *gorm.DB, allocations []domain.Allocation) error {
	for i := range allocations {
		a := &allocations[i]
		err := db.WithContext(ctx).Exec(
			`INSERT INTO tip_allocations (id, tip_id, staff_id, venue_id, amount, date, payout_id, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID,
			a.TipID,
			a.StaffID,
			a.VenueID,
			a.Amount,
			a.Date,
			a.PayoutID,
			a.CreatedAt,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) ListStale(ctx context.Context, db *gorm.DB, olderThan time.Time, limit int) ([]domain.Tip, error) {
	var items []domain.Tip
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM tips
		 WHERE status = ? AND created_at < ?
		 ORDER BY created_at
		 LIMIT ?`,
		domain.StatusPending,
		olderThan,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
