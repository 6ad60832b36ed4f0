package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tipdrop/tipdrop/internal/payout/domain"
	venuedomain "github.com/tipdrop/tipdrop/internal/venue/domain"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	VenueSvc venuedomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	venueSvc venuedomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("payout.service"),
		genID:    p.GenID,
		venueSvc: p.VenueSvc,
	}
}

type unpaidRow struct {
	ID      snowflake.ID
	StaffID snowflake.ID
	Amount  int64
}

// CreatePayout closes out every unpaid allocation for the venue in one
// transaction: allocations get the payout id, balances drop by exactly
// what was paid out. Tips that settle mid-payout keep their allocations
// for the next run because the row lock only covers unpaid rows.
func (s *Service) CreatePayout(ctx context.Context, venueID snowflake.ID) (*domain.Payout, error) {
	if _, err := s.venueSvc.Get(ctx, venueID); err != nil {
		return nil, err
	}

	var payout *domain.Payout
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var rows []unpaidRow
		err := tx.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Table("tip_allocations").
			Select("id", "staff_id", "amount").
			Where("venue_id = ? AND payout_id IS NULL", venueID).
			Find(&rows).Error
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return domain.ErrNothingToPay
		}

		var total int64
		perStaff := make(map[snowflake.ID]int64)
		ids := make([]snowflake.ID, 0, len(rows))
		for _, row := range rows {
			total += row.Amount
			perStaff[row.StaffID] += row.Amount
			ids = append(ids, row.ID)
		}

		now := time.Now().UTC()
		payout = &domain.Payout{
			ID:        s.genID.Generate(),
			VenueID:   venueID,
			Reference: ulid.Make().String(),
			Total:     total,
			CreatedAt: now,
		}
		err = tx.WithContext(ctx).Exec(
			`INSERT INTO payouts (id, venue_id, reference, total, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			payout.ID, payout.VenueID, payout.Reference, payout.Total, payout.CreatedAt,
		).Error
		if err != nil {
			return err
		}

		err = tx.WithContext(ctx).
			Table("tip_allocations").
			Where("id IN ?", ids).
			Update("payout_id", payout.ID).Error
		if err != nil {
			return err
		}

		for staffID, amount := range perStaff {
			err = tx.WithContext(ctx).Exec(
				`UPDATE staff SET balance = balance - ?, updated_at = ? WHERE id = ?`,
				amount, now, staffID,
			).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("payout created",
		zap.String("venue_id", venueID.String()),
		zap.String("reference", payout.Reference),
		zap.Int64("total", payout.Total),
	)
	return payout, nil
}
