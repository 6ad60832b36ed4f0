package allocation

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"

	staffdomain "github.com/tipdrop/tipdrop/internal/staff/domain"
	"github.com/tipdrop/tipdrop/internal/tip/domain"
)

// Engine splits a paid tip's net amount across its recipients and credits
// staff balances. It only ever runs inside the settlement transaction, so
// a failure rolls back the status change along with the allocation rows.
type Engine struct {
	tips  domain.Repository
	staff staffdomain.Repository
	genID *snowflake.Node
	log   *zap.Logger
}

func NewEngine(tips domain.Repository, staff staffdomain.Repository, genID *snowflake.Node, log *zap.Logger) *Engine {
	return &Engine{
		tips:  tips,
		staff: staff,
		genID: genID,
		log:   log.Named("tip.allocation"),
	}
}

// Allocate writes allocation rows for tip and returns the resulting
// allocation state. A frozen recipient gets the whole net amount. Pooled
// tips split evenly with integer division; the first member by id absorbs
// the remainder so the shares always sum to the net amount exactly.
func (e *Engine) Allocate(ctx context.Context, tx *gorm.DB, tip *domain.Tip) (domain.AllocationState, error) {
	now := time.Now().UTC()
	day := dayOf(time.Now())

	if tip.StaffID != nil {
		alloc := domain.Allocation{
			ID:        e.genID.Generate(),
			TipID:     tip.ID,
			StaffID:   *tip.StaffID,
			VenueID:   tip.VenueID,
			Amount:    tip.NetAmount,
			Date:      day,
			CreatedAt: now,
		}
		if err := e.apply(ctx, tx, []domain.Allocation{alloc}); err != nil {
			return domain.AllocationNone, err
		}
		return domain.AllocationDone, nil
	}

	pool, err := e.staff.ListActivePool(ctx, tx, tip.VenueID)
	if err != nil {
		return domain.AllocationNone, fmt.Errorf("list pool: %w", err)
	}
	if len(pool) == 0 {
		e.log.Warn("paid tip has no pool to allocate to",
			zap.String("order_id", tip.OrderID),
			zap.String("venue_id", tip.VenueID.String()),
			zap.Int64("net_amount", tip.NetAmount),
		)
		return domain.AllocationStranded, nil
	}

	share := tip.NetAmount / int64(len(pool))
	remainder := tip.NetAmount - share*int64(len(pool))

	allocations := make([]domain.Allocation, 0, len(pool))
	for i, member := range pool {
		amount := share
		if i == 0 {
			amount += remainder
		}
		allocations = append(allocations, domain.Allocation{
			ID:        e.genID.Generate(),
			TipID:     tip.ID,
			StaffID:   member.ID,
			VenueID:   tip.VenueID,
			Amount:    amount,
			Date:      day,
			CreatedAt: now,
		})
	}
	if err := e.apply(ctx, tx, allocations); err != nil {
		return domain.AllocationNone, err
	}
	return domain.AllocationDone, nil
}

// dayOf truncates t to local midnight.
func dayOf(t time.Time) time.Time {
	t = t.Local()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func (e *Engine) apply(ctx context.Context, tx *gorm.DB, allocations []domain.Allocation) error {
	for _, a := range allocations {
		if err := e.staff.IncrementBalance(ctx, tx, a.StaffID, a.Amount); err != nil {
			return fmt.Errorf("credit staff %d: %w", a.StaffID, err)
		}
	}
	if err := e.tips.InsertAllocations(ctx, tx, allocations); err != nil {
		return fmt.Errorf("insert allocations: %w", err)
	}
	return nil
}
