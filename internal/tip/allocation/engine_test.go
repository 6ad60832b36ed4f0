package allocation_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	staffdomain "github.com/tipdrop/tipdrop/internal/staff/domain"
	staffrepo "github.com/tipdrop/tipdrop/internal/staff/repository"
	"github.com/tipdrop/tipdrop/internal/tip/allocation"
	tipdomain "github.com/tipdrop/tipdrop/internal/tip/domain"
	tiprepo "github.com/tipdrop/tipdrop/internal/tip/repository"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_alloc_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	schema := []string{
		`CREATE TABLE staff (
			id BIGINT PRIMARY KEY,
			venue_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'ACTIVE',
			in_pool BOOLEAN NOT NULL DEFAULT TRUE,
			balance BIGINT NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE tip_allocations (
			id BIGINT PRIMARY KEY,
			tip_id BIGINT NOT NULL,
			staff_id BIGINT NOT NULL,
			venue_id BIGINT NOT NULL,
			amount BIGINT NOT NULL,
			date DATETIME NOT NULL,
			payout_id BIGINT,
			created_at DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_tip_allocations_tip_staff ON tip_allocations(tip_id, staff_id)`,
	}
	for _, stmt := range schema {
		require.NoError(t, db.Exec(stmt).Error)
	}

	return db
}

func seedStaff(t *testing.T, db *gorm.DB, repo staffdomain.Repository, node *snowflake.Node, venueID snowflake.ID, name string, inPool bool) snowflake.ID {
	t.Helper()

	now := time.Now().UTC()
	member := &staffdomain.Staff{
		ID:        node.Generate(),
		VenueID:   venueID,
		Name:      name,
		Status:    staffdomain.StatusActive,
		InPool:    inPool,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, repo.Insert(context.Background(), db, member))
	return member.ID
}

func balanceOf(t *testing.T, db *gorm.DB, staffID snowflake.ID) int64 {
	t.Helper()

	var balance int64
	require.NoError(t, db.Raw(`SELECT balance FROM staff WHERE id = ?`, staffID).Scan(&balance).Error)
	return balance
}

func TestAllocatePoolSplitsWithRemainder(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	node, err := snowflake.NewNode(20)
	require.NoError(t, err)

	staff := staffrepo.Provide()
	tips := tiprepo.Provide()
	engine := allocation.NewEngine(tips, staff, node, zap.NewNop())

	venueID := node.Generate()
	first := seedStaff(t, db, staff, node, venueID, "Ayu", true)
	second := seedStaff(t, db, staff, node, venueID, "Budi", true)
	third := seedStaff(t, db, staff, node, venueID, "Citra", true)

	tip := &tipdomain.Tip{
		ID:        node.Generate(),
		VenueID:   venueID,
		OrderID:   "TIP-TEST-POOL",
		NetAmount: 100,
	}

	state, err := engine.Allocate(ctx, db, tip)
	require.NoError(t, err)
	assert.Equal(t, tipdomain.AllocationDone, state)

	var amounts []int64
	require.NoError(t, db.Raw(
		`SELECT amount FROM tip_allocations WHERE tip_id = ? ORDER BY staff_id`,
		tip.ID,
	).Scan(&amounts).Error)
	require.Len(t, amounts, 3)

	var sum int64
	for _, a := range amounts {
		sum += a
	}
	assert.Equal(t, tip.NetAmount, sum)

	// Snowflake ids are monotonic, so the first-seeded member absorbs the
	// remainder.
	assert.Equal(t, int64(34), balanceOf(t, db, first))
	assert.Equal(t, int64(33), balanceOf(t, db, second))
	assert.Equal(t, int64(33), balanceOf(t, db, third))
}

func TestAllocateDirectRecipientGetsFullNet(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	node, err := snowflake.NewNode(21)
	require.NoError(t, err)

	staff := staffrepo.Provide()
	tips := tiprepo.Provide()
	engine := allocation.NewEngine(tips, staff, node, zap.NewNop())

	venueID := node.Generate()
	bound := seedStaff(t, db, staff, node, venueID, "Ayu", true)
	seedStaff(t, db, staff, node, venueID, "Budi", true)

	tip := &tipdomain.Tip{
		ID:        node.Generate(),
		VenueID:   venueID,
		StaffID:   &bound,
		OrderID:   "TIP-TEST-DIRECT",
		NetAmount: 9_500,
	}

	state, err := engine.Allocate(ctx, db, tip)
	require.NoError(t, err)
	assert.Equal(t, tipdomain.AllocationDone, state)

	var count int64
	require.NoError(t, db.Raw(`SELECT COUNT(1) FROM tip_allocations WHERE tip_id = ?`, tip.ID).Scan(&count).Error)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, int64(9_500), balanceOf(t, db, bound))

	var allocDate time.Time
	require.NoError(t, db.Raw(`SELECT date FROM tip_allocations WHERE tip_id = ?`, tip.ID).Scan(&allocDate).Error)
	local := time.Now()
	wantDay := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	assert.True(t, allocDate.Equal(wantDay), "allocation dated %s, want local midnight %s", allocDate, wantDay)
}

func TestAllocateSkipsOptedOutStaff(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	node, err := snowflake.NewNode(22)
	require.NoError(t, err)

	staff := staffrepo.Provide()
	tips := tiprepo.Provide()
	engine := allocation.NewEngine(tips, staff, node, zap.NewNop())

	venueID := node.Generate()
	pooled := seedStaff(t, db, staff, node, venueID, "Ayu", true)
	optedOut := seedStaff(t, db, staff, node, venueID, "Budi", false)

	tip := &tipdomain.Tip{
		ID:        node.Generate(),
		VenueID:   venueID,
		OrderID:   "TIP-TEST-OPTOUT",
		NetAmount: 5_000,
	}

	state, err := engine.Allocate(ctx, db, tip)
	require.NoError(t, err)
	assert.Equal(t, tipdomain.AllocationDone, state)

	assert.Equal(t, int64(5_000), balanceOf(t, db, pooled))
	assert.Equal(t, int64(0), balanceOf(t, db, optedOut))
}

func TestAllocateEmptyPoolStrandsTip(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	node, err := snowflake.NewNode(23)
	require.NoError(t, err)

	staff := staffrepo.Provide()
	tips := tiprepo.Provide()
	engine := allocation.NewEngine(tips, staff, node, zap.NewNop())

	tip := &tipdomain.Tip{
		ID:        node.Generate(),
		VenueID:   node.Generate(),
		OrderID:   "TIP-TEST-STRANDED",
		NetAmount: 7_000,
	}

	state, err := engine.Allocate(ctx, db, tip)
	require.NoError(t, err)
	assert.Equal(t, tipdomain.AllocationStranded, state)

	var count int64
	require.NoError(t, db.Raw(`SELECT COUNT(1) FROM tip_allocations`).Scan(&count).Error)
	assert.Equal(t, int64(0), count)
}
