package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tipdrop/tipdrop/internal/config"
	"github.com/tipdrop/tipdrop/internal/gateway"
	qrdomain "github.com/tipdrop/tipdrop/internal/qrcode/domain"
	qrrepo "github.com/tipdrop/tipdrop/internal/qrcode/repository"
	staffdomain "github.com/tipdrop/tipdrop/internal/staff/domain"
	staffrepo "github.com/tipdrop/tipdrop/internal/staff/repository"
	tipdomain "github.com/tipdrop/tipdrop/internal/tip/domain"
	tiprepo "github.com/tipdrop/tipdrop/internal/tip/repository"
	tipservice "github.com/tipdrop/tipdrop/internal/tip/service"
	"github.com/tipdrop/tipdrop/internal/vault"
	venuedomain "github.com/tipdrop/tipdrop/internal/venue/domain"
	venuerepo "github.com/tipdrop/tipdrop/internal/venue/repository"
	venueservice "github.com/tipdrop/tipdrop/internal/venue/service"
)

type fixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	staff    staffdomain.Repository
	qr       qrdomain.Repository
	venueSvc venuedomain.Service
	venueID  snowflake.ID
	charges  []chargeCall
}

type chargeCall struct {
	orderID string
	gross   int64
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_tip_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	schema := []string{
		`CREATE TABLE venues (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			slug TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			environment TEXT NOT NULL DEFAULT 'sandbox',
			merchant_id TEXT,
			server_key TEXT,
			client_key TEXT,
			midtrans_connected BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
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
		`CREATE TABLE qr_codes (
			id BIGINT PRIMARY KEY,
			venue_id BIGINT NOT NULL,
			type TEXT NOT NULL,
			staff_id BIGINT,
			label TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE qr_code_recipients (
			id BIGINT PRIMARY KEY,
			qr_code_id BIGINT NOT NULL,
			staff_id BIGINT NOT NULL,
			created_at DATETIME NOT NULL,
			UNIQUE (qr_code_id, staff_id)
		)`,
		`CREATE TABLE tips (
			id BIGINT PRIMARY KEY,
			venue_id BIGINT NOT NULL,
			qr_code_id BIGINT NOT NULL,
			staff_id BIGINT,
			type TEXT NOT NULL DEFAULT 'PERSONAL',
			order_id TEXT NOT NULL,
			amount BIGINT NOT NULL,
			platform_fee BIGINT NOT NULL,
			net_amount BIGINT NOT NULL,
			gross_amount BIGINT NOT NULL,
			status TEXT NOT NULL,
			allocation_state TEXT NOT NULL DEFAULT '',
			guest_name TEXT,
			message TEXT,
			transaction_id TEXT,
			payment_type TEXT,
			transaction_time DATETIME,
			settled_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_tips_order_id ON tips(order_id)`,
	}
	for _, stmt := range schema {
		require.NoError(t, db.Exec(stmt).Error)
	}

	return db
}

func newFixture(t *testing.T, nodeID int64) *fixture {
	t.Helper()

	db := setupTestDB(t)
	node, err := snowflake.NewNode(nodeID)
	require.NoError(t, err)

	credVault, err := vault.New("tip-test-secret")
	require.NoError(t, err)

	venueSvc := venueservice.New(venueservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  venuerepo.Provide(),
		Vault: credVault,
	})

	ctx := context.Background()
	venue, err := venueSvc.Create(ctx, venuedomain.CreateVenueRequest{Name: "Kafe Tester"})
	require.NoError(t, err)
	require.NoError(t, venueSvc.UpsertCredentials(ctx, venue.ID, venuedomain.UpsertCredentialsRequest{
		ServerKey: "SB-Mid-server-test",
		ClientKey: "SB-Mid-client-test",
	}))

	return &fixture{
		db:       db,
		node:     node,
		staff:    staffrepo.Provide(),
		qr:       qrrepo.Provide(),
		venueSvc: venueSvc,
		venueID:  venue.ID,
	}
}

func (f *fixture) newService(t *testing.T, policy config.FeePolicy, charge tipservice.ChargeFunc) tipdomain.Service {
	t.Helper()

	if charge == nil {
		charge = f.recordingCharge()
	}
	return tipservice.New(tipservice.Params{
		DB:       f.db,
		Log:      zap.NewNop(),
		GenID:    f.node,
		Repo:     tiprepo.Provide(),
		QRRepo:   f.qr,
		Staff:    f.staff,
		VenueSvc: f.venueSvc,
		Fees:     config.StaticFeePolicyHolder(policy),
		Charge:   charge,
	})
}

func (f *fixture) recordingCharge() tipservice.ChargeFunc {
	return func(_ context.Context, creds gateway.Credentials, orderID string, gross int64) (*gateway.ChargeResult, error) {
		f.charges = append(f.charges, chargeCall{orderID: orderID, gross: gross})
		return &gateway.ChargeResult{
			TransactionID: "mt-" + orderID,
			QRString:      "qr-payload",
			QRCodeURL:     "https://api.sandbox.midtrans.com/qr/" + orderID,
			ExpiryTime:    "2026-08-31 12:00:00",
		}, nil
	}
}

func (f *fixture) seedStaff(t *testing.T, name string, inPool bool) snowflake.ID {
	t.Helper()

	now := time.Now().UTC()
	member := &staffdomain.Staff{
		ID:        f.node.Generate(),
		VenueID:   f.venueID,
		Name:      name,
		Status:    staffdomain.StatusActive,
		InPool:    inPool,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.staff.Insert(context.Background(), f.db, member))
	return member.ID
}

func (f *fixture) seedQRCode(t *testing.T, codeType qrdomain.Type, staffID *snowflake.ID, recipients ...snowflake.ID) snowflake.ID {
	t.Helper()

	now := time.Now().UTC()
	code := &qrdomain.QRCode{
		ID:        f.node.Generate(),
		VenueID:   f.venueID,
		Type:      codeType,
		StaffID:   staffID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.qr.Insert(context.Background(), f.db, code))
	for _, rid := range recipients {
		require.NoError(t, f.qr.AddRecipient(context.Background(), f.db, &qrdomain.Recipient{
			ID:        f.node.Generate(),
			QRCodeID:  code.ID,
			StaffID:   rid,
			CreatedAt: now,
		}))
	}
	return code.ID
}

func TestCreateTipDeductsPlatformFee(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 40)
	codeID := f.seedQRCode(t, qrdomain.TypeTeam, nil)

	svc := f.newService(t, config.FeePolicy{
		PlatformFeePercent: 5,
		MinAmount:          1_000,
		MaxAmount:          10_000_000,
	}, nil)

	resp, err := svc.Create(ctx, tipdomain.CreateTipRequest{
		QRCodeID:  codeID.String(),
		Amount:    10_000,
		GuestName: "Dewi",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(10_000), resp.Tip.Amount)
	assert.Equal(t, int64(500), resp.Tip.PlatformFee)
	assert.Equal(t, int64(9_500), resp.Tip.NetAmount)
	assert.Equal(t, int64(10_000), resp.Tip.GrossAmount)
	assert.Equal(t, tipdomain.StatusPending, resp.Tip.Status)
	assert.Equal(t, tipdomain.TypePersonal, resp.Tip.Type)
	assert.Nil(t, resp.Tip.StaffID)
	assert.Equal(t, "qr-payload", resp.QRString)
	assert.Equal(t, "mt-"+resp.Tip.OrderID, resp.Tip.TransactionID)

	require.Len(t, f.charges, 1)
	assert.Equal(t, int64(10_000), f.charges[0].gross)
	assert.True(t, strings.HasPrefix(resp.Tip.OrderID, "TIP-"), "order id %q", resp.Tip.OrderID)
}

func TestCreateTipGuestPaysFee(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 41)
	codeID := f.seedQRCode(t, qrdomain.TypeTeam, nil)

	svc := f.newService(t, config.FeePolicy{
		PlatformFeePercent: 10,
		GuestPaysFee:       true,
		MinAmount:          1_000,
	}, nil)

	resp, err := svc.Create(ctx, tipdomain.CreateTipRequest{
		QRCodeID: codeID.String(),
		Amount:   10_000,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1_000), resp.Tip.PlatformFee)
	assert.Equal(t, int64(10_000), resp.Tip.NetAmount)
	assert.Equal(t, int64(11_000), resp.Tip.GrossAmount)

	require.Len(t, f.charges, 1)
	assert.Equal(t, int64(11_000), f.charges[0].gross)
}

func TestCreateTipAmountBounds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 42)
	codeID := f.seedQRCode(t, qrdomain.TypeTeam, nil)

	svc := f.newService(t, config.FeePolicy{
		PlatformFeePercent: 5,
		MinAmount:          1_000,
		MaxAmount:          50_000,
	}, nil)

	_, err := svc.Create(ctx, tipdomain.CreateTipRequest{QRCodeID: codeID.String(), Amount: 500})
	require.ErrorIs(t, err, tipdomain.ErrInvalidAmount)

	_, err = svc.Create(ctx, tipdomain.CreateTipRequest{QRCodeID: codeID.String(), Amount: 60_000})
	require.ErrorIs(t, err, tipdomain.ErrInvalidAmount)

	assert.Empty(t, f.charges)
}

func TestCreateTipIndividualCodeFreezesRecipient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 43)
	bound := f.seedStaff(t, "Ayu", true)
	codeID := f.seedQRCode(t, qrdomain.TypeIndividual, &bound)

	svc := f.newService(t, config.FeePolicy{PlatformFeePercent: 5, MinAmount: 1_000}, nil)

	resp, err := svc.Create(ctx, tipdomain.CreateTipRequest{
		QRCodeID: codeID.String(),
		Amount:   5_000,
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Tip.StaffID)
	assert.Equal(t, bound, *resp.Tip.StaffID)
}

func TestCreateTipGuestPickOutsideRecipientsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 44)
	allowed := f.seedStaff(t, "Ayu", true)
	outsider := f.seedStaff(t, "Budi", true)
	codeID := f.seedQRCode(t, qrdomain.TypeTeam, nil, allowed)

	svc := f.newService(t, config.FeePolicy{PlatformFeePercent: 5, MinAmount: 1_000}, nil)

	_, err := svc.Create(ctx, tipdomain.CreateTipRequest{
		QRCodeID: codeID.String(),
		StaffID:  outsider.String(),
		Amount:   5_000,
	})
	require.ErrorIs(t, err, tipdomain.ErrInvalidRecipient)

	resp, err := svc.Create(ctx, tipdomain.CreateTipRequest{
		QRCodeID: codeID.String(),
		StaffID:  allowed.String(),
		Amount:   5_000,
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Tip.StaffID)
	assert.Equal(t, allowed, *resp.Tip.StaffID)
}

func TestCreateTipBlockedVenue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 45)
	codeID := f.seedQRCode(t, qrdomain.TypeTeam, nil)

	require.NoError(t, f.db.Exec(
		`UPDATE venues SET status = ? WHERE id = ?`,
		venuedomain.StatusBlocked, f.venueID,
	).Error)

	svc := f.newService(t, config.FeePolicy{PlatformFeePercent: 5, MinAmount: 1_000}, nil)

	_, err := svc.Create(ctx, tipdomain.CreateTipRequest{QRCodeID: codeID.String(), Amount: 5_000})
	require.ErrorIs(t, err, venuedomain.ErrBlocked)
	assert.Empty(t, f.charges)
}

func TestCreateTipChargeFailureMarksTipFailed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 46)
	codeID := f.seedQRCode(t, qrdomain.TypeTeam, nil)

	svc := f.newService(t, config.FeePolicy{PlatformFeePercent: 5, MinAmount: 1_000},
		func(context.Context, gateway.Credentials, string, int64) (*gateway.ChargeResult, error) {
			return nil, errors.New("gateway unreachable")
		})

	_, err := svc.Create(ctx, tipdomain.CreateTipRequest{QRCodeID: codeID.String(), Amount: 5_000})
	require.ErrorIs(t, err, tipdomain.ErrChargeFailed)

	var status string
	require.NoError(t, f.db.Raw(`SELECT status FROM tips LIMIT 1`).Scan(&status).Error)
	assert.Equal(t, string(tipdomain.StatusFailed), status)
}

func TestGetByOrderID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 47)
	codeID := f.seedQRCode(t, qrdomain.TypeTeam, nil)

	svc := f.newService(t, config.FeePolicy{PlatformFeePercent: 5, MinAmount: 1_000}, nil)

	resp, err := svc.Create(ctx, tipdomain.CreateTipRequest{QRCodeID: codeID.String(), Amount: 5_000})
	require.NoError(t, err)

	found, err := svc.GetByOrderID(ctx, resp.Tip.OrderID)
	require.NoError(t, err)
	assert.Equal(t, resp.Tip.ID, found.ID)

	_, err = svc.GetByOrderID(ctx, "TIP-MISSING")
	require.ErrorIs(t, err, tipdomain.ErrNotFound)
}
