package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tipdrop/tipdrop/internal/config"
	"github.com/tipdrop/tipdrop/internal/gateway"
	qrdomain "github.com/tipdrop/tipdrop/internal/qrcode/domain"
	staffdomain "github.com/tipdrop/tipdrop/internal/staff/domain"
	"github.com/tipdrop/tipdrop/internal/tip/domain"
	venuedomain "github.com/tipdrop/tipdrop/internal/venue/domain"
)

// ChargeFunc opens a QRIS payment with the gateway. Indirection so tests
// run without calling Midtrans.
type ChargeFunc func(ctx context.Context, creds gateway.Credentials, orderID string, grossAmount int64) (*gateway.ChargeResult, error)

func DefaultCharge(ctx context.Context, creds gateway.Credentials, orderID string, grossAmount int64) (*gateway.ChargeResult, error) {
	return gateway.NewClient(creds).ChargeQRIS(ctx, orderID, grossAmount)
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	QRRepo   qrdomain.Repository
	Staff    staffdomain.Repository
	VenueSvc venuedomain.Service
	Fees     *config.FeePolicyHolder
	Charge   ChargeFunc `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	qrRepo   qrdomain.Repository
	staff    staffdomain.Repository
	venueSvc venuedomain.Service
	fees     *config.FeePolicyHolder
	charge   ChargeFunc
}

func New(p Params) domain.Service {
	charge := p.Charge
	if charge == nil {
		charge = DefaultCharge
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("tip.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		qrRepo:   p.QRRepo,
		staff:    p.Staff,
		venueSvc: p.VenueSvc,
		fees:     p.Fees,
		charge:   charge,
	}
}

// Create opens a tip: resolves the recipient once, carves out the platform
// fee, persists the tip as pending and charges the gateway. The recipient
// decision is frozen here; staff churn after this point does not move the
// money.
func (s *Service) Create(ctx context.Context, req domain.CreateTipRequest) (*domain.CreateTipResponse, error) {
	policy := s.fees.Get()
	if req.Amount < policy.MinAmount || (policy.MaxAmount > 0 && req.Amount > policy.MaxAmount) {
		return nil, fmt.Errorf("%w: amount %d outside [%d, %d]",
			domain.ErrInvalidAmount, req.Amount, policy.MinAmount, policy.MaxAmount)
	}

	qrID, err := snowflake.ParseString(req.QRCodeID)
	if err != nil {
		return nil, qrdomain.ErrNotFound
	}
	code, err := s.qrRepo.FindByID(ctx, s.db, qrID)
	if err != nil {
		return nil, err
	}
	if code == nil {
		return nil, qrdomain.ErrNotFound
	}

	venue, err := s.venueSvc.Get(ctx, code.VenueID)
	if err != nil {
		return nil, err
	}
	if venue.Status == venuedomain.StatusBlocked {
		return nil, venuedomain.ErrBlocked
	}

	guestPick, err := s.parseGuestPick(ctx, code, req.StaffID)
	if err != nil {
		return nil, err
	}
	recipient, err := qrdomain.ResolveRecipient(code, guestPick)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRecipient, err)
	}

	fee := platformFee(req.Amount, policy.PlatformFeePercent)
	net, gross := req.Amount-fee, req.Amount
	if policy.GuestPaysFee {
		net, gross = req.Amount, req.Amount+fee
	}

	now := time.Now().UTC()
	tip := &domain.Tip{
		ID:              s.genID.Generate(),
		VenueID:         venue.ID,
		QRCodeID:        code.ID,
		StaffID:         recipient,
		Type:            domain.TypePersonal,
		OrderID:         gateway.NewOrderID(venue.ID),
		Amount:          req.Amount,
		PlatformFee:     fee,
		NetAmount:       net,
		GrossAmount:     gross,
		Status:          domain.StatusPending,
		AllocationState: domain.AllocationNone,
		GuestName:       req.GuestName,
		Message:         req.Message,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Insert(ctx, s.db, tip); err != nil {
		return nil, err
	}

	creds, err := s.venueSvc.Credentials(ctx, venue.ID)
	if err != nil {
		return nil, err
	}
	charge, err := s.charge(ctx, creds, tip.OrderID, tip.GrossAmount)
	if err != nil {
		s.failTip(ctx, tip)
		return nil, fmt.Errorf("%w: %v", domain.ErrChargeFailed, err)
	}

	tip.TransactionID = charge.TransactionID
	tip.PaymentType = "qris"
	tip.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, tip); err != nil {
		return nil, err
	}

	s.log.Info("tip created",
		zap.String("order_id", tip.OrderID),
		zap.String("venue_id", venue.ID.String()),
		zap.Int64("amount", tip.Amount),
		zap.Bool("pooled", tip.StaffID == nil),
	)

	return &domain.CreateTipResponse{
		Tip:       tip,
		QRString:  charge.QRString,
		QRCodeURL: charge.QRCodeURL,
		ExpiresAt: charge.ExpiryTime,
	}, nil
}

func (s *Service) GetByOrderID(ctx context.Context, orderID string) (*domain.Tip, error) {
	tip, err := s.repo.FindByOrderID(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if tip == nil {
		return nil, domain.ErrNotFound
	}
	return tip, nil
}

func (s *Service) parseGuestPick(ctx context.Context, code *qrdomain.QRCode, raw string) (*snowflake.ID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return nil, domain.ErrInvalidRecipient
	}
	// Team codes without explicit recipients accept any active venue staff.
	if len(code.Recipients) == 0 {
		member, err := s.staff.IsVenueMember(ctx, s.db, code.VenueID, id)
		if err != nil {
			return nil, err
		}
		if !member {
			return nil, domain.ErrInvalidRecipient
		}
	}
	return &id, nil
}

func (s *Service) failTip(ctx context.Context, tip *domain.Tip) {
	tip.Status = domain.StatusFailed
	tip.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, tip); err != nil {
		s.log.Error("mark tip failed", zap.String("order_id", tip.OrderID), zap.Error(err))
	}
}

// platformFee floors so the fee never rounds up against the staff.
func platformFee(amount int64, percent float64) int64 {
	if percent <= 0 {
		return 0
	}
	return int64(float64(amount) * percent / 100)
}
