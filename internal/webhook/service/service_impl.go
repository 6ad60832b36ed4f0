package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tipdrop/tipdrop/internal/gateway"
	"github.com/tipdrop/tipdrop/internal/observability/metrics"
	"github.com/tipdrop/tipdrop/internal/tip/allocation"
	tipdomain "github.com/tipdrop/tipdrop/internal/tip/domain"
	venuedomain "github.com/tipdrop/tipdrop/internal/venue/domain"
	"github.com/tipdrop/tipdrop/internal/webhook/domain"
)

// Midtrans reports transaction_time in Jakarta local time.
var jakarta = time.FixedZone("WIB", 7*3600)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Tips     tipdomain.Repository
	VenueSvc venuedomain.Service
	Alloc    *allocation.Engine
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	tips     tipdomain.Repository
	venueSvc venuedomain.Service
	alloc    *allocation.Engine
	metrics  *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("webhook.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		tips:     p.Tips,
		venueSvc: p.VenueSvc,
		alloc:    p.Alloc,
		metrics:  p.Metrics,
	}
}

// ProcessNotification handles one gateway delivery. The audit row is
// written before anything else so even rejected deliveries leave a trace.
// Unknown orders acknowledge without side effects; the gateway fans the
// same endpoint out to every event, including ones this service never
// initiated. Any error returned here tells the transport layer to answer
// non-2xx so the gateway retries.
func (s *Service) ProcessNotification(ctx context.Context, payload []byte) error {
	var note domain.Notification
	if err := json.Unmarshal(payload, &note); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if strings.TrimSpace(note.OrderID) == "" {
		return fmt.Errorf("%w: missing order_id", domain.ErrInvalidPayload)
	}

	logRow, err := s.audit(ctx, domain.SourceWebhook, note.OrderID, payload)
	if err != nil {
		return fmt.Errorf("audit notification: %w", err)
	}

	tip, err := s.tips.FindByOrderID(ctx, s.db, note.OrderID)
	if err != nil {
		return s.fail(ctx, logRow, err)
	}
	if tip == nil {
		s.log.Info("notification for unknown order acknowledged",
			zap.String("order_id", note.OrderID),
		)
		s.record(ctx, "unknown_order")
		return s.done(ctx, logRow, "unknown order id")
	}

	creds, err := s.venueSvc.Credentials(ctx, tip.VenueID)
	if err != nil {
		return s.fail(ctx, logRow, err)
	}
	if !gateway.VerifySignature(note.OrderID, note.StatusCode, note.GrossAmount, creds.ServerKey, note.SignatureKey) {
		s.log.Warn("notification signature mismatch",
			zap.String("order_id", note.OrderID),
			zap.String("status_code", note.StatusCode),
		)
		s.record(ctx, "signature_rejected")
		_ = s.repo.MarkProcessed(ctx, s.db, logRow.ID, "signature mismatch")
		return domain.ErrInvalidSignature
	}

	if err := s.settle(ctx, note); err != nil {
		return s.fail(ctx, logRow, err)
	}
	s.record(ctx, "processed")
	return s.done(ctx, logRow, "")
}

// SyncStatus is the operator fallback for lost webhooks. Authentication
// happens at the transport layer; everything past the signature check is
// identical to the webhook path.
func (s *Service) SyncStatus(ctx context.Context, orderID string, req domain.SyncStatusRequest) error {
	tip, err := s.tips.FindByOrderID(ctx, s.db, orderID)
	if err != nil {
		return err
	}
	if tip == nil {
		return tipdomain.ErrNotFound
	}

	note := domain.Notification{
		OrderID:           orderID,
		TransactionStatus: req.TransactionStatus,
		FraudStatus:       req.FraudStatus,
		TransactionID:     req.TransactionID,
		PaymentType:       req.PaymentType,
		TransactionTime:   req.TransactionTime,
	}
	payload, err := json.Marshal(note)
	if err != nil {
		return err
	}
	logRow, err := s.audit(ctx, domain.SourceSync, orderID, payload)
	if err != nil {
		return fmt.Errorf("audit sync: %w", err)
	}

	if err := s.settle(ctx, note); err != nil {
		return s.fail(ctx, logRow, err)
	}
	s.record(ctx, "synced")
	return s.done(ctx, logRow, "")
}

// settle applies the status transition and, on payment, the allocation, in
// one transaction. The row lock plus the terminal-status gate make retried
// deliveries no-ops: money moves at most once per tip.
func (s *Service) settle(ctx context.Context, note domain.Notification) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		tip, err := s.tips.LockByOrderID(ctx, tx, note.OrderID)
		if err != nil {
			return err
		}
		if tip == nil {
			return tipdomain.ErrNotFound
		}
		if tip.Status.Terminal() {
			s.log.Info("notification for settled tip ignored",
				zap.String("order_id", tip.OrderID),
				zap.String("status", string(tip.Status)),
			)
			return nil
		}

		now := time.Now().UTC()
		next := tipdomain.MapTransactionStatus(note.TransactionStatus, note.FraudStatus)

		tip.Status = next
		if note.TransactionID != "" {
			tip.TransactionID = note.TransactionID
		}
		if note.PaymentType != "" {
			tip.PaymentType = note.PaymentType
		}
		if ts := parseTransactionTime(note.TransactionTime); ts != nil {
			tip.TransactionTime = ts
		}
		tip.UpdatedAt = now

		if next == tipdomain.StatusPaid {
			tip.SettledAt = &now
			state, err := s.alloc.Allocate(ctx, tx, tip)
			if err != nil {
				return err
			}
			tip.AllocationState = state
			if state == tipdomain.AllocationStranded && s.metrics != nil {
				s.metrics.RecordStrandedTip(ctx)
			}
		}

		if err := s.tips.Update(ctx, tx, tip); err != nil {
			return err
		}

		if next.Terminal() && s.metrics != nil {
			s.metrics.RecordTipSettled(ctx, string(next))
		}
		s.log.Info("tip status applied",
			zap.String("order_id", tip.OrderID),
			zap.String("status", string(next)),
			zap.String("allocation_state", string(tip.AllocationState)),
		)
		return nil
	})
}

func (s *Service) audit(ctx context.Context, source, orderID string, payload []byte) (*domain.Log, error) {
	now := time.Now().UTC()
	logRow := &domain.Log{
		ID:        s.genID.Generate(),
		OrderID:   orderID,
		Source:    source,
		Payload:   payload,
		Processed: false,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, logRow); err != nil {
		return nil, err
	}
	return logRow, nil
}

func (s *Service) done(ctx context.Context, logRow *domain.Log, note string) error {
	if err := s.repo.MarkProcessed(ctx, s.db, logRow.ID, note); err != nil {
		s.log.Error("mark webhook log processed", zap.Error(err))
	}
	return nil
}

func (s *Service) fail(ctx context.Context, logRow *domain.Log, cause error) error {
	if err := s.repo.MarkFailed(ctx, s.db, logRow.ID, cause.Error()); err != nil {
		s.log.Error("mark webhook log failed", zap.Error(err))
	}
	s.record(ctx, "error")
	return cause
}

func (s *Service) record(ctx context.Context, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordWebhookEvent(ctx, outcome)
	}
}

func parseTransactionTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	ts, err := time.ParseInLocation("2006-01-02 15:04:05", raw, jakarta)
	if err != nil {
		return nil
	}
	utc := ts.UTC()
	return &utc
}
