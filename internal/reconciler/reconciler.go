package reconciler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tipdrop/tipdrop/internal/config"
	"github.com/tipdrop/tipdrop/internal/gateway"
	"github.com/tipdrop/tipdrop/internal/observability/metrics"
	tipdomain "github.com/tipdrop/tipdrop/internal/tip/domain"
	venuedomain "github.com/tipdrop/tipdrop/internal/venue/domain"
	webhookdomain "github.com/tipdrop/tipdrop/internal/webhook/domain"
)

// StatusFunc fetches the current gateway status for an order. Indirection
// so tests run without calling Midtrans.
type StatusFunc func(ctx context.Context, creds gateway.Credentials, orderID string) (*gateway.StatusResult, error)

func DefaultStatus(ctx context.Context, creds gateway.Credentials, orderID string) (*gateway.StatusResult, error) {
	return gateway.NewClient(creds).TransactionStatus(ctx, orderID)
}

// Reconciler sweeps tips that have sat pending past the stale threshold and
// asks the gateway directly for their status. It covers the case where a
// notification was lost or the venue's callback URL was misconfigured.
type Reconciler struct {
	db         *gorm.DB
	cfg        config.ReconcileConfig
	log        *zap.Logger
	tips       tipdomain.Repository
	venueSvc   venuedomain.Service
	webhookSvc webhookdomain.Service
	metrics    *metrics.Metrics
	status     StatusFunc
}

func New(
	db *gorm.DB,
	cfg config.Config,
	log *zap.Logger,
	tips tipdomain.Repository,
	venueSvc venuedomain.Service,
	webhookSvc webhookdomain.Service,
	m *metrics.Metrics,
	status StatusFunc,
) *Reconciler {
	if status == nil {
		status = DefaultStatus
	}
	return &Reconciler{
		db:         db,
		cfg:        cfg.Reconcile,
		log:        log.Named("reconciler"),
		tips:       tips,
		venueSvc:   venueSvc,
		webhookSvc: webhookSvc,
		metrics:    m,
		status:     status,
	}
}

// RunForever sweeps on a fixed interval until the context is canceled.
func (r *Reconciler) RunForever(ctx context.Context) {
	interval := time.Duration(r.cfg.IntervalSecs) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := r.RunOnce(ctx); err != nil {
			r.log.Warn("reconcile sweep failed", zap.Error(err))
		}
	}
}

// RunOnce processes a single batch of stale pending tips. Per-tip failures
// are logged and skipped so one broken venue cannot stall the sweep.
func (r *Reconciler) RunOnce(ctx context.Context) error {
	cutoff := time.Now().Add(-time.Duration(r.cfg.StaleAfterSecs) * time.Second)
	stale, err := r.tips.ListStale(ctx, r.db, cutoff, r.cfg.BatchSize)
	if err != nil {
		r.metrics.RecordReconcileRun(ctx, "error")
		return err
	}
	if len(stale) == 0 {
		r.metrics.RecordReconcileRun(ctx, "empty")
		return nil
	}

	var synced, skipped int
	for i := range stale {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := r.reconcileTip(ctx, &stale[i]); err != nil {
			skipped++
			r.log.Warn("reconcile tip failed",
				zap.String("order_id", stale[i].OrderID),
				zap.Int64("venue_id", int64(stale[i].VenueID)),
				zap.Error(err),
			)
			continue
		}
		synced++
	}

	r.metrics.RecordReconcileRun(ctx, "ok")
	r.log.Info("reconcile sweep complete",
		zap.Int("stale", len(stale)),
		zap.Int("synced", synced),
		zap.Int("skipped", skipped),
	)
	return nil
}

func (r *Reconciler) reconcileTip(ctx context.Context, tip *tipdomain.Tip) error {
	creds, err := r.venueSvc.Credentials(ctx, tip.VenueID)
	if err != nil {
		return err
	}

	result, err := r.status(ctx, creds, tip.OrderID)
	if err != nil {
		return err
	}

	// A gateway status identical to ours means the tip is simply slow,
	// not out of sync.
	if tipdomain.MapTransactionStatus(result.TransactionStatus, result.FraudStatus) == tip.Status {
		return nil
	}

	err = r.webhookSvc.SyncStatus(ctx, tip.OrderID, webhookdomain.SyncStatusRequest{
		TransactionStatus: result.TransactionStatus,
		FraudStatus:       result.FraudStatus,
		TransactionID:     result.TransactionID,
		PaymentType:       result.PaymentType,
		TransactionTime:   result.TransactionTime,
	})
	if errors.Is(err, tipdomain.ErrNotFound) {
		// The tip was just listed, so a miss here means it raced with a
		// concurrent delete. Nothing to do.
		return nil
	}
	return err
}
