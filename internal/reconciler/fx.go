package reconciler

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tipdrop/tipdrop/internal/config"
	"github.com/tipdrop/tipdrop/internal/observability/metrics"
	tipdomain "github.com/tipdrop/tipdrop/internal/tip/domain"
	venuedomain "github.com/tipdrop/tipdrop/internal/venue/domain"
	webhookdomain "github.com/tipdrop/tipdrop/internal/webhook/domain"
)

var Module = fx.Module("reconciler",
	fx.Provide(provide),
	fx.Invoke(register),
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Cfg        config.Config
	Log        *zap.Logger
	Tips       tipdomain.Repository
	VenueSvc   venuedomain.Service
	WebhookSvc webhookdomain.Service
	Metrics    *metrics.Metrics
	Status     StatusFunc `optional:"true"`
}

func provide(p Params) *Reconciler {
	return New(p.DB, p.Cfg, p.Log, p.Tips, p.VenueSvc, p.WebhookSvc, p.Metrics, p.Status)
}

func register(lc fx.Lifecycle, cfg config.Config, r *Reconciler) {
	if !cfg.Reconcile.Enabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go r.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
