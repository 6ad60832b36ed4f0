package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tipdrop/tipdrop/internal/config"
	"github.com/tipdrop/tipdrop/internal/observability"
	obsmiddleware "github.com/tipdrop/tipdrop/internal/observability/logger"
	obsmetrics "github.com/tipdrop/tipdrop/internal/observability/metrics"
	obstracing "github.com/tipdrop/tipdrop/internal/observability/tracing"
	payoutdomain "github.com/tipdrop/tipdrop/internal/payout/domain"
	qrdomain "github.com/tipdrop/tipdrop/internal/qrcode/domain"
	"github.com/tipdrop/tipdrop/internal/ratelimit"
	staffdomain "github.com/tipdrop/tipdrop/internal/staff/domain"
	tipdomain "github.com/tipdrop/tipdrop/internal/tip/domain"
	venuedomain "github.com/tipdrop/tipdrop/internal/venue/domain"
	webhookdomain "github.com/tipdrop/tipdrop/internal/webhook/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	tipSvc     tipdomain.Service
	webhookSvc webhookdomain.Service
	venueSvc   venuedomain.Service
	payoutSvc  payoutdomain.Service
	staffRepo  staffdomain.Repository
	qrRepo     qrdomain.Repository
	limiter    ratelimit.Limiter
	obsMetrics *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	TipSvc     tipdomain.Service
	WebhookSvc webhookdomain.Service
	VenueSvc   venuedomain.Service
	PayoutSvc  payoutdomain.Service
	StaffRepo  staffdomain.Repository
	QRRepo     qrdomain.Repository
	Limiter    ratelimit.Limiter
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		db:         p.DB,
		log:        p.Log.Named("server"),
		genID:      p.GenID,
		tipSvc:     p.TipSvc,
		webhookSvc: p.WebhookSvc,
		venueSvc:   p.VenueSvc,
		payoutSvc:  p.PayoutSvc,
		staffRepo:  p.StaffRepo,
		qrRepo:     p.QRRepo,
		limiter:    p.Limiter,
		obsMetrics: p.ObsMetrics,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.POST("/tips", s.CreateTip)
	api.GET("/tips/:order_id", s.GetTip)
	api.PATCH("/tips/:order_id/status", s.SyncTokenRequired(), s.SyncTipStatus)

	api.POST("/payments/webhook", s.WebhookRateLimit(), s.HandlePaymentWebhook)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")

	admin.POST("/venues", s.CreateVenue)
	admin.GET("/venues/:id", s.GetVenue)
	admin.PUT("/venues/:id/credentials", s.UpsertVenueCredentials)
	admin.POST("/venues/:id/staff", s.CreateStaff)
	admin.GET("/venues/:id/staff/balances", s.ListStaffBalances)
	admin.POST("/venues/:id/qrcodes", s.CreateQRCode)
	admin.POST("/venues/:id/payouts", s.CreatePayout)
}
