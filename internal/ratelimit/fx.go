package ratelimit

import (
	"context"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tipdrop/tipdrop/internal/config"
)

var Module = fx.Module("rate.limit",
	fx.Provide(NewLimiter),
)

// NewLimiter builds the webhook limiter: a shared Redis token bucket when
// an address is configured, otherwise an in-process fixed window.
func NewLimiter(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (Limiter, error) {
	window := time.Duration(cfg.Webhook.WindowSecs) * time.Second
	if window <= 0 {
		window = time.Minute
	}

	addr := strings.TrimSpace(cfg.Redis.Addr)
	if addr == "" {
		return NewMemoryLimiter(cfg.Webhook.RateLimit, window), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.Redis.Password),
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	rate := float64(cfg.Webhook.RateLimit) / window.Seconds()
	bucket, err := NewTokenBucket(client, rate, cfg.Webhook.RateLimit)
	if err != nil {
		return nil, err
	}
	log.Named("ratelimit").Info("redis rate limiter enabled", zap.String("addr", addr))
	return bucket, nil
}
