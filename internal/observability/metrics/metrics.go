package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	webhookEvents   metric.Int64Counter
	tipsSettled     metric.Int64Counter
	allocations     metric.Int64Counter
	strandedTips    metric.Int64Counter
	reconcileRuns   metric.Int64Counter
	rateLimitDenied metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "tipdrop"
	}
	meter := provider.Meter(name)

	webhookEvents, err := meter.Int64Counter("tipdrop_webhook_events_total")
	if err != nil {
		return nil, err
	}
	tipsSettled, err := meter.Int64Counter("tipdrop_tips_settled_total")
	if err != nil {
		return nil, err
	}
	allocations, err := meter.Int64Counter("tipdrop_tip_allocations_total")
	if err != nil {
		return nil, err
	}
	strandedTips, err := meter.Int64Counter("tipdrop_tips_stranded_total")
	if err != nil {
		return nil, err
	}
	reconcileRuns, err := meter.Int64Counter("tipdrop_reconcile_runs_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("tipdrop_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		webhookEvents:   webhookEvents,
		tipsSettled:     tipsSettled,
		allocations:     allocations,
		strandedTips:    strandedTips,
		reconcileRuns:   reconcileRuns,
		rateLimitDenied: rateLimitDenied,
	}, nil
}

// RecordWebhookEvent counts an inbound notification by outcome.
func (m *Metrics) RecordWebhookEvent(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.webhookEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordTipSettled counts settled tips by terminal status.
func (m *Metrics) RecordTipSettled(ctx context.Context, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("status", strings.TrimSpace(status)))
	m.tipsSettled.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAllocations counts allocation rows written per settlement.
func (m *Metrics) RecordAllocations(ctx context.Context, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.allocations.Add(ctx, int64(count))
}

// RecordStrandedTip counts paid tips that settled without a pool.
func (m *Metrics) RecordStrandedTip(ctx context.Context) {
	if m == nil {
		return
	}
	m.strandedTips.Add(ctx, 1)
}

// RecordReconcileRun counts reconciler sweeps by outcome.
func (m *Metrics) RecordReconcileRun(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.reconcileRuns.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied counts throttled webhook deliveries.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("endpoint", strings.TrimSpace(endpoint)))
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"outcome":  {},
	"status":   {},
	"endpoint": {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
