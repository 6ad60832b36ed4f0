package metrics

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTPMetrics carries the per-request instruments for the HTTP surface.
type HTTPMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

func NewHTTPMetrics(cfg Config, provider metric.MeterProvider) (*HTTPMetrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "tipdrop"
	}
	meter := provider.Meter(name)

	requests, err := meter.Int64Counter("tipdrop_http_requests_total")
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(
		"tipdrop_http_request_duration_seconds",
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &HTTPMetrics{requests: requests, duration: duration}, nil
}

func (h *HTTPMetrics) Observe(ctx context.Context, method, route string, status int, elapsed time.Duration) {
	if h == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status", strconv.Itoa(status)),
	)
	h.requests.Add(ctx, 1, attrs)
	h.duration.Record(ctx, elapsed.Seconds(), attrs)
}

// GinMiddleware records request count and latency per route. The route
// template is used instead of the raw path to keep cardinality bounded.
func GinMiddleware(h *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		h.Observe(c.Request.Context(), c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
