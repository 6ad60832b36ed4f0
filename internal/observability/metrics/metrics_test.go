package metrics

import (
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"github.com/stretchr/testify/assert"
)

func TestFilterAttributesDropsUnknownLabels(t *testing.T) {
	filtered := FilterAttributes(
		attribute.String("outcome", "processed"),
		attribute.String("order_id", "TIP-1-2-3"),
		attribute.String("status", "PAID"),
	)

	keys := make([]string, 0, len(filtered))
	for _, attr := range filtered {
		keys = append(keys, string(attr.Key))
	}
	assert.ElementsMatch(t, []string{"outcome", "status"}, keys)
}
