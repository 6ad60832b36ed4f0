package gateway

import (
	"regexp"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderIDPattern = regexp.MustCompile(`^TIP-\d{1,8}-\d{13,}-[0-9a-f]{6}$`)

func TestNewOrderIDFormat(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	venueID := node.Generate()
	id := NewOrderID(venueID)
	assert.Regexp(t, orderIDPattern, id)

	prefix := venueID.String()
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	assert.Contains(t, id, "TIP-"+prefix+"-")
}

func TestNewOrderIDUnique(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	venueID := node.Generate()

	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		id := NewOrderID(venueID)
		_, dup := seen[id]
		require.False(t, dup, "duplicate order id %s", id)
		seen[id] = struct{}{}
	}
}
