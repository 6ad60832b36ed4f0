package gateway

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

// NewOrderID builds the gateway-facing order id for a tip:
// TIP-{venue id, first 8 chars}-{unix millis}-{6 random hex chars}.
// The random suffix keeps two tips created in the same millisecond apart.
func NewOrderID(venueID snowflake.ID) string {
	prefix := venueID.String()
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the OS entropy source is broken
		return fmt.Sprintf("TIP-%s-%d-%06x", prefix, time.Now().UnixMilli(), time.Now().UnixNano()%0xffffff)
	}
	return fmt.Sprintf("TIP-%s-%d-%s", prefix, time.Now().UnixMilli(), hex.EncodeToString(buf))
}
