// Package xid mints the ids for local records: "tx", "shift", "inv", "sq",
// "cat", "prod", plus cart line and item ids. Ids embed the creation time in
// epoch millis so rows sort roughly by age even across devices, with a random
// suffix to keep two terminals from ever colliding.
package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

const randomBytes = 6

// New returns "<prefix>-<epoch millis>-<12 hex chars>". If the system random
// source fails the id falls back to nanosecond resolution alone, which is
// still unique enough for a single terminal.
func New(prefix string) string {
	now := time.Now()
	buf := make([]byte, randomBytes)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%d", prefix, now.UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", prefix, now.UnixMilli(), hex.EncodeToString(buf))
}
