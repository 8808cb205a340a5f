package store

import "time"

// Entry is the stored value behind a key: its data and an optional
// expiry instant (§3).
type Entry struct {
	Data      []byte
	ExpiresAt time.Time
	HasExpiry bool
}
