// Package staleness holds the read-time expiry rule shared by presence and
// typing. Ephemeral facts are stored as (fact, timestamp) and every reader
// re-derives validity from the timestamp instead of relying on a background
// sweep, so a client that crashes without cleanup still ages out.
package staleness

import "time"

const (
	// HeartbeatInterval is the cadence clients report presence at while
	// foregrounded.
	HeartbeatInterval = 10 * time.Second

	// PresenceWindow tolerates two missed heartbeats before a client is
	// considered dead.
	PresenceWindow = 3 * HeartbeatInterval

	// TypingWindow must stay above the client's 5s stop-typing delay and
	// below its refresh cadence while actively typing.
	TypingWindow = 7 * time.Second
)

// Expired reports whether a fact last refreshed at ts is older than the
// given window as of now.
func Expired(ts time.Time, window time.Duration, now time.Time) bool {
	return now.Sub(ts) > window
}
