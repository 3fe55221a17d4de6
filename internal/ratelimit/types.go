package ratelimit

import "time"

// Limiter parameters. A client transitions Clean -> Tracking -> Blocked as
// failures accumulate inside the window, and to the terminal Blacklisted
// state at three times the base threshold.
const (
	MaxAttempts        = 5
	Window             = 15 * time.Minute
	BlockDuration      = time.Hour
	BlacklistThreshold = MaxAttempts * 3
	SweepInterval      = 10 * time.Minute
)

// Result describes the outcome of a limiter check for one client identifier.
type Result struct {
	Allowed           bool
	RemainingAttempts int
	ResetTime         *time.Time // End of the current counting window.
	BlockedUntil      *time.Time // Temporary block expiry, nil when not blocked.
	Blacklisted       bool       // Terminal state; only an admin unblacklist clears it.
}

// Store tracks failed login attempts per client identifier. Implementations
// must be safe for concurrent use; the memory store covers a single process
// and the Redis store coordinates across instances.
type Store interface {
	// Check is a read: it must not advance the state machine beyond lazily
	// initializing a clean record.
	Check(id string) Result
	// RecordFailure counts one failed attempt and applies block and
	// blacklist transitions.
	RecordFailure(id string)
	// Reset removes the record entirely, returning the client to Clean.
	// Called on successful authentication.
	Reset(id string)
	// Unblacklist removes a permanent blacklist entry.
	Unblacklist(id string)
}
