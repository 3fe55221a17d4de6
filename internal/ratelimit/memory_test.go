package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestMemoryStoreUnknownIDIsClean(t *testing.T) {
	store := NewMemoryStore(nil)

	result := store.Check("10.0.0.1")
	if !result.Allowed {
		t.Fatalf("expected unknown id to be allowed")
	}
	if result.RemainingAttempts != MaxAttempts {
		t.Fatalf("expected %d remaining attempts, got %d", MaxAttempts, result.RemainingAttempts)
	}
}

func TestMemoryStoreBlocksAfterMaxAttempts(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore(func() time.Time { return now })

	for i := 0; i < MaxAttempts; i++ {
		store.RecordFailure("10.0.0.1")
	}

	result := store.Check("10.0.0.1")
	if result.Allowed {
		t.Fatalf("expected block after %d failures", MaxAttempts)
	}
	if result.BlockedUntil == nil {
		t.Fatalf("expected blocked_until to be set")
	}
	if want := now.Add(BlockDuration); !result.BlockedUntil.Equal(want) {
		t.Fatalf("expected blocked until %v, got %v", want, *result.BlockedUntil)
	}
	if result.Blacklisted {
		t.Fatalf("did not expect blacklist at base threshold")
	}
}

func TestMemoryStoreWindowExpiryResets(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore(func() time.Time { return now })

	store.RecordFailure("10.0.0.1")
	store.RecordFailure("10.0.0.1")

	result := store.Check("10.0.0.1")
	if result.RemainingAttempts != MaxAttempts-2 {
		t.Fatalf("expected %d remaining, got %d", MaxAttempts-2, result.RemainingAttempts)
	}

	now = now.Add(Window + time.Minute)
	result = store.Check("10.0.0.1")
	if !result.Allowed {
		t.Fatalf("expected window expiry to return the id to clean")
	}
	if result.RemainingAttempts != MaxAttempts {
		t.Fatalf("expected full remaining attempts after window, got %d", result.RemainingAttempts)
	}
}

func TestMemoryStoreBlacklistIsTerminal(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore(func() time.Time { return now })

	for i := 0; i < BlacklistThreshold; i++ {
		store.RecordFailure("10.0.0.1")
	}

	result := store.Check("10.0.0.1")
	if !result.Blacklisted {
		t.Fatalf("expected blacklist after %d failures", BlacklistThreshold)
	}

	// The block duration elapsing does not release a blacklisted id.
	now = now.Add(BlockDuration + Window + time.Hour)
	if result = store.Check("10.0.0.1"); !result.Blacklisted {
		t.Fatalf("expected blacklist to persist past block duration")
	}

	store.Unblacklist("10.0.0.1")
	if result = store.Check("10.0.0.1"); !result.Allowed {
		t.Fatalf("expected unblacklist to restore access")
	}
	if result.RemainingAttempts != MaxAttempts {
		t.Fatalf("expected clean record after unblacklist, got %d remaining", result.RemainingAttempts)
	}
}

func TestMemoryStoreBlacklistAccumulatesAcrossWindows(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore(func() time.Time { return now })

	// Three block cycles without a successful reset escalate to the
	// blacklist even though each window resets the per-window count.
	for cycle := 0; cycle < 3; cycle++ {
		for i := 0; i < MaxAttempts; i++ {
			store.RecordFailure("10.0.0.1")
		}
		now = now.Add(BlockDuration + time.Minute)
	}

	result := store.Check("10.0.0.1")
	if !result.Blacklisted {
		t.Fatalf("expected blacklist after three block cycles, got %+v", result)
	}
}

func TestMemoryStoreResetReturnsToClean(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore(func() time.Time { return now })

	for i := 0; i < MaxAttempts-1; i++ {
		store.RecordFailure("10.0.0.1")
	}
	store.Reset("10.0.0.1")

	result := store.Check("10.0.0.1")
	if !result.Allowed || result.RemainingAttempts != MaxAttempts {
		t.Fatalf("expected clean state after reset, got %+v", result)
	}
}

func TestMemoryStoreSweepKeepsBlockedRecords(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore(func() time.Time { return now })

	for i := 0; i < MaxAttempts; i++ {
		store.RecordFailure("blocked-ip")
	}
	store.RecordFailure("stale-ip")

	now = now.Add(Window + time.Minute)
	store.sweep()

	store.mu.Lock()
	_, blockedKept := store.records["blocked-ip"]
	_, staleKept := store.records["stale-ip"]
	store.mu.Unlock()

	if !blockedKept {
		t.Fatalf("expected sweep to keep the blocked record")
	}
	if staleKept {
		t.Fatalf("expected sweep to purge the expired unblocked record")
	}
}

func TestClientIdentifierHeaderPrecedence(t *testing.T) {
	r := httptest.NewRequest("POST", "/v0/auth/login", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.2")
	r.Header.Set("X-Real-IP", "203.0.113.9")
	if id := ClientIdentifier(r); id != "203.0.113.7" {
		t.Fatalf("expected first forwarded hop, got %q", id)
	}

	r = httptest.NewRequest("POST", "/v0/auth/login", nil)
	r.Header.Set("X-Real-IP", "203.0.113.9")
	if id := ClientIdentifier(r); id != "203.0.113.9" {
		t.Fatalf("expected real ip, got %q", id)
	}

	r = httptest.NewRequest("POST", "/v0/auth/login", nil)
	r.RemoteAddr = "192.0.2.4:50812"
	if id := ClientIdentifier(r); id != "192.0.2.4" {
		t.Fatalf("expected remote addr host, got %q", id)
	}
}
