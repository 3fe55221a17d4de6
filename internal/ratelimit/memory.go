package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryRecord struct {
	count        int // Failures inside the current window.
	total        int // Cumulative failures since the last successful reset.
	resetTime    time.Time
	blockedUntil time.Time
}

// MemoryStore implements Store with process-local state. State is rebuilt
// from zero on restart; acceptable for a single instance.
type MemoryStore struct {
	mu        sync.Mutex
	records   map[string]*memoryRecord
	blacklist map[string]struct{}
	nowFn     func() time.Time
}

// NewMemoryStore constructs a MemoryStore. A nil nowFn uses the wall clock.
func NewMemoryStore(nowFn func() time.Time) *MemoryStore {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &MemoryStore{
		records:   make(map[string]*memoryRecord),
		blacklist: make(map[string]struct{}),
		nowFn:     nowFn,
	}
}

// Check reports the current limiter state for the identifier.
func (s *MemoryStore) Check(id string) Result {
	now := s.nowFn()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, found := s.blacklist[id]; found {
		return Result{Allowed: false, Blacklisted: true}
	}

	record := s.records[id]
	if record == nil {
		s.records[id] = &memoryRecord{resetTime: now.Add(Window)}
		return Result{Allowed: true, RemainingAttempts: MaxAttempts}
	}

	if !record.blockedUntil.IsZero() && now.Before(record.blockedUntil) {
		blockedUntil := record.blockedUntil
		return Result{Allowed: false, BlockedUntil: &blockedUntil}
	}

	if record.resetTime.Before(now) {
		record.count = 0
		record.resetTime = now.Add(Window)
		record.blockedUntil = time.Time{}
	}

	remaining := MaxAttempts - record.count
	if remaining < 0 {
		remaining = 0
	}
	resetTime := record.resetTime
	return Result{
		Allowed:           remaining > 0,
		RemainingAttempts: remaining,
		ResetTime:         &resetTime,
	}
}

// RecordFailure counts one failed attempt for the identifier.
func (s *MemoryStore) RecordFailure(id string) {
	now := s.nowFn()

	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.records[id]
	if record == nil {
		s.records[id] = &memoryRecord{count: 1, total: 1, resetTime: now.Add(Window)}
		return
	}

	if record.resetTime.Before(now) {
		record.count = 0
		record.resetTime = now.Add(Window)
		record.blockedUntil = time.Time{}
	}

	record.count++
	record.total++
	if record.count >= MaxAttempts {
		record.blockedUntil = now.Add(BlockDuration)
	}
	// The cumulative counter survives window resets; only a successful
	// login or an admin unblacklist clears it.
	if record.total >= BlacklistThreshold {
		s.blacklist[id] = struct{}{}
	}
}

// Reset deletes the record for the identifier.
func (s *MemoryStore) Reset(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
}

// Unblacklist removes the identifier from the permanent blacklist and drops
// its attempt record.
func (s *MemoryStore) Unblacklist(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blacklist, id)
	delete(s.records, id)
}

// sweep purges records whose window expired and which are not blocked, to
// bound memory.
func (s *MemoryStore) sweep() {
	now := s.nowFn()

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, record := range s.records {
		if record.resetTime.Before(now) && (record.blockedUntil.IsZero() || record.blockedUntil.Before(now)) {
			delete(s.records, id)
		}
	}
}

// StartSweeper runs the periodic purge until the context is cancelled.
func (s *MemoryStore) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = SweepInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}
