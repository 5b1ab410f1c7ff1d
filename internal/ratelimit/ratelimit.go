// Package ratelimit implements the sliding-window rate limiter (C9),
// grounded on the source system's RateLimiter: per-identifier sliding
// windows of 1 minute/1 hour/24 hours, with temporary blocks on
// exceeding any window, guarded by a sharded lock for bounded
// contention under concurrent requests.
package ratelimit

import (
	"sync"
	"time"

	"github.com/minedu-gob-pe/vm-expedientes-retrieval/pkg/utils"
)

// Default limits and block durations, per spec.
const (
	RequestsPerMinute = 30
	RequestsPerHour   = 500
	RequestsPerDay    = 2000

	BlockOnMinuteLimit = 5 * time.Minute
	BlockOnHourLimit   = 1 * time.Hour
	BlockOnDayLimit    = 24 * time.Hour

	retentionWindow = 24 * time.Hour

	hashTruncation = 32
	shardCount     = 16
)

// Decision is the outcome of a rate-limit check.
type Decision struct {
	Allowed bool
	Reason  string
	// RetryAfter is populated when Allowed is false and the identifier
	// is currently blocked.
	RetryAfter time.Duration
}

type identifierState struct {
	timestamps []time.Time
	blockUntil time.Time
}

type shard struct {
	mu    sync.Mutex
	state map[string]*identifierState
}

// Limiter is a sharded, hashed-identifier sliding-window rate limiter.
type Limiter struct {
	shards [shardCount]*shard
	now    func() time.Time
}

// New returns a Limiter with an empty state.
func New() *Limiter {
	l := &Limiter{now: time.Now}
	for i := range l.shards {
		l.shards[i] = &shard{state: make(map[string]*identifierState)}
	}
	return l
}

func (l *Limiter) shardFor(key string) *shard {
	// key is lowercase hex; its first digit (0-15) picks the shard.
	var n int
	if len(key) > 0 {
		switch c := key[0]; {
		case c >= '0' && c <= '9':
			n = int(c - '0')
		case c >= 'a' && c <= 'f':
			n = int(c-'a') + 10
		}
	}
	return l.shards[n%shardCount]
}

// Check implements C9's check(identifier) operation. identifier is
// hashed (SHA-256, truncated) before use as the internal key; raw
// identifiers never persist in the limiter's state.
func (l *Limiter) Check(identifier string) Decision {
	key := utils.HashIdentifier(identifier, hashTruncation)
	s := l.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := l.now()
	st, ok := s.state[key]
	if !ok {
		st = &identifierState{}
		s.state[key] = st
	}

	if !st.blockUntil.IsZero() && now.Before(st.blockUntil) {
		return Decision{Allowed: false, Reason: "blocked", RetryAfter: st.blockUntil.Sub(now)}
	}

	st.timestamps = pruneOlderThan(st.timestamps, now, retentionWindow)

	minuteCount := countWithin(st.timestamps, now, time.Minute)
	hourCount := countWithin(st.timestamps, now, time.Hour)
	dayCount := len(st.timestamps)

	switch {
	case minuteCount >= RequestsPerMinute:
		st.blockUntil = now.Add(BlockOnMinuteLimit)
		return Decision{Allowed: false, Reason: "requests_per_minute_exceeded", RetryAfter: BlockOnMinuteLimit}
	case hourCount >= RequestsPerHour:
		st.blockUntil = now.Add(BlockOnHourLimit)
		return Decision{Allowed: false, Reason: "requests_per_hour_exceeded", RetryAfter: BlockOnHourLimit}
	case dayCount >= RequestsPerDay:
		st.blockUntil = now.Add(BlockOnDayLimit)
		return Decision{Allowed: false, Reason: "requests_per_day_exceeded", RetryAfter: BlockOnDayLimit}
	}

	st.timestamps = append(st.timestamps, now)
	return Decision{Allowed: true}
}

func pruneOlderThan(timestamps []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	kept := timestamps[:0]
	for _, t := range timestamps {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

func countWithin(timestamps []time.Time, now time.Time, window time.Duration) int {
	cutoff := now.Add(-window)
	count := 0
	for _, t := range timestamps {
		if t.After(cutoff) {
			count++
		}
	}
	return count
}
