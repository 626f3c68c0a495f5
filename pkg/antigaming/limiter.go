package antigaming

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

const (
	// DefaultWindowMs is spec.md §4.8's default sliding window width.
	DefaultWindowMs = int64(60_000)
	// DefaultLimit is spec.md §4.8's default cap within the window.
	DefaultLimit = 30
)

// SlidingWindowLimiter implements the default in-process rate limiter:
// a per-(agent, intent-type) log of admitted-event timestamps, pruned to
// the trailing window on every check. Rejected requests are not recorded,
// per spec.md §4.8 ("rejected requests do not count").
type SlidingWindowLimiter struct {
	mu       sync.Mutex
	windowMs int64
	limit    int
	events   map[string][]int64

	// burstGuard is an additional, optional global safety valve shared
	// across all keys: a coarse x/time/rate.Limiter bounding aggregate
	// admission rate regardless of per-agent bookkeeping, so a flood
	// spread thin across many distinct (agent, intent-type) keys cannot
	// bypass the per-key window. It never tightens the per-key limit's
	// exact counting semantics — it only adds a process-wide ceiling.
	burstGuard *rate.Limiter
}

// NewSlidingWindowLimiter constructs a limiter with the given window and
// per-key cap. globalRPS <= 0 disables the aggregate burst guard.
func NewSlidingWindowLimiter(windowMs int64, limit int, globalRPS float64, globalBurst int) *SlidingWindowLimiter {
	l := &SlidingWindowLimiter{
		windowMs: windowMs,
		limit:    limit,
		events:   make(map[string][]int64),
	}
	if globalRPS > 0 {
		l.burstGuard = rate.NewLimiter(rate.Limit(globalRPS), globalBurst)
	}
	return l
}

func rateLimitKey(agent, intentType string) string {
	return agent + "|" + intentType
}

// Check implements check(agent, intent, now) from spec.md §4.8.
func (l *SlidingWindowLimiter) Check(ctx context.Context, agent, intentType string, nowMs int64) (RateLimitResult, error) {
	if l.burstGuard != nil && !l.burstGuard.Allow() {
		return RateLimitResult{OK: false, Limit: l.limit, Reason: "global burst guard exceeded"}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := rateLimitKey(agent, intentType)
	cutoff := nowMs - l.windowMs

	kept := l.events[key][:0]
	for _, ts := range l.events[key] {
		if ts > cutoff {
			kept = append(kept, ts)
		}
	}

	count := len(kept)
	if count >= l.limit {
		l.events[key] = kept
		return RateLimitResult{OK: false, CurrentCount: count, Limit: l.limit, Reason: "rate limit exceeded"}, nil
	}

	kept = append(kept, nowMs)
	l.events[key] = kept
	return RateLimitResult{OK: true, CurrentCount: count + 1, Limit: l.limit}, nil
}

// Reset drops all per-agent counters, matching spec.md §5's "valid to
// reset them on process restart" — exposed for tests and operational use.
func (l *SlidingWindowLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = make(map[string][]int64)
}
