package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seoforge/seoforge-backend/internal/domain/security"
	"github.com/seoforge/seoforge-backend/internal/metrics"
)

// RateLimiter throttles repeated invocations of an operation with a fixed
// window per operation ID. Operations without a configured policy are open
// by default.
type RateLimiter struct {
	mu       sync.Mutex
	policies map[string]limitPolicy
	buckets  map[string]*bucket

	logger  *zap.Logger
	metrics *metrics.Registry
	events  EventSink
}

type limitPolicy struct {
	limit  int
	window time.Duration
}

// bucket tracks one operation's fixed window. OPEN while count < limit,
// THROTTLED once count reaches limit; back to OPEN only on window rollover.
type bucket struct {
	windowStart time.Time
	count       int
}

// NewRateLimiter creates an empty limiter; events may be nil.
func NewRateLimiter(logger *zap.Logger, reg *metrics.Registry, events EventSink) *RateLimiter {
	return &RateLimiter{
		policies: make(map[string]limitPolicy),
		buckets:  make(map[string]*bucket),
		logger:   logger,
		metrics:  reg,
		events:   events,
	}
}

// Configure registers or overwrites the limit policy for an operation.
// Safe to call before or after traffic begins.
func (rl *RateLimiter) Configure(operationID string, limit int, window time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.policies[operationID] = limitPolicy{limit: limit, window: window}
	// A policy change invalidates the running window.
	delete(rl.buckets, operationID)
}

// Allow reports whether one more invocation of the operation is permitted
// and records it if so. Denials emit a rate_limit_exceeded event.
func (rl *RateLimiter) Allow(operationID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	policy, ok := rl.policies[operationID]
	if !ok {
		return true
	}

	now := time.Now()

	b, ok := rl.buckets[operationID]
	if !ok || now.Sub(b.windowStart) > policy.window {
		b = &bucket{windowStart: now}
		rl.buckets[operationID] = b
	}

	if b.count < policy.limit {
		b.count++
		return true
	}

	if rl.metrics != nil {
		rl.metrics.RateLimitDenials.WithLabelValues(operationID).Inc()
	}
	if rl.logger != nil {
		rl.logger.Debug("rate limit exceeded",
			zap.String("operation", operationID),
			zap.Int("limit", policy.limit),
			zap.Duration("window", policy.window),
			zap.Int("current_count", b.count))
	}
	if rl.events != nil {
		rl.events.RecordEvent(security.EventRateLimitExceeded, security.SeverityMedium, map[string]interface{}{
			"operationId":  operationID,
			"limit":        policy.limit,
			"windowMs":     policy.window.Milliseconds(),
			"currentCount": b.count,
		})
	}

	return false
}

// TimeUntilReset returns how long until the operation's window rolls over.
// Zero if no policy is registered or no requests have been recorded.
func (rl *RateLimiter) TimeUntilReset(operationID string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	policy, ok := rl.policies[operationID]
	if !ok {
		return 0
	}

	b, ok := rl.buckets[operationID]
	if !ok {
		return 0
	}

	remaining := b.windowStart.Add(policy.window).Sub(time.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Cleanup drops buckets whose window has expired and returns how many were
// removed.
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cleaned := 0

	for operationID, b := range rl.buckets {
		policy, ok := rl.policies[operationID]
		if !ok || now.Sub(b.windowStart) > policy.window {
			delete(rl.buckets, operationID)
			cleaned++
		}
	}

	return cleaned
}

// StartCleanup runs Cleanup on a fixed interval until ctx is cancelled.
func (rl *RateLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if cleaned := rl.Cleanup(); cleaned > 0 && rl.logger != nil {
					rl.logger.Debug("rate limiter cleanup completed", zap.Int("cleaned", cleaned))
				}
			}
		}
	}()
}
