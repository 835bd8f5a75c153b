package security

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domain "github.com/seoforge/seoforge-backend/internal/domain/security"
	"github.com/seoforge/seoforge-backend/internal/metrics"
)

const (
	// patternWindow is the trailing window scanned by pattern analysis.
	patternWindow = 5 * time.Minute

	rapidFireThreshold   = 10
	multiVectorThreshold = 3

	scoreWindow = 24 * time.Hour
)

// Config tunes alerting behavior.
type Config struct {
	// AlertCooldown suppresses repeat pattern alerts of the same
	// kind+severity. Alerts for individual high/critical events are never
	// throttled.
	AlertCooldown time.Duration
	// AutoResolveAfter is the age at which non-critical alerts are
	// resolved by the janitor.
	AutoResolveAfter time.Duration
	// AlertRetention is the age at which resolved alerts are pruned.
	AlertRetention time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		AlertCooldown:    5 * time.Minute,
		AutoResolveAfter: time.Hour,
		AlertRetention:   7 * 24 * time.Hour,
	}
}

// Counters are the rolling totals updated on every Log call. RunningScore
// is the cumulative log-time score; the score surfaced to users is the
// trailing-24h Score().
type Counters struct {
	TotalEvents         int `json:"total_events"`
	CriticalAlerts      int `json:"critical_alerts"`
	SuspiciousActivity  int `json:"suspicious_activity"`
	RateLimitViolations int `json:"rate_limit_violations"`
	RunningScore        int `json:"running_score"`
}

// Service is the append-only security event log with alert synthesis,
// pattern analysis, and scoring. Construct one per process (or per test);
// there is no package-level instance.
type Service struct {
	mu        sync.RWMutex
	cfg       Config
	events    []*domain.Event
	alerts    []*domain.Alert
	cooldowns map[string]time.Time
	counters  Counters

	notifiers []Notifier
	logger    *zap.Logger
	metrics   *metrics.Registry
}

// NewService creates a security event log. Notifiers receive critical
// alerts out of band; the list may be empty.
func NewService(cfg Config, logger *zap.Logger, reg *metrics.Registry, notifiers ...Notifier) (*Service, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if reg == nil {
		return nil, fmt.Errorf("metrics registry is required")
	}
	if cfg.AlertCooldown <= 0 {
		cfg.AlertCooldown = DefaultConfig().AlertCooldown
	}
	if cfg.AutoResolveAfter <= 0 {
		cfg.AutoResolveAfter = DefaultConfig().AutoResolveAfter
	}
	if cfg.AlertRetention <= 0 {
		cfg.AlertRetention = DefaultConfig().AlertRetention
	}

	return &Service{
		cfg:       cfg,
		cooldowns: make(map[string]time.Time),
		counters:  Counters{RunningScore: 100},
		notifiers: notifiers,
		logger:    logger,
		metrics:   reg,
	}, nil
}

// Log appends an immutable event, updates the rolling counters, raises an
// alert for high and critical severities, and runs pattern analysis.
func (s *Service) Log(ctx context.Context, kind string, severity domain.Severity, details map[string]interface{}) error {
	event, err := domain.NewEvent(kind, severity, details)
	if err != nil {
		return err
	}
	if _, err := event.Seal(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)
	s.updateCounters(event)
	s.metrics.SecurityEvents.WithLabelValues(kind, string(severity)).Inc()

	s.logger.Debug("security event logged",
		zap.String("kind", kind),
		zap.String("severity", string(severity)))

	if severity == domain.SeverityHigh || severity == domain.SeverityCritical {
		s.raiseAlert(ctx, kind, severity, alertMessage(kind, severity), details)
	}

	// Synthetic pattern events are excluded from re-analysis so an alert
	// cannot trigger itself.
	if !event.IsPattern() {
		s.analyzePatterns(ctx)
	}

	return nil
}

// RecordEvent satisfies the cache layer's EventSink. Severity and details
// come from the emitting component; failures are logged, not propagated.
func (s *Service) RecordEvent(kind string, severity domain.Severity, details map[string]interface{}) {
	if err := s.Log(context.Background(), kind, severity, details); err != nil {
		s.logger.Warn("failed to record security event", zap.String("kind", kind), zap.Error(err))
	}
}

// updateCounters maintains the rolling totals. Caller holds the lock.
func (s *Service) updateCounters(event *domain.Event) {
	s.counters.TotalEvents++

	switch event.Kind {
	case domain.EventRateLimitExceeded:
		s.counters.RateLimitViolations++
	case domain.EventSuspiciousActivity:
		s.counters.SuspiciousActivity++
	}

	switch event.Severity {
	case domain.SeverityCritical:
		s.counters.RunningScore -= 10
	case domain.SeverityHigh:
		s.counters.RunningScore -= 5
	}
	if s.counters.RunningScore < 0 {
		s.counters.RunningScore = 0
	}
}

// raiseAlert synthesizes an alert. Every high and critical event gets its
// own alert; only synthetic pattern alerts are throttled, and raisePattern
// handles that before calling here. Caller holds the lock.
func (s *Service) raiseAlert(ctx context.Context, alertType string, severity domain.Severity, message string, details map[string]interface{}) {
	alert, err := domain.NewAlert(alertType, severity, message, details)
	if err != nil {
		s.logger.Error("failed to create alert", zap.String("type", alertType), zap.Error(err))
		return
	}

	s.alerts = append(s.alerts, alert)
	s.metrics.AlertsTriggered.WithLabelValues(alertType, string(severity)).Inc()

	if severity == domain.SeverityCritical {
		s.counters.CriticalAlerts++
	}

	s.logger.Warn("security alert raised",
		zap.String("alert_id", alert.ID.String()),
		zap.String("type", alertType),
		zap.String("severity", string(severity)),
		zap.String("message", message))

	// Critical alerts fan out to the configured channels out of band.
	if severity == domain.SeverityCritical && len(s.notifiers) > 0 {
		alertCopy := *alert
		notifiers := s.notifiers
		go func() {
			for _, n := range notifiers {
				if err := n.Notify(ctx, &alertCopy); err != nil {
					s.logger.Error("alert notification failed",
						zap.String("alert_id", alertCopy.ID.String()),
						zap.Error(err))
				}
			}
		}()
	}
}

// analyzePatterns scans the trailing window for rapid-fire bursts and
// multi-vector activity. Synthetic pattern events are skipped. Caller
// holds the lock.
func (s *Service) analyzePatterns(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-patternWindow)

	recent := 0
	kinds := make(map[string]struct{})
	for i := len(s.events) - 1; i >= 0; i-- {
		event := s.events[i]
		if event.Timestamp.Before(cutoff) {
			break
		}
		if event.IsPattern() {
			continue
		}
		recent++
		kinds[event.Kind] = struct{}{}
	}

	if recent > rapidFireThreshold {
		s.raisePattern(ctx, domain.PatternRapidFire, domain.SeverityHigh,
			fmt.Sprintf("%d security events in the last %s", recent, patternWindow),
			map[string]interface{}{"eventCount": recent})
	}

	if len(kinds) > multiVectorThreshold {
		s.raisePattern(ctx, domain.PatternMultiVector, domain.SeverityCritical,
			fmt.Sprintf("%d distinct event kinds in the last %s", len(kinds), patternWindow),
			map[string]interface{}{"distinctKinds": len(kinds)})
	}
}

// raisePattern records the synthetic event and its alert, unless the same
// pattern fired within the cooldown: a sustained burst keeps tripping the
// thresholds on every logged event, and without the cooldown each one
// would add another copy of the same alert. Caller holds the lock; the
// pattern kind prefix keeps the event out of further analysis.
func (s *Service) raisePattern(ctx context.Context, kind string, severity domain.Severity, message string, details map[string]interface{}) {
	cooldownKey := kind + ":" + string(severity)
	if last, ok := s.cooldowns[cooldownKey]; ok && time.Since(last) < s.cfg.AlertCooldown {
		return
	}
	s.cooldowns[cooldownKey] = time.Now()

	event, err := domain.NewEvent(kind, severity, details)
	if err != nil {
		s.logger.Error("failed to create pattern event", zap.String("kind", kind), zap.Error(err))
		return
	}
	if _, err := event.Seal(); err != nil {
		s.logger.Error("failed to seal pattern event", zap.String("kind", kind), zap.Error(err))
		return
	}

	s.events = append(s.events, event)
	s.updateCounters(event)
	s.metrics.SecurityEvents.WithLabelValues(kind, string(severity)).Inc()

	s.raiseAlert(ctx, kind, severity, message, details)
}

// UnresolvedAlerts returns copies of all alerts with resolved == false,
// oldest first.
func (s *Service) UnresolvedAlerts() []*domain.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var unresolved []*domain.Alert
	for _, alert := range s.alerts {
		if !alert.Resolved {
			alertCopy := *alert
			unresolved = append(unresolved, &alertCopy)
		}
	}
	return unresolved
}

// ResolveAlert idempotently marks an alert resolved. Unknown IDs are a
// no-op.
func (s *Service) ResolveAlert(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, alert := range s.alerts {
		if alert.ID != id {
			continue
		}
		if !alert.Resolved {
			alert.Resolve()
			s.metrics.AlertsResolved.Inc()
			s.logger.Info("security alert resolved", zap.String("alert_id", id.String()))
		}
		return
	}
}

// Score recomputes the trailing-24h security score from unresolved alerts,
// weighted by severity and floored at zero. This is the value surfaced to
// users; the cumulative RunningScore lives in Counters.
func (s *Service) Score() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.scoreLocked()
}

func (s *Service) scoreLocked() int {
	cutoff := time.Now().UTC().Add(-scoreWindow)

	score := 100
	for _, alert := range s.alerts {
		if alert.Resolved || alert.Timestamp.Before(cutoff) {
			continue
		}
		score -= alert.Severity.ScoreWeight()
	}
	if score < 0 {
		score = 0
	}

	s.metrics.SecurityScore.Set(float64(score))
	return score
}

// Snapshot returns a copy of the rolling counters.
func (s *Service) Snapshot() Counters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters
}

// RecentEvents returns copies of the latest n events, newest first.
func (s *Service) RecentEvents(n int) []*domain.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || n > len(s.events) {
		n = len(s.events)
	}

	recent := make([]*domain.Event, 0, n)
	for i := len(s.events) - 1; i >= len(s.events)-n; i-- {
		eventCopy := *s.events[i]
		recent = append(recent, &eventCopy)
	}
	return recent
}

// ResolveStale auto-resolves non-critical alerts past the configured age
// and prunes resolved alerts past retention. Returns (resolved, pruned).
func (s *Service) ResolveStale() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	resolveCutoff := now.Add(-s.cfg.AutoResolveAfter)
	pruneCutoff := now.Add(-s.cfg.AlertRetention)

	resolved := 0
	kept := s.alerts[:0]
	pruned := 0

	for _, alert := range s.alerts {
		if !alert.Resolved && alert.Severity != domain.SeverityCritical && alert.Timestamp.Before(resolveCutoff) {
			alert.Resolve()
			s.metrics.AlertsResolved.Inc()
			resolved++
		}
		if alert.Resolved && alert.ResolvedAt != nil && alert.ResolvedAt.Before(pruneCutoff) {
			pruned++
			continue
		}
		kept = append(kept, alert)
	}
	s.alerts = kept

	if resolved > 0 || pruned > 0 {
		s.logger.Debug("alert janitor pass completed",
			zap.Int("auto_resolved", resolved),
			zap.Int("pruned", pruned))
	}

	return resolved, pruned
}

// StartJanitor runs ResolveStale on a fixed interval until ctx is
// cancelled.
func (s *Service) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.ResolveStale()
			}
		}
	}()
}

func alertMessage(kind string, severity domain.Severity) string {
	label := strings.ReplaceAll(kind, "_", " ")
	return fmt.Sprintf("%s severity %s event detected", label, severity)
}

// sortAlertsByTime orders newest first; used by reporting.
func sortAlertsByTime(alerts []*domain.Alert) {
	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].Timestamp.After(alerts[j].Timestamp)
	})
}
