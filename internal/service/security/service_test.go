package security

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	domain "github.com/seoforge/seoforge-backend/internal/domain/security"
	"github.com/seoforge/seoforge-backend/internal/metrics"
)

// notifierSpy records critical alert deliveries.
type notifierSpy struct {
	mu     sync.Mutex
	alerts []*domain.Alert
	done   chan struct{}
}

func newNotifierSpy() *notifierSpy {
	return &notifierSpy{done: make(chan struct{}, 16)}
}

func (n *notifierSpy) Notify(ctx context.Context, alert *domain.Alert) error {
	n.mu.Lock()
	n.alerts = append(n.alerts, alert)
	n.mu.Unlock()
	n.done <- struct{}{}
	return nil
}

func (n *notifierSpy) wait(t *testing.T) *domain.Alert {
	t.Helper()
	select {
	case <-n.done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.alerts[len(n.alerts)-1]
}

func setupTestService(t *testing.T, cfg Config, notifiers ...Notifier) *Service {
	t.Helper()

	svc, err := NewService(cfg, zaptest.NewLogger(t), metrics.NewRegistry(prometheus.NewRegistry()), notifiers...)
	require.NoError(t, err)
	return svc
}

func TestNewService(t *testing.T) {
	t.Run("requires logger", func(t *testing.T) {
		_, err := NewService(DefaultConfig(), nil, metrics.NewRegistry(prometheus.NewRegistry()))
		assert.Error(t, err)
	})

	t.Run("zero config gets defaults", func(t *testing.T) {
		svc := setupTestService(t, Config{})
		assert.Equal(t, DefaultConfig().AlertCooldown, svc.cfg.AlertCooldown)
	})
}

func TestService_LogSealsEvents(t *testing.T) {
	svc := setupTestService(t, DefaultConfig())
	ctx := context.Background()

	require.NoError(t, svc.Log(ctx, domain.EventInvalidInput, domain.SeverityLow, map[string]interface{}{"field": "url"}))

	events := svc.RecentEvents(1)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventInvalidInput, events[0].Kind)
	assert.NotEmpty(t, events[0].EventHash)

	counters := svc.Snapshot()
	assert.Equal(t, 1, counters.TotalEvents)
	assert.Equal(t, 100, counters.RunningScore)
	assert.Equal(t, 100, svc.Score())
}

func TestService_RejectsInvalidEvents(t *testing.T) {
	svc := setupTestService(t, DefaultConfig())
	ctx := context.Background()

	assert.Error(t, svc.Log(ctx, "", domain.SeverityLow, nil))
	assert.Error(t, svc.Log(ctx, "whatever", domain.Severity("extreme"), nil))
}

func TestService_HighSeverityRaisesAlert(t *testing.T) {
	svc := setupTestService(t, DefaultConfig())
	ctx := context.Background()

	require.NoError(t, svc.Log(ctx, domain.EventSuspiciousActivity, domain.SeverityHigh, nil))

	alerts := svc.UnresolvedAlerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.EventSuspiciousActivity, alerts[0].Type)
	assert.Equal(t, domain.SeverityHigh, alerts[0].Severity)
	assert.False(t, alerts[0].Resolved)
}

func TestService_EveryHighSeverityEventAlerts(t *testing.T) {
	svc := setupTestService(t, DefaultConfig())
	ctx := context.Background()

	// Back-to-back incidents of the same kind each get their own alert;
	// only synthetic pattern alerts are throttled.
	require.NoError(t, svc.Log(ctx, domain.EventSuspiciousActivity, domain.SeverityHigh, nil))
	require.NoError(t, svc.Log(ctx, domain.EventSuspiciousActivity, domain.SeverityHigh, nil))
	require.NoError(t, svc.Log(ctx, domain.EventSuspiciousActivity, domain.SeverityCritical, nil))

	alerts := svc.UnresolvedAlerts()
	require.Len(t, alerts, 3)
	assert.Equal(t, 3, svc.Snapshot().TotalEvents)

	// Each unresolved alert weighs on the trailing-24h score.
	assert.Equal(t, 100-10-10-20, svc.Score())
}

func TestService_LowSeverityDoesNotAlert(t *testing.T) {
	svc := setupTestService(t, DefaultConfig())
	ctx := context.Background()

	require.NoError(t, svc.Log(ctx, domain.EventInvalidInput, domain.SeverityLow, nil))
	require.NoError(t, svc.Log(ctx, domain.EventInvalidInput, domain.SeverityMedium, nil))

	assert.Empty(t, svc.UnresolvedAlerts())
}

func TestService_CriticalAlertNotifies(t *testing.T) {
	spy := newNotifierSpy()
	svc := setupTestService(t, DefaultConfig(), spy)
	ctx := context.Background()

	require.NoError(t, svc.Log(ctx, domain.EventSuspiciousActivity, domain.SeverityCritical, nil))

	alert := spy.wait(t)
	assert.Equal(t, domain.SeverityCritical, alert.Severity)
	assert.Equal(t, 1, svc.Snapshot().CriticalAlerts)
}

func TestService_RapidFirePattern(t *testing.T) {
	svc := setupTestService(t, DefaultConfig())
	ctx := context.Background()

	for i := 0; i < 11; i++ {
		require.NoError(t, svc.Log(ctx, domain.EventInvalidInput, domain.SeverityLow, nil))
	}

	var rapidFire int
	for _, alert := range svc.UnresolvedAlerts() {
		if alert.Type == domain.PatternRapidFire {
			rapidFire++
			assert.Equal(t, domain.SeverityHigh, alert.Severity)
		}
	}
	assert.Equal(t, 1, rapidFire, "burst should raise exactly one rapid-fire alert")
}

func TestService_MultiVectorPattern(t *testing.T) {
	svc := setupTestService(t, DefaultConfig())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, svc.Log(ctx, fmt.Sprintf("vector_%d", i), domain.SeverityLow, nil))
	}

	var multiVector *domain.Alert
	for _, alert := range svc.UnresolvedAlerts() {
		if alert.Type == domain.PatternMultiVector {
			multiVector = alert
		}
	}
	require.NotNil(t, multiVector)
	assert.Equal(t, domain.SeverityCritical, multiVector.Severity)
	assert.Equal(t, 1, svc.Snapshot().CriticalAlerts)
}

func TestService_PatternEventsDoNotSelfTrigger(t *testing.T) {
	svc := setupTestService(t, DefaultConfig())
	ctx := context.Background()

	// Well past the threshold: the synthetic pattern events appended along
	// the way must not count toward further analysis.
	for i := 0; i < 30; i++ {
		require.NoError(t, svc.Log(ctx, domain.EventInvalidInput, domain.SeverityLow, nil))
	}

	var rapidFire int
	for _, alert := range svc.UnresolvedAlerts() {
		if alert.Type == domain.PatternRapidFire {
			rapidFire++
		}
	}
	assert.Equal(t, 1, rapidFire)
}

func TestService_ScoreFloorsAtZero(t *testing.T) {
	svc := setupTestService(t, DefaultConfig())
	ctx := context.Background()

	// Distinct kinds so the cooldown doesn't swallow the alerts.
	for i := 0; i < 8; i++ {
		require.NoError(t, svc.Log(ctx, fmt.Sprintf("breach_%d", i), domain.SeverityCritical, nil))
	}

	assert.Equal(t, 0, svc.Score())
	assert.GreaterOrEqual(t, svc.Snapshot().RunningScore, 0)
}

func TestService_ScoreRecoversOnResolve(t *testing.T) {
	svc := setupTestService(t, DefaultConfig())
	ctx := context.Background()

	require.NoError(t, svc.Log(ctx, domain.EventSuspiciousActivity, domain.SeverityHigh, nil))
	assert.Equal(t, 90, svc.Score())

	alerts := svc.UnresolvedAlerts()
	require.Len(t, alerts, 1)
	svc.ResolveAlert(alerts[0].ID)

	assert.Equal(t, 100, svc.Score())
	assert.Empty(t, svc.UnresolvedAlerts())
}

func TestService_ResolveAlertIdempotent(t *testing.T) {
	svc := setupTestService(t, DefaultConfig())
	ctx := context.Background()

	require.NoError(t, svc.Log(ctx, domain.EventSuspiciousActivity, domain.SeverityHigh, nil))
	alerts := svc.UnresolvedAlerts()
	require.Len(t, alerts, 1)

	svc.ResolveAlert(alerts[0].ID)
	svc.ResolveAlert(alerts[0].ID)
	assert.Empty(t, svc.UnresolvedAlerts())

	// Unknown IDs are a no-op.
	svc.ResolveAlert(uuid.New())
}

func TestService_ResolveStale(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoResolveAfter = 10 * time.Millisecond
	cfg.AlertRetention = 10 * time.Millisecond
	svc := setupTestService(t, cfg)
	ctx := context.Background()

	require.NoError(t, svc.Log(ctx, domain.EventSuspiciousActivity, domain.SeverityHigh, nil))
	require.NoError(t, svc.Log(ctx, "credential_leak", domain.SeverityCritical, nil))

	time.Sleep(25 * time.Millisecond)

	resolved, pruned := svc.ResolveStale()
	assert.Equal(t, 1, resolved, "only the non-critical alert auto-resolves")
	assert.Equal(t, 0, pruned)

	// Critical alerts require a human.
	remaining := svc.UnresolvedAlerts()
	require.Len(t, remaining, 1)
	assert.Equal(t, domain.SeverityCritical, remaining[0].Severity)

	time.Sleep(25 * time.Millisecond)

	_, pruned = svc.ResolveStale()
	assert.Equal(t, 1, pruned, "resolved alerts past retention are pruned")
}

func TestService_RecentEventsNewestFirst(t *testing.T) {
	svc := setupTestService(t, DefaultConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Log(ctx, fmt.Sprintf("kind_%d", i), domain.SeverityLow, nil))
	}

	events := svc.RecentEvents(2)
	require.Len(t, events, 2)
	assert.Equal(t, "kind_2", events[0].Kind)
	assert.Equal(t, "kind_1", events[1].Kind)
}

func TestService_GenerateReport(t *testing.T) {
	svc := setupTestService(t, DefaultConfig())
	ctx := context.Background()

	require.NoError(t, svc.Log(ctx, domain.EventSuspiciousActivity, domain.SeverityHigh, nil))

	report := svc.GenerateReport()
	assert.True(t, strings.HasPrefix(report, "# Security Report"))
	assert.Contains(t, report, "## Security Score: 90/100")
	assert.Contains(t, report, domain.EventSuspiciousActivity)
	assert.Contains(t, report, "[HIGH]")
	assert.Contains(t, report, recommendation(90))
}

func TestRecommendationTiers(t *testing.T) {
	assert.Contains(t, recommendation(95), "healthy")
	assert.Contains(t, recommendation(75), "Minor issues")
	assert.Contains(t, recommendation(50), "Elevated risk")
	assert.Contains(t, recommendation(10), "Severe risk")
}
