package security

import (
	"fmt"
	"strings"
	"time"

	domain "github.com/seoforge/seoforge-backend/internal/domain/security"
)

// GenerateReport renders a human-readable Markdown summary: score,
// counters, unresolved alerts, and severity-tiered recommendations.
func (s *Service) GenerateReport() string {
	s.mu.RLock()
	score := s.scoreLocked()
	counters := s.counters

	var unresolved []*domain.Alert
	for _, alert := range s.alerts {
		if !alert.Resolved {
			alertCopy := *alert
			unresolved = append(unresolved, &alertCopy)
		}
	}
	s.mu.RUnlock()

	sortAlertsByTime(unresolved)

	var b strings.Builder

	b.WriteString("# Security Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", time.Now().UTC().Format(time.RFC3339))

	fmt.Fprintf(&b, "## Security Score: %d/100\n\n", score)

	b.WriteString("## Metrics\n\n")
	fmt.Fprintf(&b, "- Total events: %d\n", counters.TotalEvents)
	fmt.Fprintf(&b, "- Critical alerts: %d\n", counters.CriticalAlerts)
	fmt.Fprintf(&b, "- Suspicious activity: %d\n", counters.SuspiciousActivity)
	fmt.Fprintf(&b, "- Rate limit violations: %d\n", counters.RateLimitViolations)
	fmt.Fprintf(&b, "- Running score: %d/100\n\n", counters.RunningScore)

	b.WriteString("## Unresolved Alerts\n\n")
	if len(unresolved) == 0 {
		b.WriteString("None.\n\n")
	} else {
		for _, alert := range unresolved {
			fmt.Fprintf(&b, "- [%s] %s — %s (%s, id %s)\n",
				strings.ToUpper(string(alert.Severity)),
				alert.Type,
				alert.Message,
				alert.Timestamp.Format(time.RFC3339),
				alert.ID)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Recommendation\n\n")
	b.WriteString(recommendation(score))
	b.WriteString("\n")

	return b.String()
}

func recommendation(score int) string {
	switch {
	case score >= 90:
		return "Security posture is healthy. Continue routine monitoring."
	case score >= 70:
		return "Minor issues detected. Review unresolved alerts at the next maintenance window."
	case score >= 40:
		return "Elevated risk. Investigate unresolved high-severity alerts and tighten rate limits."
	default:
		return "Severe risk. Resolve critical alerts immediately and audit recent activity for compromise."
	}
}
