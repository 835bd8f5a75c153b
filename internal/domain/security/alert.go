package security

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/seoforge/seoforge-backend/internal/domain/errors"
)

// Alert is raised for high and critical severity events, and by pattern
// analysis over the recent event window. Alerts are never deleted while
// unresolved; resolution only flips the flag.
type Alert struct {
	ID         uuid.UUID              `json:"id"`
	Type       string                 `json:"type"`
	Severity   Severity               `json:"severity"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Resolved   bool                   `json:"resolved"`
	ResolvedAt *time.Time             `json:"resolved_at,omitempty"`
}

// NewAlert creates an unresolved alert derived from an event kind.
func NewAlert(alertType string, severity Severity, message string, details map[string]interface{}) (*Alert, error) {
	if alertType == "" {
		return nil, errors.NewValidationError("MISSING_ALERT_TYPE", "alert type is required")
	}
	if !severity.Valid() {
		return nil, errors.NewValidationError("INVALID_SEVERITY",
			fmt.Sprintf("severity %q must be one of low, medium, high, critical", severity))
	}

	return &Alert{
		ID:        uuid.New(),
		Type:      alertType,
		Severity:  severity,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		Resolved:  false,
	}, nil
}

// Resolve marks the alert resolved. Resolving an already resolved alert is
// a no-op so callers can retry safely.
func (a *Alert) Resolve() {
	if a.Resolved {
		return
	}
	now := time.Now().UTC()
	a.Resolved = true
	a.ResolvedAt = &now
}
