package security

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/seoforge/seoforge-backend/internal/domain/errors"
)

// Severity classifies how serious a security event is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether the severity is one of the known levels.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// ScoreWeight is the amount an unresolved alert of this severity subtracts
// from the trailing-24h security score.
func (s Severity) ScoreWeight() int {
	switch s {
	case SeverityCritical:
		return 20
	case SeverityHigh:
		return 10
	case SeverityMedium:
		return 5
	default:
		return 1
	}
}

// Well-known event kinds. Callers may log arbitrary kinds; these are the
// ones the rest of the system branches on.
const (
	EventRateLimitExceeded  = "rate_limit_exceeded"
	EventInvalidInput       = "invalid_input"
	EventIntegrityViolation = "cache_integrity_violation"
	EventSuspiciousActivity = "suspicious_activity"
)

// PatternKindPrefix marks events synthesized by pattern analysis. Events
// carrying this prefix are excluded from re-analysis so a pattern alert
// cannot trigger itself.
const PatternKindPrefix = "pattern."

const (
	PatternRapidFire   = PatternKindPrefix + "rapid_fire"
	PatternMultiVector = PatternKindPrefix + "multi_vector"
)

// Event is an immutable security log entry. Once sealed via Seal, it is
// append-only: nothing mutates it afterwards.
type Event struct {
	ID        uuid.UUID              `json:"id"`
	Kind      string                 `json:"kind"`
	Severity  Severity               `json:"severity"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	// EventHash is the SHA-256 digest of the sealed event fields.
	EventHash string `json:"event_hash"`

	sealed bool
}

// NewEvent creates a security event with validation.
func NewEvent(kind string, severity Severity, details map[string]interface{}) (*Event, error) {
	if kind == "" {
		return nil, errors.NewValidationError("MISSING_KIND", "event kind is required")
	}
	if !severity.Valid() {
		return nil, errors.NewValidationError("INVALID_SEVERITY",
			fmt.Sprintf("severity %q must be one of low, medium, high, critical", severity))
	}

	if details == nil {
		details = make(map[string]interface{})
	}

	return &Event{
		ID:        uuid.New(),
		Kind:      kind,
		Severity:  severity,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}, nil
}

// IsPattern reports whether the event was synthesized by pattern analysis.
func (e *Event) IsPattern() bool {
	return strings.HasPrefix(e.Kind, PatternKindPrefix)
}

// Seal computes the event hash and marks the event immutable.
func (e *Event) Seal() (string, error) {
	if e.sealed {
		return "", errors.NewValidationError("EVENT_SEALED", "cannot seal an already sealed event")
	}

	hashData := map[string]interface{}{
		"id":        e.ID.String(),
		"kind":      e.Kind,
		"severity":  string(e.Severity),
		"timestamp": e.Timestamp.UnixNano(),
		"details":   e.Details,
	}

	jsonBytes, err := json.Marshal(hashData)
	if err != nil {
		return "", errors.NewInternalError("failed to marshal event hash data").WithCause(err)
	}

	hash := sha256.Sum256(jsonBytes)
	e.EventHash = fmt.Sprintf("%x", hash)
	e.sealed = true

	return e.EventHash, nil
}

// IsSealed reports whether the event has been made immutable.
func (e *Event) IsSealed() bool {
	return e.sealed
}
