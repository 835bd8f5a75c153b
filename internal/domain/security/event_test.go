package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		event, err := NewEvent(EventInvalidInput, SeverityLow, map[string]interface{}{"field": "url"})
		require.NoError(t, err)
		assert.NotEqual(t, "", event.ID.String())
		assert.False(t, event.IsSealed())
		assert.False(t, event.Timestamp.IsZero())
	})

	t.Run("missing kind", func(t *testing.T) {
		_, err := NewEvent("", SeverityLow, nil)
		assert.Error(t, err)
	})

	t.Run("invalid severity", func(t *testing.T) {
		_, err := NewEvent(EventInvalidInput, Severity("urgent"), nil)
		assert.Error(t, err)
	})

	t.Run("nil details become empty map", func(t *testing.T) {
		event, err := NewEvent(EventInvalidInput, SeverityLow, nil)
		require.NoError(t, err)
		assert.NotNil(t, event.Details)
	})
}

func TestEvent_Seal(t *testing.T) {
	event, err := NewEvent(EventSuspiciousActivity, SeverityHigh, map[string]interface{}{"ip": "10.0.0.1"})
	require.NoError(t, err)

	hash, err := event.Seal()
	require.NoError(t, err)
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, event.EventHash)
	assert.True(t, event.IsSealed())

	// Sealing twice would allow silent mutation.
	_, err = event.Seal()
	assert.Error(t, err)
}

func TestEvent_SealDeterminedByContent(t *testing.T) {
	a, err := NewEvent(EventInvalidInput, SeverityLow, map[string]interface{}{"n": 1})
	require.NoError(t, err)
	b, err := NewEvent(EventInvalidInput, SeverityLow, map[string]interface{}{"n": 1})
	require.NoError(t, err)

	hashA, err := a.Seal()
	require.NoError(t, err)
	hashB, err := b.Seal()
	require.NoError(t, err)

	// Distinct IDs and timestamps feed the hash.
	assert.NotEqual(t, hashA, hashB)
}

func TestEvent_IsPattern(t *testing.T) {
	pattern, err := NewEvent(PatternRapidFire, SeverityHigh, nil)
	require.NoError(t, err)
	assert.True(t, pattern.IsPattern())

	plain, err := NewEvent(EventRateLimitExceeded, SeverityMedium, nil)
	require.NoError(t, err)
	assert.False(t, plain.IsPattern())
}

func TestSeverity(t *testing.T) {
	assert.True(t, SeverityLow.Valid())
	assert.True(t, SeverityCritical.Valid())
	assert.False(t, Severity("urgent").Valid())

	assert.Equal(t, 20, SeverityCritical.ScoreWeight())
	assert.Equal(t, 10, SeverityHigh.ScoreWeight())
	assert.Equal(t, 5, SeverityMedium.ScoreWeight())
	assert.Equal(t, 1, SeverityLow.ScoreWeight())
}

func TestAlert_Resolve(t *testing.T) {
	alert, err := NewAlert("intrusion", SeverityCritical, "message", nil)
	require.NoError(t, err)
	assert.False(t, alert.Resolved)
	assert.Nil(t, alert.ResolvedAt)

	alert.Resolve()
	require.True(t, alert.Resolved)
	require.NotNil(t, alert.ResolvedAt)
	first := *alert.ResolvedAt

	// A second resolve keeps the original timestamp.
	alert.Resolve()
	assert.Equal(t, first, *alert.ResolvedAt)
}

func TestNewAlert_Validation(t *testing.T) {
	_, err := NewAlert("", SeverityHigh, "m", nil)
	assert.Error(t, err)

	_, err = NewAlert("type", Severity("nope"), "m", nil)
	assert.Error(t, err)
}
