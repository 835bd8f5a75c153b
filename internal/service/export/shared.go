package export

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/seoforge/seoforge-backend/internal/domain/export"
)

// sortedMetricKeys returns metric keys in a stable order so every handler
// produces deterministic output.
func sortedMetricKeys(metrics map[string]interface{}) []string {
	keys := make([]string, 0, len(metrics))
	for key := range metrics {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// formatValue renders a metric value for textual output.
func formatValue(value interface{}) string {
	if value == nil {
		return ""
	}

	switch v := value.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		// JSON encoding for nested structures
		if data, err := json.Marshal(v); err == nil {
			return string(data)
		}
		return fmt.Sprintf("%v", v)
	}
}

// resolveColors applies defaults and rejects branding colors that are not
// plain hex triplets; anything else would end up inside generated CSS.
func resolveColors(branding export.Branding) (primary, secondary string) {
	primary = "#2563eb"
	secondary = "#64748b"

	if export.ValidColor(branding.Colors.Primary) {
		primary = branding.Colors.Primary
	}
	if export.ValidColor(branding.Colors.Secondary) {
		secondary = branding.Colors.Secondary
	}
	return primary, secondary
}
