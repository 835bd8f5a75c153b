package export

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/seoforge/seoforge-backend/internal/domain/export"
)

// textHandler produces a plain labeled-sections dump with no styling.
type textHandler struct{}

func newTextHandler() *textHandler {
	return &textHandler{}
}

func (h *textHandler) Format() export.Format {
	return export.FormatTXT
}

func (h *textHandler) Render(ctx context.Context, doc *export.Document, opts export.Options, w io.Writer) error {
	var b strings.Builder

	banner := strings.Repeat("=", 60)
	b.WriteString(banner + "\n")
	fmt.Fprintf(&b, "  %s\n", doc.ToolName)
	b.WriteString(banner + "\n\n")

	fmt.Fprintf(&b, "Analysis date: %s\n", doc.AnalysisDate)
	fmt.Fprintf(&b, "Export date:   %s\n", time.Now().UTC().Format(time.RFC3339))
	if doc.URL != "" {
		fmt.Fprintf(&b, "URL:           %s\n", doc.URL)
	}
	b.WriteString("\n")

	if opts.IncludeSections.Summary || opts.IncludeSections.Detailed {
		b.WriteString("METRICS\n")
		b.WriteString(strings.Repeat("-", 60) + "\n")
		for _, key := range sortedMetricKeys(doc.Metrics) {
			fmt.Fprintf(&b, "%s: %s\n", key, formatValue(doc.Metrics[key]))
		}
		b.WriteString("\n")
	}

	if opts.IncludeSections.Recommendations && len(doc.Recommendations) > 0 {
		b.WriteString("RECOMMENDATIONS\n")
		b.WriteString(strings.Repeat("-", 60) + "\n")
		for i, rec := range doc.Recommendations {
			fmt.Fprintf(&b, "%d. %s\n", i+1, rec)
		}
		b.WriteString("\n")
	}

	if opts.IncludeSections.Notes && doc.Notes != "" {
		b.WriteString("NOTES\n")
		b.WriteString(strings.Repeat("-", 60) + "\n")
		b.WriteString(doc.Notes + "\n\n")
	}

	if opts.CustomNotes != "" {
		b.WriteString("CUSTOM NOTES\n")
		b.WriteString(strings.Repeat("-", 60) + "\n")
		b.WriteString(opts.CustomNotes + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
