package export

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/seoforge/seoforge-backend/internal/domain/export"
)

// csvHandler emits one row per metric key/value pair, with an optional
// recommendations section separated by a blank row.
type csvHandler struct{}

func newCSVHandler() *csvHandler {
	return &csvHandler{}
}

func (h *csvHandler) Format() export.Format {
	return export.FormatCSV
}

func (h *csvHandler) Render(ctx context.Context, doc *export.Document, opts export.Options, w io.Writer) error {
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{"Metric", "Value"}); err != nil {
		return err
	}

	for _, key := range sortedMetricKeys(doc.Metrics) {
		if err := writer.Write([]string{key, formatValue(doc.Metrics[key])}); err != nil {
			return err
		}
	}

	if opts.IncludeSections.Recommendations && len(doc.Recommendations) > 0 {
		if err := writer.Write([]string{""}); err != nil {
			return err
		}
		if err := writer.Write([]string{"Recommandations"}); err != nil {
			return err
		}
		for _, rec := range doc.Recommendations {
			if err := writer.Write([]string{rec}); err != nil {
				return err
			}
		}
	}

	writer.Flush()
	return writer.Error()
}
