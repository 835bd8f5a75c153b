package export

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/seoforge/seoforge-backend/internal/domain/export"
)

// jsonHandler wraps the whole document plus export metadata in one
// pretty-printed object.
type jsonHandler struct{}

func newJSONHandler() *jsonHandler {
	return &jsonHandler{}
}

func (h *jsonHandler) Format() export.Format {
	return export.FormatJSON
}

type jsonEnvelope struct {
	Tool         string           `json:"tool"`
	ExportDate   string           `json:"exportDate"`
	AnalysisDate string           `json:"analysisDate"`
	Data         *export.Document `json:"data"`
	Options      export.Options   `json:"options"`
}

func (h *jsonHandler) Render(ctx context.Context, doc *export.Document, opts export.Options, w io.Writer) error {
	envelope := jsonEnvelope{
		Tool:         doc.ToolName,
		ExportDate:   time.Now().UTC().Format(time.RFC3339),
		AnalysisDate: doc.AnalysisDate,
		Data:         doc,
		Options:      opts,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(envelope)
}
