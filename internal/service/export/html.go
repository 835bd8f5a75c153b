package export

import (
	"context"
	"html/template"
	"io"
	"time"

	"github.com/seoforge/seoforge-backend/internal/domain/export"
)

// htmlHandler renders a single self-contained document with inlined CSS.
// All user- and tool-supplied strings pass through html/template's
// contextual escaping, so hostile metric values or notes cannot break the
// markup.
type htmlHandler struct {
	tmpl *template.Template
}

func newHTMLHandler() *htmlHandler {
	return &htmlHandler{
		tmpl: template.Must(template.New("report").Parse(htmlReport)),
	}
}

func (h *htmlHandler) Format() export.Format {
	return export.FormatHTML
}

type htmlMetric struct {
	Key   string
	Value string
}

type htmlData struct {
	ToolName        string
	AnalysisDate    string
	ExportDate      string
	URL             string
	CompanyName     string
	Primary         template.CSS
	Secondary       template.CSS
	Metrics         []htmlMetric
	Recommendations []string
	Notes           string
	CustomNotes     string
}

func (h *htmlHandler) Render(ctx context.Context, doc *export.Document, opts export.Options, w io.Writer) error {
	primary, secondary := resolveColors(opts.Branding)

	data := htmlData{
		ToolName:     doc.ToolName,
		AnalysisDate: doc.AnalysisDate,
		ExportDate:   time.Now().UTC().Format(time.RFC3339),
		URL:          doc.URL,
		CompanyName:  opts.Branding.CompanyName,
		// Colors are validated hex triplets; safe to mark as CSS.
		Primary:   template.CSS(primary),
		Secondary: template.CSS(secondary),
	}

	if opts.IncludeSections.Summary || opts.IncludeSections.Detailed {
		for _, key := range sortedMetricKeys(doc.Metrics) {
			data.Metrics = append(data.Metrics, htmlMetric{Key: key, Value: formatValue(doc.Metrics[key])})
		}
	}
	if opts.IncludeSections.Recommendations {
		data.Recommendations = doc.Recommendations
	}
	if opts.IncludeSections.Notes {
		data.Notes = doc.Notes
	}
	data.CustomNotes = opts.CustomNotes

	return h.tmpl.Execute(w, data)
}

const htmlReport = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.ToolName}} Report</title>
<style>
  :root { --primary: {{.Primary}}; --secondary: {{.Secondary}}; }
  body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 0; color: #1e293b; }
  header { background: var(--primary); color: #fff; padding: 24px 32px; }
  header h1 { margin: 0 0 4px 0; font-size: 24px; }
  header .meta { color: rgba(255,255,255,.85); font-size: 13px; }
  main { padding: 32px; max-width: 960px; margin: 0 auto; }
  h2 { color: var(--primary); border-bottom: 2px solid var(--primary); padding-bottom: 6px; }
  .metrics { display: grid; grid-template-columns: repeat(auto-fill, minmax(220px, 1fr)); gap: 16px; }
  .metric { border: 1px solid #e2e8f0; border-radius: 8px; padding: 16px; }
  .metric .key { color: var(--secondary); font-size: 12px; text-transform: uppercase; }
  .metric .value { font-size: 20px; font-weight: 600; margin-top: 4px; }
  .recommendation { border-left: 4px solid var(--primary); background: #f8fafc; padding: 12px 16px; margin: 8px 0; }
  .notes { background: #f8fafc; border-radius: 8px; padding: 16px; white-space: pre-wrap; }
  footer { color: var(--secondary); font-size: 12px; padding: 16px 32px; }
</style>
</head>
<body>
<header>
{{- if .CompanyName}}
  <div class="meta">{{.CompanyName}}</div>
{{- end}}
  <h1>{{.ToolName}}</h1>
  <div class="meta">Analysis: {{.AnalysisDate}} &middot; Exported: {{.ExportDate}}{{if .URL}} &middot; {{.URL}}{{end}}</div>
</header>
<main>
{{- if .Metrics}}
  <h2>Metrics</h2>
  <div class="metrics">
{{- range .Metrics}}
    <div class="metric"><div class="key">{{.Key}}</div><div class="value">{{.Value}}</div></div>
{{- end}}
  </div>
{{- end}}
{{- if .Recommendations}}
  <h2>Recommendations</h2>
{{- range .Recommendations}}
  <div class="recommendation">{{.}}</div>
{{- end}}
{{- end}}
{{- if .Notes}}
  <h2>Notes</h2>
  <div class="notes">{{.Notes}}</div>
{{- end}}
{{- if .CustomNotes}}
  <h2>Custom Notes</h2>
  <div class="notes">{{.CustomNotes}}</div>
{{- end}}
</main>
<footer>Generated by SEOForge</footer>
</body>
</html>
`
