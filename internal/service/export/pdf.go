package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/seoforge/seoforge-backend/internal/domain/export"
)

// pdfHandler produces a paginated document through a minimal PDF 1.4
// writer: Helvetica text, line wrapping, and automatic page breaks past
// the safe vertical margin. A failed chart is logged and skipped; it never
// aborts the rest of the document.
type pdfHandler struct {
	logger *zap.Logger
}

func newPDFHandler(logger *zap.Logger) *pdfHandler {
	return &pdfHandler{logger: logger}
}

func (h *pdfHandler) Format() export.Format {
	return export.FormatPDF
}

func (h *pdfHandler) Render(ctx context.Context, doc *export.Document, opts export.Options, w io.Writer) error {
	page := newPDFBuilder()

	primary, _ := resolveColors(opts.Branding)

	if opts.Branding.CompanyName != "" {
		page.colorLine(opts.Branding.CompanyName, 10, primary)
		page.space(6)
	}

	page.boldLine(doc.ToolName, 18)
	page.space(4)
	page.line("Generated: "+time.Now().UTC().Format(time.RFC3339), 9)
	page.line("Analysis date: "+doc.AnalysisDate, 9)
	if doc.URL != "" {
		page.line("URL: "+doc.URL, 9)
	}
	page.space(12)

	if opts.IncludeSections.Summary {
		page.colorLine("Metrics", 13, primary)
		page.space(4)
		for _, key := range sortedMetricKeys(doc.Metrics) {
			page.wrapLine(fmt.Sprintf("%s    %s", key, formatValue(doc.Metrics[key])), 10, 10)
		}
		page.space(12)
	}

	if opts.IncludeSections.Charts && len(doc.Charts) > 0 {
		page.colorLine("Charts", 13, primary)
		page.space(4)
		for _, chart := range doc.Charts {
			lines, err := describeChart(chart)
			if err != nil {
				h.logger.Warn("skipping unrenderable chart",
					zap.String("chart_id", chart.ID),
					zap.String("tool", doc.ToolName),
					zap.Error(err))
				continue
			}
			for _, line := range lines {
				page.wrapLine(line, 10, 10)
			}
			page.space(6)
		}
		page.space(6)
	}

	if opts.IncludeSections.Recommendations && len(doc.Recommendations) > 0 {
		page.colorLine("Recommendations", 13, primary)
		page.space(4)
		for i, rec := range doc.Recommendations {
			page.wrapLine(fmt.Sprintf("%d. %s", i+1, rec), 10, 10)
		}
		page.space(12)
	}

	if opts.CustomNotes != "" {
		page.colorLine("Notes", 13, primary)
		page.space(4)
		page.wrapLine(opts.CustomNotes, 10, 10)
	}

	return page.writeTo(w)
}

// describeChart renders a chart as a text block. There is no raster
// backend on the server, so charts appear as data summaries.
func describeChart(chart export.Chart) ([]string, error) {
	if chart.Data == nil {
		return nil, fmt.Errorf("chart %q has no data", chart.ID)
	}

	data, err := json.Marshal(chart.Data)
	if err != nil {
		return nil, fmt.Errorf("chart %q data is not serializable: %w", chart.ID, err)
	}

	summary := string(data)
	if len(summary) > 300 {
		summary = summary[:300] + "..."
	}

	title := chart.Title
	if title == "" {
		title = chart.ID
	}

	return []string{
		fmt.Sprintf("%s (%s)", title, chart.Type),
		summary,
	}, nil
}

// A4 in points. Content breaks to a new page once the cursor passes
// breakY, which mirrors the 250/297 safe margin of the printed page.
const (
	pageWidth  = 595.0
	pageHeight = 842.0
	marginLeft = 50.0
	marginTop  = 50.0
	breakY     = pageHeight * 250.0 / 297.0
)

// pdfBuilder accumulates page content streams and serializes the final
// object graph with a cross-reference table.
type pdfBuilder struct {
	pages   []string
	current strings.Builder
	used    float64
}

func newPDFBuilder() *pdfBuilder {
	b := &pdfBuilder{}
	b.used = marginTop
	return b
}

// advance moves the cursor down, breaking the page when the cursor passes
// the safe margin.
func (b *pdfBuilder) advance(height float64) {
	if b.used+height > breakY {
		b.breakPage()
	}
	b.used += height
}

func (b *pdfBuilder) breakPage() {
	b.pages = append(b.pages, b.current.String())
	b.current.Reset()
	b.used = marginTop
}

func (b *pdfBuilder) space(height float64) {
	b.advance(height)
}

func (b *pdfBuilder) textAt(text string, size, indent float64, bold bool, rgb [3]float64) {
	b.advance(size + 4)
	y := pageHeight - b.used

	font := "/F1"
	if bold {
		font = "/F2"
	}

	fmt.Fprintf(&b.current, "BT %s %s Tf %s %s %s rg %s %s Td (%s) Tj ET\n",
		font,
		formatFloat(size),
		formatFloat(rgb[0]), formatFloat(rgb[1]), formatFloat(rgb[2]),
		formatFloat(marginLeft+indent),
		formatFloat(y),
		escapePDFText(text))
}

func (b *pdfBuilder) line(text string, size float64) {
	b.textAt(text, size, 0, false, [3]float64{0, 0, 0})
}

func (b *pdfBuilder) boldLine(text string, size float64) {
	b.textAt(text, size, 0, true, [3]float64{0, 0, 0})
}

func (b *pdfBuilder) colorLine(text string, size float64, hexColor string) {
	b.textAt(text, size, 0, true, hexToRGB(hexColor))
}

// wrapLine splits long text across lines at an approximate character
// budget for the font size.
func (b *pdfBuilder) wrapLine(text string, size, indent float64) {
	// Helvetica averages a bit over half the point size per glyph.
	budget := int((pageWidth - 2*marginLeft - indent) / (size * 0.55))
	if budget < 10 {
		budget = 10
	}

	for _, line := range wrapText(text, budget) {
		b.textAt(line, size, indent, false, [3]float64{0, 0, 0})
	}
}

func (b *pdfBuilder) writeTo(w io.Writer) error {
	pages := append(append([]string(nil), b.pages...), b.current.String())

	// Object layout: 1 catalog, 2 pages, 3 regular font, 4 bold font,
	// then a page object and a content stream per page.
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		pagesObject(len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica-Bold >>",
	}

	for i, content := range pages {
		pageNum := 5 + i*2
		objects = append(objects, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %s %s] /Resources << /Font << /F1 3 0 R /F2 4 0 R >> >> /Contents %d 0 R >>",
			formatFloat(pageWidth), formatFloat(pageHeight), pageNum+1))
		objects = append(objects, fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", len(content), content))
	}

	var out strings.Builder
	out.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects)+1)
	for i, obj := range objects {
		offsets[i+1] = out.Len()
		fmt.Fprintf(&out, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xrefStart := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n", len(objects)+1)
	out.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(objects); i++ {
		fmt.Fprintf(&out, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&out, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xrefStart)

	_, err := io.WriteString(w, out.String())
	return err
}

func pagesObject(count int) string {
	kids := make([]string, count)
	for i := 0; i < count; i++ {
		kids[i] = fmt.Sprintf("%d 0 R", 5+i*2)
	}
	return fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), count)
}

var pdfTextEscaper = strings.NewReplacer(
	`\`, `\\`,
	"(", `\(`,
	")", `\)`,
	"\r", " ",
	"\n", " ",
)

func escapePDFText(s string) string {
	return pdfTextEscaper.Replace(s)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func hexToRGB(hexColor string) [3]float64 {
	s := strings.TrimPrefix(hexColor, "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return [3]float64{0, 0, 0}
	}

	var rgb [3]float64
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseUint(s[i*2:i*2+2], 16, 8)
		if err != nil {
			return [3]float64{0, 0, 0}
		}
		rgb[i] = float64(v) / 255.0
	}
	return rgb
}

// wrapText splits text into lines no longer than budget characters,
// breaking on spaces where possible.
func wrapText(text string, budget int) []string {
	if len(text) <= budget {
		return []string{text}
	}

	var lines []string
	words := strings.Fields(text)
	var line strings.Builder

	for _, word := range words {
		if line.Len() > 0 && line.Len()+1+len(word) > budget {
			lines = append(lines, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteByte(' ')
		}
		// Hard-break words longer than the whole budget.
		for len(word) > budget {
			lines = append(lines, word[:budget])
			word = word[budget:]
		}
		line.WriteString(word)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	if len(lines) == 0 {
		lines = []string{""}
	}
	return lines
}
