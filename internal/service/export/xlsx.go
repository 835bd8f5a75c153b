package export

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/seoforge/seoforge-backend/internal/domain/export"
)

// workbookHandler emits a minimal OOXML workbook: a Summary sheet with
// key/value rows and an optional Recommendations sheet. Sheets use inline
// strings, so no shared-strings part is needed.
type workbookHandler struct{}

func newWorkbookHandler() *workbookHandler {
	return &workbookHandler{}
}

func (h *workbookHandler) Format() export.Format {
	return export.FormatExcel
}

func (h *workbookHandler) Render(ctx context.Context, doc *export.Document, opts export.Options, w io.Writer) error {
	withRecommendations := opts.IncludeSections.Recommendations && len(doc.Recommendations) > 0

	archive := zip.NewWriter(w)

	parts := []struct {
		name    string
		content string
	}{
		{"[Content_Types].xml", contentTypesXML(withRecommendations)},
		{"_rels/.rels", rootRelsXML},
		{"xl/workbook.xml", workbookXML(withRecommendations)},
		{"xl/_rels/workbook.xml.rels", workbookRelsXML(withRecommendations)},
		{"xl/worksheets/sheet1.xml", h.summarySheet(doc)},
	}
	if withRecommendations {
		parts = append(parts, struct {
			name    string
			content string
		}{"xl/worksheets/sheet2.xml", h.recommendationsSheet(doc)})
	}

	for _, part := range parts {
		f, err := archive.Create(part.name)
		if err != nil {
			return fmt.Errorf("creating workbook part %s: %w", part.name, err)
		}
		if _, err := io.WriteString(f, part.content); err != nil {
			return fmt.Errorf("writing workbook part %s: %w", part.name, err)
		}
	}

	return archive.Close()
}

func (h *workbookHandler) summarySheet(doc *export.Document) string {
	rows := [][]string{
		{"Tool", doc.ToolName},
		{"Analysis Date", doc.AnalysisDate},
		{"Export Date", time.Now().UTC().Format(time.RFC3339)},
	}
	if doc.URL != "" {
		rows = append(rows, []string{"URL", doc.URL})
	}
	rows = append(rows, []string{})
	for _, key := range sortedMetricKeys(doc.Metrics) {
		rows = append(rows, []string{key, formatValue(doc.Metrics[key])})
	}

	return sheetXML(rows)
}

func (h *workbookHandler) recommendationsSheet(doc *export.Document) string {
	rows := make([][]string, 0, len(doc.Recommendations))
	for _, rec := range doc.Recommendations {
		rows = append(rows, []string{rec})
	}
	return sheetXML(rows)
}

// sheetXML renders rows as a worksheet with inline string cells.
func sheetXML(rows [][]string) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData>`)

	for _, row := range rows {
		b.WriteString("<row>")
		for _, cell := range row {
			b.WriteString(`<c t="inlineStr"><is><t>`)
			b.WriteString(escapeXML(cell))
			b.WriteString(`</t></is></c>`)
		}
		b.WriteString("</row>")
	}

	b.WriteString(`</sheetData></worksheet>`)
	return b.String()
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}

const xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

const rootRelsXML = xmlHeader + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="xl/workbook.xml"/>` +
	`</Relationships>`

func contentTypesXML(withRecommendations bool) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`)
	b.WriteString(`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`)
	b.WriteString(`<Default Extension="xml" ContentType="application/xml"/>`)
	b.WriteString(`<Override PartName="/xl/workbook.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.sheet.main+xml"/>`)
	b.WriteString(`<Override PartName="/xl/worksheets/sheet1.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.worksheet+xml"/>`)
	if withRecommendations {
		b.WriteString(`<Override PartName="/xl/worksheets/sheet2.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.worksheet+xml"/>`)
	}
	b.WriteString(`</Types>`)
	return b.String()
}

func workbookXML(withRecommendations bool) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"><sheets>`)
	b.WriteString(`<sheet name="Summary" sheetId="1" r:id="rId1"/>`)
	if withRecommendations {
		b.WriteString(`<sheet name="Recommendations" sheetId="2" r:id="rId2"/>`)
	}
	b.WriteString(`</sheets></workbook>`)
	return b.String()
}

func workbookRelsXML(withRecommendations bool) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	b.WriteString(`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet1.xml"/>`)
	if withRecommendations {
		b.WriteString(`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet2.xml"/>`)
	}
	b.WriteString(`</Relationships>`)
	return b.String()
}
