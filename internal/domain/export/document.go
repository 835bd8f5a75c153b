package export

import (
	"regexp"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/seoforge/seoforge-backend/internal/domain/errors"
)

// Format identifies one of the supported export formats.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatPDF   Format = "pdf"
	FormatExcel Format = "excel"
	FormatTXT   Format = "txt"
	FormatHTML  Format = "html"
)

// Valid reports whether the format is in the closed set.
func (f Format) Valid() bool {
	switch f {
	case FormatCSV, FormatJSON, FormatPDF, FormatExcel, FormatTXT, FormatHTML:
		return true
	}
	return false
}

// Extension returns the artifact file extension for the format.
func (f Format) Extension() string {
	if f == FormatExcel {
		return "xlsx"
	}
	return string(f)
}

// Template identifies a report template. Template selection is recorded in
// export metadata but does not change the generated layout.
type Template string

const (
	TemplateExecutive    Template = "executive"
	TemplateTechnical    Template = "technical"
	TemplateComparison   Template = "comparison"
	TemplateChecklist    Template = "checklist"
	TemplatePresentation Template = "presentation"
)

// Valid reports whether the template is in the closed set. Empty is
// allowed; it means no template was selected.
func (t Template) Valid() bool {
	switch t {
	case "", TemplateExecutive, TemplateTechnical, TemplateComparison,
		TemplateChecklist, TemplatePresentation:
		return true
	}
	return false
}

// Chart describes a renderable chart region attached to a document.
type Chart struct {
	ID    string      `json:"id"`
	Title string      `json:"title"`
	Type  string      `json:"type"`
	Data  interface{} `json:"data"`
}

// Document is the canonical interchange type every format handler
// consumes. Handlers read it; none of them mutates it.
type Document struct {
	ToolName        string                 `json:"toolName" validate:"required"`
	AnalysisDate    string                 `json:"analysisDate" validate:"required"`
	URL             string                 `json:"url,omitempty"`
	Metrics         map[string]interface{} `json:"metrics" validate:"required"`
	Charts          []Chart                `json:"charts,omitempty"`
	Recommendations []string               `json:"recommendations,omitempty"`
	Notes           string                 `json:"notes,omitempty"`
}

// Sections gates inclusion of optional report sections.
type Sections struct {
	Summary         bool `json:"summary"`
	Charts          bool `json:"charts"`
	Detailed        bool `json:"detailed"`
	Recommendations bool `json:"recommendations"`
	Notes           bool `json:"notes"`
}

// AllSections enables every optional section.
func AllSections() Sections {
	return Sections{Summary: true, Charts: true, Detailed: true, Recommendations: true, Notes: true}
}

// Colors holds branding colors as hex strings.
type Colors struct {
	Primary   string `json:"primary,omitempty"`
	Secondary string `json:"secondary,omitempty"`
}

// Branding customizes generated artifacts.
type Branding struct {
	CompanyName string `json:"companyName,omitempty"`
	Colors      Colors `json:"colors,omitempty"`
}

// Options configures a single export.
type Options struct {
	Format          Format   `json:"format" validate:"required"`
	Template        Template `json:"template,omitempty"`
	IncludeSections Sections `json:"includeSections"`
	Branding        Branding `json:"branding,omitempty"`
	CustomNotes     string   `json:"customNotes,omitempty"`
}

// Progress is emitted through the caller's callback as an export advances.
// Transient: never persisted.
type Progress struct {
	Stage    string `json:"stage"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
}

// ProgressFunc receives progress updates. A nil callback is allowed.
type ProgressFunc func(Progress)

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// ValidColor reports whether s is a safe hex color. Branding colors are
// caller-supplied and end up inside generated CSS, so anything that is not
// a plain hex triplet is rejected.
func ValidColor(s string) bool {
	return hexColor.MatchString(s)
}

var validate = validator.New()

// ValidateDocument checks the document's required shape.
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return errors.NewValidationError("MISSING_DOCUMENT", "export document is required")
	}
	if err := validate.Struct(doc); err != nil {
		return errors.NewValidationError("INVALID_DOCUMENT", "export document failed validation").WithCause(err)
	}
	return nil
}

// ValidateOptions checks format and template membership. Handlers are
// responsible for defensive access beyond this.
func ValidateOptions(opts Options) error {
	if !opts.Format.Valid() {
		return errors.NewUnsupportedFormatError(string(opts.Format))
	}
	if !opts.Template.Valid() {
		return errors.NewValidationError("INVALID_TEMPLATE",
			"template must be one of executive, technical, comparison, checklist, presentation")
	}
	return nil
}

// ArtifactName builds the exported file name: <toolName>_<epochMillis>.<ext>.
func ArtifactName(toolName string, format Format, now time.Time) string {
	return sanitizeToolName(toolName) + "_" + strconv.FormatInt(now.UnixMilli(), 10) + "." + format.Extension()
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func sanitizeToolName(name string) string {
	cleaned := unsafeName.ReplaceAllString(name, "_")
	if cleaned == "" {
		return "export"
	}
	return cleaned
}
