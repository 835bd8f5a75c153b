package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/seoforge/seoforge-backend/internal/domain/errors"
	"github.com/seoforge/seoforge-backend/internal/domain/export"
	"github.com/seoforge/seoforge-backend/internal/metrics"
)

// Handler renders a document into one output format.
type Handler interface {
	Format() export.Format
	Render(ctx context.Context, doc *export.Document, opts export.Options, w io.Writer) error
}

// Sink persists a rendered artifact under its final name.
type Sink interface {
	Write(ctx context.Context, name string, data []byte) error
}

// FileSink writes artifacts to a directory on disk.
type FileSink struct {
	dir string
}

func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir}
}

func (s *FileSink) Write(ctx context.Context, name string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("writing artifact: %w", err)
	}
	return nil
}

// Manager dispatches exports to format handlers and reports progress
// through the caller's callback. Exports are never parallelized: each one
// triggers an artifact-save side effect, and batch callers depend on
// strict input ordering.
type Manager struct {
	handlers   map[export.Format]Handler
	sink       Sink
	logger     *zap.Logger
	metrics    *metrics.Registry
	batchDelay time.Duration
	now        func() time.Time
}

// Option customizes a Manager.
type Option func(*Manager)

// WithBatchDelay overrides the pause between batch items.
func WithBatchDelay(d time.Duration) Option {
	return func(m *Manager) { m.batchDelay = d }
}

// WithClock overrides the time source; used by tests for stable artifact
// names.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithHandler replaces the handler for a format; used by tests to observe
// dispatch order.
func WithHandler(h Handler) Option {
	return func(m *Manager) { m.handlers[h.Format()] = h }
}

// NewManager creates a manager with all six format handlers registered.
func NewManager(sink Sink, logger *zap.Logger, reg *metrics.Registry, opts ...Option) (*Manager, error) {
	if sink == nil {
		return nil, fmt.Errorf("sink is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if reg == nil {
		return nil, fmt.Errorf("metrics registry is required")
	}

	m := &Manager{
		handlers:   make(map[export.Format]Handler),
		sink:       sink,
		logger:     logger,
		metrics:    reg,
		batchDelay: 500 * time.Millisecond,
		now:        time.Now,
	}

	for _, h := range []Handler{
		newCSVHandler(),
		newJSONHandler(),
		newWorkbookHandler(),
		newPDFHandler(logger),
		newTextHandler(),
		newHTMLHandler(),
	} {
		m.handlers[h.Format()] = h
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// Export validates the request, renders the document with the format's
// handler, and persists the artifact. Progress callbacks fire in strictly
// increasing order with the terminal complete event last. Handler failures
// propagate; the manager does not retry.
func (m *Manager) Export(ctx context.Context, doc *export.Document, opts export.Options, onProgress export.ProgressFunc) error {
	start := m.now()

	if err := export.ValidateDocument(doc); err != nil {
		return err
	}
	if err := export.ValidateOptions(opts); err != nil {
		return err
	}

	handler, ok := m.handlers[opts.Format]
	if !ok {
		return errors.NewUnsupportedFormatError(string(opts.Format))
	}

	emit := func(stage string, progress int, message string) {
		if onProgress != nil {
			onProgress(export.Progress{Stage: stage, Progress: progress, Message: message})
		}
	}

	emit("start", 0, fmt.Sprintf("exporting %s as %s", doc.ToolName, opts.Format))

	var buf bytes.Buffer
	emit("render", 30, "rendering document")
	if err := handler.Render(ctx, doc, opts, &buf); err != nil {
		m.metrics.ExportsTotal.WithLabelValues(string(opts.Format), "failure").Inc()
		m.logger.Error("export render failed",
			zap.String("tool", doc.ToolName),
			zap.String("format", string(opts.Format)),
			zap.Error(err))
		return errors.NewHandlerError(string(opts.Format), "format handler failed").WithCause(err)
	}

	name := export.ArtifactName(doc.ToolName, opts.Format, m.now())
	emit("write", 80, "saving "+name)
	if err := m.sink.Write(ctx, name, buf.Bytes()); err != nil {
		m.metrics.ExportsTotal.WithLabelValues(string(opts.Format), "failure").Inc()
		return errors.NewHandlerError(string(opts.Format), "failed to save artifact").WithCause(err)
	}

	m.metrics.ExportsTotal.WithLabelValues(string(opts.Format), "success").Inc()
	m.metrics.ExportDuration.WithLabelValues(string(opts.Format)).Observe(m.now().Sub(start).Seconds())

	m.logger.Info("export completed",
		zap.String("tool", doc.ToolName),
		zap.String("format", string(opts.Format)),
		zap.String("artifact", name),
		zap.Int("bytes", buf.Len()))

	emit("complete", 100, "export complete")
	return nil
}

// BatchExport exports documents strictly in input order, one at a time.
// Options fall back to the first entry when the list is shorter than the
// documents. A small delay separates items so the consuming environment is
// not flooded with artifact saves.
func (m *Manager) BatchExport(ctx context.Context, docs []*export.Document, optsList []export.Options, onProgress export.ProgressFunc) error {
	if len(docs) == 0 {
		return nil
	}
	if len(optsList) == 0 {
		return errors.NewValidationError("MISSING_OPTIONS", "at least one options entry is required")
	}

	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return errors.NewInternalError("batch export cancelled").WithCause(err)
		}

		opts := optsList[0]
		if i < len(optsList) {
			opts = optsList[i]
		}

		if onProgress != nil {
			onProgress(export.Progress{
				Stage:    "batch",
				Progress: i * 100 / len(docs),
				Message:  fmt.Sprintf("exporting %d of %d", i+1, len(docs)),
			})
		}

		if err := m.Export(ctx, doc, opts, onProgress); err != nil {
			return err
		}

		if i < len(docs)-1 {
			select {
			case <-ctx.Done():
				return errors.NewInternalError("batch export cancelled").WithCause(ctx.Err())
			case <-time.After(m.batchDelay):
			}
		}
	}

	if onProgress != nil {
		onProgress(export.Progress{Stage: "batch", Progress: 100, Message: "batch complete"})
	}
	return nil
}
