package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/adminkit/pkg/apperrors"
	"github.com/platinummonkey/adminkit/pkg/contextkeys"
	"github.com/platinummonkey/adminkit/pkg/observability"
	"github.com/platinummonkey/adminkit/pkg/search"
)

var tracer = otel.Tracer("adminkit/export")

// FileExt is the extension of every export file
const FileExt = ".csv"

// TableSource renders every row of a search. *search.Engine implements it.
type TableSource interface {
	Export(ctx context.Context, req *search.SearchRequest) (*search.Table, error)
}

// Archiver copies finished export files to durable storage
type Archiver interface {
	Archive(ctx context.Context, key string, content []byte, contentType string) error
}

// File describes one written export
type File struct {
	Name       string    `json:"name"`
	Path       string    `json:"-"`
	Query      string    `json:"query"`
	Rows       int       `json:"rows"`
	Size       int64     `json:"size"`
	ArchiveKey string    `json:"archive_key,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Exporter writes search results as CSV files into a directory
type Exporter struct {
	source   TableSource
	dir      string
	archiver Archiver
	metrics  *observability.Metrics
	log      *logrus.Logger
}

// Option configures an Exporter
type Option func(*Exporter)

// WithArchiver uploads every export after it is written
func WithArchiver(a Archiver) Option {
	return func(e *Exporter) { e.archiver = a }
}

// WithMetrics records export counters
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Exporter) { e.metrics = m }
}

// WithLogger sets the logger
func WithLogger(log *logrus.Logger) Option {
	return func(e *Exporter) { e.log = log }
}

// NewExporter creates an exporter writing into dir, creating it if needed
func NewExporter(source TableSource, dir string, opts ...Option) (*Exporter, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "adminkit-exports")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export dir: %w", err)
	}
	e := &Exporter{source: source, dir: dir, log: logrus.New()}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Dir returns the export directory
func (e *Exporter) Dir() string {
	return e.dir
}

// Export runs the search over every matching row and writes the visible
// columns as CSV. The header row holds column labels.
func (e *Exporter) Export(ctx context.Context, req *search.SearchRequest) (*File, error) {
	ctx, span := tracer.Start(ctx, "Exporter.Export",
		trace.WithAttributes(attribute.String("search.query", req.Query)),
	)
	defer span.End()

	table, err := e.source.Export(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, err
	}

	content, err := encodeCSV(table)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to encode csv")
		return nil, err
	}

	name := fmt.Sprintf("%s-%s%s", sanitize(req.Query), uuid.NewString(), FileExt)
	path := filepath.Join(e.dir, name)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write file")
		return nil, fmt.Errorf("failed to write export file: %w", err)
	}

	file := &File{
		Name:      name,
		Path:      path,
		Query:     req.Query,
		Rows:      len(table.Rows),
		Size:      int64(len(content)),
		CreatedAt: time.Now(),
	}
	destination := "local"

	if e.archiver != nil {
		key := archiveKey(ctx, name)
		if err := e.archiver.Archive(ctx, key, content, "text/csv"); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to archive")
			return nil, fmt.Errorf("failed to archive export: %w", err)
		}
		file.ArchiveKey = key
		destination = "s3"
	}

	e.metrics.RecordExport(req.Query, destination)
	e.metrics.RecordExportBytes(ctx, req.Query, file.Size)
	span.SetAttributes(
		attribute.Int("export.rows", file.Rows),
		attribute.Int64("export.size", file.Size),
	)
	span.SetStatus(codes.Ok, "export written")

	observability.FromContext(ctx, e.log).WithFields(logrus.Fields{
		"query":       req.Query,
		"file":        name,
		"rows":        file.Rows,
		"size":        file.Size,
		"destination": destination,
	}).Info("export written")
	return file, nil
}

// Open opens a previously written export by file name
func (e *Exporter) Open(name string) (*os.File, error) {
	const op = "export.Open"
	if name == "" || name != filepath.Base(name) || !strings.HasSuffix(name, FileExt) {
		return nil, apperrors.InvalidArgument(op, "invalid export name %q", name)
	}
	f, err := os.Open(filepath.Join(e.dir, name))
	if os.IsNotExist(err) {
		return nil, apperrors.NotFound(op, "export %q not found", name)
	}
	return f, err
}

// Purge removes export files last modified before now minus retention and
// returns how many were removed
func (e *Exporter) Purge(retention time.Duration) (int, error) {
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read export dir: %w", err)
	}

	cutoff := time.Now().Add(-retention)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != FileExt {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(e.dir, entry.Name())); err != nil && !os.IsNotExist(err) {
			e.log.WithError(err).WithField("file", entry.Name()).Warn("failed to remove export file")
			continue
		}
		removed++
	}

	e.metrics.RecordPurge(removed)
	e.log.WithFields(logrus.Fields{
		"dir":       e.dir,
		"removed":   removed,
		"retention": retention.String(),
	}).Info("export purge complete")
	return removed, nil
}

func encodeCSV(table *search.Table) ([]byte, error) {
	var visible []int
	header := make([]string, 0, len(table.Headers))
	for i, h := range table.Headers {
		if h.Visible {
			visible = append(visible, i)
			header = append(header, h.Label)
		}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	record := make([]string, len(visible))
	for _, row := range table.Rows {
		for j, i := range visible {
			record[j] = row[i]
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteCSV renders a table as CSV to w
func WriteCSV(w io.Writer, table *search.Table) error {
	content, err := encodeCSV(table)
	if err != nil {
		return err
	}
	_, err = w.Write(content)
	return err
}

func archiveKey(ctx context.Context, name string) string {
	space := contextkeys.GetSpace(ctx)
	if space == "" {
		space = "default"
	}
	return "exports/" + sanitize(space) + "/" + name
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}
