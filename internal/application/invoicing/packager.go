package invoicing

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/govtravel/backoffice/internal/domain/invoicing"
	"github.com/govtravel/backoffice/internal/infrastructure/logger"
	"github.com/govtravel/backoffice/internal/infrastructure/telemetry"
	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"
)

const (
	documentExt         = ".html"
	documentContentType = "text/html; charset=utf-8"
	archiveContentType  = "application/zip"
)

// Packager turns the succeeded items of a batch into one download artifact
type Packager struct {
	now     func() time.Time
	logger  *zap.Logger
	metrics *telemetry.DocumentMetrics
}

// PackagerOption is a functional option for configuring Packager
type PackagerOption func(*Packager)

// WithClock sets the clock used to name archives
func WithClock(now func() time.Time) PackagerOption {
	return func(p *Packager) {
		if now != nil {
			p.now = now
		}
	}
}

// WithPackagerLogger sets the logger
func WithPackagerLogger(l *zap.Logger) PackagerOption {
	return func(p *Packager) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithPackagerMetrics sets the metrics recorder
func WithPackagerMetrics(m *telemetry.DocumentMetrics) PackagerOption {
	return func(p *Packager) {
		p.metrics = m
	}
}

// NewPackager creates a Packager
func NewPackager(opts ...PackagerOption) *Packager {
	p := &Packager{
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Package builds the artifact. One succeeded document is delivered as-is
// under its own label; several are wrapped in a dated zip archive. Failed
// items are left out. A batch without successes yields ErrPackagingEmpty.
func (p *Packager) Package(ctx context.Context, batch invoicing.Batch) (*invoicing.DownloadArtifact, error) {
	docs := batch.SucceededDocuments()
	summary := batch.Summary()
	failed := summary.Total - summary.Succeeded

	switch len(docs) {
	case 0:
		return nil, invoicing.ErrPackagingEmpty
	case 1:
		doc := docs[0]
		artifact := &invoicing.DownloadArtifact{
			FileName:    doc.FileName(documentExt),
			ContentType: documentContentType,
			Data:        []byte(doc.Content),
			EntryNames:  []string{doc.FileName(documentExt)},
			Succeeded:   1,
			Failed:      failed,
		}
		p.metrics.RecordArtifact(ctx, "html", len(artifact.Data))
		return artifact, nil
	}

	var (
		data  []byte
		names []string
		err   error
	)
	telemetry.WithProfilingLabels(ctx, telemetry.DocumentLabels(telemetry.OperationPackage, ""), func(ctx context.Context) {
		data, names, err = p.archive(ctx, docs)
	})
	if err != nil {
		logger.Enrich(ctx, p.logger).Error("archive compression failed", zap.Error(err))
		return nil, invoicing.NewArchiveCompressionError(err)
	}

	artifact := &invoicing.DownloadArtifact{
		FileName:    ArchiveName(p.now()),
		ContentType: archiveContentType,
		Data:        data,
		Archived:    true,
		EntryNames:  names,
		Succeeded:   len(docs),
		Failed:      failed,
	}
	p.metrics.RecordArtifact(ctx, "zip", len(data))

	logger.Enrich(ctx, p.logger).Info("document archive built",
		zap.String("file", artifact.FileName),
		zap.Int("entries", len(names)),
		zap.Int("size", len(data)))

	return artifact, nil
}

// archive writes one deflated entry per document
func (p *Packager) archive(ctx context.Context, docs []*invoicing.RenderedDocument) ([]byte, []string, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	modified := p.now()

	names := make([]string, 0, len(docs))
	taken := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		name := uniqueEntryName(invoicing.SanitizeLabel(doc.DocumentLabel), taken)
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create archive entry %s: %w", name, err)
		}
		if _, err := w.Write([]byte(doc.Content)); err != nil {
			return nil, nil, fmt.Errorf("failed to write archive entry %s: %w", name, err)
		}
		names = append(names, name)
	}

	if err := zw.Close(); err != nil {
		return nil, nil, fmt.Errorf("failed to finish archive: %w", err)
	}
	return buf.Bytes(), names, nil
}

// uniqueEntryName appends " (2)", " (3)", ... to a label already in the
// archive. Comparison ignores case so entries stay distinct on Windows.
func uniqueEntryName(base string, taken map[string]struct{}) string {
	name := base + documentExt
	for n := 2; ; n++ {
		key := strings.ToLower(name)
		if _, dup := taken[key]; !dup {
			taken[key] = struct{}{}
			return name
		}
		name = fmt.Sprintf("%s (%d)%s", base, n, documentExt)
	}
}

// ArchiveName returns the dated archive file name, e.g. invoices-2024-03-07.zip
func ArchiveName(t time.Time) string {
	return "invoices-" + t.Format("2006-01-02") + ".zip"
}
