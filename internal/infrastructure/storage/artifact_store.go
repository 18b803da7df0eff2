package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/govtravel/backoffice/internal/domain/invoicing"
	"go.uber.org/zap"
)

// S3ArtifactStore uploads download artifacts and hands back a presigned
// link instead of streaming the bytes through the API
type S3ArtifactStore struct {
	bucket *Bucket
	prefix string
	logger *zap.Logger
	now    func() time.Time
}

// NewS3ArtifactStore creates an artifact store writing under prefix
func NewS3ArtifactStore(bucket *Bucket, prefix string, logger *zap.Logger) *S3ArtifactStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3ArtifactStore{
		bucket: bucket,
		prefix: prefix,
		logger: logger,
		now:    time.Now,
	}
}

// Save uploads the artifact.
// Key structure: {prefix}/{yyyy}/{mm}/{dd}/{uuid}/{file name}
func (s *S3ArtifactStore) Save(ctx context.Context, artifact *invoicing.DownloadArtifact) (*invoicing.SavedArtifact, error) {
	if artifact == nil || len(artifact.Data) == 0 {
		return nil, errors.New("artifact is empty")
	}

	now := s.now().UTC()
	key := objectKey(s.prefix, now.Format("2006/01/02"), uuid.NewString(), artifact.FileName)

	if err := s.bucket.Upload(ctx, key, artifact.Data, artifact.ContentType); err != nil {
		return nil, fmt.Errorf("failed to store artifact %s: %w", artifact.FileName, err)
	}

	url, expiresAt, err := s.bucket.DownloadURL(ctx, key, artifact.FileName, 0)
	if err != nil {
		return nil, err
	}

	s.logger.Info("artifact stored",
		zap.String("key", key),
		zap.Int("size", len(artifact.Data)),
		zap.Bool("archived", artifact.Archived))

	return &invoicing.SavedArtifact{Key: key, URL: url, ExpiresAt: expiresAt}, nil
}

// S3PrintSink drops printed PDFs into the spool prefix a print server polls
type S3PrintSink struct {
	bucket *Bucket
	prefix string
	logger *zap.Logger
	now    func() time.Time
}

// NewS3PrintSink creates a print sink writing under prefix
func NewS3PrintSink(bucket *Bucket, prefix string, logger *zap.Logger) *S3PrintSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3PrintSink{
		bucket: bucket,
		prefix: prefix,
		logger: logger,
		now:    time.Now,
	}
}

// Submit uploads the PDF.
// Key structure: {prefix}/{yyyy}/{mm}/{label}-{uuid}.pdf
func (s *S3PrintSink) Submit(ctx context.Context, out *invoicing.PrintOutput) error {
	if out == nil || len(out.PDF) == 0 {
		return errors.New("PDF data is empty")
	}

	now := s.now().UTC()
	name := invoicing.SanitizeLabel(out.DocumentLabel) + "-" + uuid.NewString() + ".pdf"
	key := objectKey(s.prefix, now.Format("2006/01"), name)

	if err := s.bucket.Upload(ctx, key, out.PDF, "application/pdf"); err != nil {
		return err
	}

	s.logger.Info("PDF spooled",
		zap.String("bucket", s.bucket.Name()),
		zap.String("key", key),
		zap.String("document_label", out.DocumentLabel))
	return nil
}

var (
	_ invoicing.ArtifactStore = (*S3ArtifactStore)(nil)
	_ invoicing.PrintSink     = (*S3PrintSink)(nil)
)
