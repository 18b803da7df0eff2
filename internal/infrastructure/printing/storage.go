package printing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/govtravel/backoffice/internal/domain/invoicing"
	"go.uber.org/zap"
)

// SpoolConfig contains configuration for the spool directory sink
type SpoolConfig struct {
	// Dir is the directory watched by the print server
	// Default: /var/spool/backoffice
	Dir string
	// RetentionDays is how long to keep spooled PDFs (0 = forever)
	RetentionDays int
	// Logger for operations
	Logger *zap.Logger
}

// SpoolDirectorySink hands printed documents to a print server by writing
// them into its spool directory
type SpoolDirectorySink struct {
	config *SpoolConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewSpoolDirectorySink creates the spool directory if needed
func NewSpoolDirectorySink(config *SpoolConfig) (*SpoolDirectorySink, error) {
	if config == nil {
		config = &SpoolConfig{}
	}
	if config.Dir == "" {
		config.Dir = "/var/spool/backoffice"
	}

	if err := os.MkdirAll(config.Dir, 0755); err != nil {
		return nil, NewRenderError(ErrCodeStorageFailed,
			fmt.Sprintf("failed to create spool directory: %s", config.Dir), err)
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SpoolDirectorySink{
		config: config,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Submit writes the PDF atomically.
// Path structure: {dir}/{year}/{month}/{label}-{uuid}.pdf
func (s *SpoolDirectorySink) Submit(ctx context.Context, out *invoicing.PrintOutput) error {
	select {
	case <-ctx.Done():
		return NewRenderError(ErrCodeStorageFailed, "operation cancelled", ctx.Err())
	default:
	}

	if out == nil {
		return NewRenderError(ErrCodeStorageFailed, "print output is nil", nil)
	}
	if len(out.PDF) == 0 {
		return NewRenderError(ErrCodeStorageFailed, "PDF data is empty", nil)
	}

	rel, err := s.relativePath(out.DocumentLabel)
	if err != nil {
		return err
	}
	fullPath := filepath.Join(s.config.Dir, rel)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return NewRenderError(ErrCodeStorageFailed, "failed to create directory", err)
	}

	// The print server picks up *.pdf only; rename makes the file appear complete
	tmpPath := fullPath + ".part"
	if err := os.WriteFile(tmpPath, out.PDF, 0644); err != nil {
		return NewRenderError(ErrCodeStorageFailed, "failed to write PDF file", err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		_ = os.Remove(tmpPath)
		return NewRenderError(ErrCodeStorageFailed, "failed to publish PDF file", err)
	}

	s.logger.Info("PDF spooled",
		zap.String("path", fullPath),
		zap.String("document_label", out.DocumentLabel),
		zap.Int("size", len(out.PDF)))

	return nil
}

// relativePath builds the spool path for a label and checks it stays under Dir
func (s *SpoolDirectorySink) relativePath(label string) (string, error) {
	now := s.now()
	name := invoicing.SanitizeLabel(label) + "-" + uuid.NewString() + ".pdf"
	rel := filepath.Join(fmt.Sprintf("%d", now.Year()), fmt.Sprintf("%02d", now.Month()), name)

	if filepath.IsAbs(rel) || containsDotDot(rel) {
		s.logger.Warn("blocked potentially malicious path", zap.String("label", label))
		return "", NewRenderError(ErrCodeStorageFailed, "invalid path", nil)
	}

	absBase, err := filepath.Abs(s.config.Dir)
	if err != nil {
		return "", NewRenderError(ErrCodeStorageFailed, "failed to resolve spool directory", err)
	}
	absPath, err := filepath.Abs(filepath.Join(s.config.Dir, rel))
	if err != nil {
		return "", NewRenderError(ErrCodeStorageFailed, "failed to resolve file path", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		s.logger.Warn("path escape attempt blocked",
			zap.String("absPath", absPath),
			zap.String("absBase", absBase))
		return "", NewRenderError(ErrCodeStorageFailed, "invalid path", nil)
	}
	return rel, nil
}

// CleanupOlderThan removes spooled files older than the specified duration
func (s *SpoolDirectorySink) CleanupOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := s.now().Add(-age)
	deletedCount := 0

	err := filepath.Walk(s.config.Dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if info.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".pdf" && ext != ".part" {
			return nil
		}

		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err == nil {
				deletedCount++
				s.logger.Debug("deleted old spool file", zap.String("path", path))
			}
		}

		return nil
	})

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return deletedCount, NewRenderError(ErrCodeStorageFailed, "cleanup walk failed", err)
	}

	s.logger.Info("spool cleanup completed",
		zap.Int("deleted", deletedCount),
		zap.Duration("age", age))

	return deletedCount, nil
}

// RunRetention removes expired files once a day until ctx is done.
// It returns immediately when no retention is configured.
func (s *SpoolDirectorySink) RunRetention(ctx context.Context) {
	if s.config.RetentionDays <= 0 {
		return
	}
	age := time.Duration(s.config.RetentionDays) * 24 * time.Hour

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		if _, err := s.CleanupOlderThan(ctx, age); err != nil {
			s.logger.Warn("spool cleanup failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// containsDotDot checks if a path contains ".." components
func containsDotDot(path string) bool {
	parts := strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == filepath.Separator
	})
	return slices.Contains(parts, "..")
}

// Ensure SpoolDirectorySink implements PrintSink
var _ invoicing.PrintSink = (*SpoolDirectorySink)(nil)
