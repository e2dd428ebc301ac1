package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/wikirag/internal/logging"
	"go.uber.org/zap"
)

// maxFileSize caps local articles at 16MB.
const maxFileSize = 16 * 1024 * 1024

// FileSource reads an article from a local text file. The title passed to
// Fetch is the file path.
type FileSource struct {
	logger *logging.Logger
}

// NewFileSource returns a FileSource. logger may be nil.
func NewFileSource(logger *logging.Logger) *FileSource {
	return &FileSource{logger: logging.OrNop(logger).Named("source.file")}
}

// Fetch implements Source.
func (s *FileSource) Fetch(ctx context.Context, path string) (*Article, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrEmptyTitle
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}

	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrArticleNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrArticleNotFound, path)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("file %s too large: %d bytes (max %d)", path, info.Size(), maxFileSize)
	}

	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	title := strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
	s.logger.Debug(ctx, "read article file", zap.String("path", abs), zap.Int("bytes", len(raw)))
	return &Article{Title: title, Text: string(raw), URL: "file://" + filepath.ToSlash(abs)}, nil
}
