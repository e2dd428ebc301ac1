// Package source fetches the article text the pipeline indexes.
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/wikirag/internal/config"
	"github.com/fyrsmithlabs/wikirag/internal/logging"
)

var (
	// ErrArticleNotFound indicates the requested article does not exist.
	ErrArticleNotFound = errors.New("article not found")

	// ErrEmptyTitle indicates a fetch without a title.
	ErrEmptyTitle = errors.New("article title is required")

	// ErrInvalidConfig indicates an unusable source configuration.
	ErrInvalidConfig = errors.New("invalid source config")
)

// Article is the plain text of one fetched article.
type Article struct {
	// Title is the canonical title after redirects.
	Title string
	Text  string
	URL   string
}

// WordCount approximates the number of words by splitting on single spaces.
// It is only used for the ingest report.
func (a *Article) WordCount() int {
	if a == nil || a.Text == "" {
		return 0
	}
	return len(strings.Split(a.Text, " "))
}

// Source retrieves an article by title.
type Source interface {
	Fetch(ctx context.Context, title string) (*Article, error)
}

// New returns the Source named by cfg.Provider.
func New(cfg config.SourceConfig, logger *logging.Logger) (Source, error) {
	switch cfg.Provider {
	case "wikipedia", "":
		s, err := NewWikipediaSource(WikipediaConfig{
			BaseURL:   cfg.BaseURL,
			UserAgent: cfg.UserAgent,
			Timeout:   cfg.Timeout.Duration(),
		}, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "file":
		return NewFileSource(logger), nil
	default:
		return nil, fmt.Errorf("%w: unsupported source provider: %s (supported: wikipedia, file)",
			ErrInvalidConfig, cfg.Provider)
	}
}
