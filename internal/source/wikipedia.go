package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fyrsmithlabs/wikirag/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const maxErrorBody = 4096

// WikipediaConfig configures a WikipediaSource.
type WikipediaConfig struct {
	// BaseURL is the MediaWiki action API endpoint.
	// Default: "https://en.wikipedia.org/w/api.php"
	BaseURL string

	// UserAgent identifies the client, as Wikimedia's API etiquette requires.
	UserAgent string

	Timeout time.Duration

	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
}

// WikipediaSource fetches plain-text article extracts from the MediaWiki API.
// Redirects are followed, so "Dune Part Two" resolves to "Dune: Part Two".
type WikipediaSource struct {
	endpoint  *url.URL
	userAgent string
	http      *http.Client
	logger    *logging.Logger
	tracer    trace.Tracer
}

// NewWikipediaSource validates cfg and builds a WikipediaSource.
func NewWikipediaSource(cfg WikipediaConfig, logger *logging.Logger) (*WikipediaSource, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://en.wikipedia.org/w/api.php"
	}
	endpoint, err := url.Parse(cfg.BaseURL)
	if err != nil || endpoint.Scheme == "" || endpoint.Host == "" {
		return nil, fmt.Errorf("%w: invalid base URL %q", ErrInvalidConfig, cfg.BaseURL)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "wikirag"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &WikipediaSource{
		endpoint:  endpoint,
		userAgent: cfg.UserAgent,
		http:      httpClient,
		logger:    logging.OrNop(logger).Named("source.wikipedia"),
		tracer:    otel.Tracer("github.com/fyrsmithlabs/wikirag/internal/source"),
	}, nil
}

type queryResponse struct {
	Query struct {
		Redirects []struct {
			From string `json:"from"`
			To   string `json:"to"`
		} `json:"redirects"`
		Pages []page `json:"pages"`
	} `json:"query"`
	Error *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
}

type page struct {
	Title         string `json:"title"`
	Extract       string `json:"extract"`
	FullURL       string `json:"fullurl"`
	Missing       bool   `json:"missing"`
	Invalid       bool   `json:"invalid"`
	InvalidReason string `json:"invalidreason"`
}

// Fetch implements Source.
func (s *WikipediaSource) Fetch(ctx context.Context, title string) (*Article, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}

	ctx, span := s.tracer.Start(ctx, "source.wikipedia.Fetch",
		trace.WithAttributes(attribute.String("title", title)))
	defer span.End()

	article, err := s.fetch(ctx, title)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, err
	}

	span.SetAttributes(
		attribute.String("canonical_title", article.Title),
		attribute.Int("runes", len([]rune(article.Text))),
	)
	span.SetStatus(codes.Ok, "")
	s.logger.Debug(ctx, "fetched article",
		zap.String("title", article.Title),
		zap.String("url", article.URL),
		zap.Int("bytes", len(article.Text)))
	return article, nil
}

func (s *WikipediaSource) fetch(ctx context.Context, title string) (*Article, error) {
	q := url.Values{}
	q.Set("action", "query")
	q.Set("prop", "extracts|info")
	q.Set("inprop", "url")
	q.Set("explaintext", "1")
	q.Set("redirects", "1")
	q.Set("format", "json")
	q.Set("formatversion", "2")
	q.Set("titles", title)

	u := *s.endpoint
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %q: %w", title, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("fetching %q: status %d: %s", title, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var body queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding response for %q: %w", title, err)
	}
	if body.Error != nil {
		return nil, fmt.Errorf("mediawiki error %s: %s", body.Error.Code, body.Error.Info)
	}
	if len(body.Query.Pages) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrArticleNotFound, title)
	}

	p := body.Query.Pages[0]
	switch {
	case p.Missing:
		return nil, fmt.Errorf("%w: %q", ErrArticleNotFound, title)
	case p.Invalid:
		return nil, fmt.Errorf("%w: %q: %s", ErrArticleNotFound, title, p.InvalidReason)
	}

	for _, r := range body.Query.Redirects {
		s.logger.Debug(ctx, "followed redirect", zap.String("from", r.From), zap.String("to", r.To))
	}

	return &Article{Title: p.Title, Text: p.Extract, URL: p.FullURL}, nil
}
