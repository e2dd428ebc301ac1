package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/fyrsmithlabs/wikirag/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWikipedia(t *testing.T, h http.HandlerFunc) *WikipediaSource {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	s, err := NewWikipediaSource(WikipediaConfig{BaseURL: srv.URL + "/w/api.php", UserAgent: "wikirag-test"}, nil)
	require.NoError(t, err)
	return s
}

func TestWikipediaSource_FetchFollowsRedirect(t *testing.T) {
	s := newTestWikipedia(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/w/api.php", r.URL.Path)
		assert.Equal(t, "wikirag-test", r.Header.Get("User-Agent"))

		q := r.URL.Query()
		assert.Equal(t, "query", q.Get("action"))
		assert.Equal(t, "Dune Part Two", q.Get("titles"))
		assert.Equal(t, "1", q.Get("redirects"))
		assert.Equal(t, "1", q.Get("explaintext"))
		assert.Equal(t, "2", q.Get("formatversion"))

		_, _ = w.Write([]byte(`{
			"batchcomplete": true,
			"query": {
				"redirects": [{"from": "Dune Part Two", "to": "Dune: Part Two"}],
				"pages": [{
					"pageid": 1,
					"ns": 0,
					"title": "Dune: Part Two",
					"fullurl": "https://en.wikipedia.org/wiki/Dune:_Part_Two",
					"extract": "Dune: Part Two is a 2024 American epic science fiction film."
				}]
			}
		}`))
	})

	a, err := s.Fetch(context.Background(), "Dune Part Two")
	require.NoError(t, err)
	assert.Equal(t, "Dune: Part Two", a.Title)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Dune:_Part_Two", a.URL)
	assert.Equal(t, "Dune: Part Two is a 2024 American epic science fiction film.", a.Text)
	assert.Equal(t, 11, a.WordCount())
}

func TestWikipediaSource_MissingPage(t *testing.T) {
	s := newTestWikipedia(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"query":{"pages":[{"ns":0,"title":"Nope","missing":true}]}}`))
	})

	_, err := s.Fetch(context.Background(), "Nope")
	assert.ErrorIs(t, err, ErrArticleNotFound)
}

func TestWikipediaSource_InvalidTitle(t *testing.T) {
	s := newTestWikipedia(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"query":{"pages":[{"title":"a|b","invalid":true,"invalidreason":"contains |"}]}}`))
	})

	_, err := s.Fetch(context.Background(), "a|b")
	assert.ErrorIs(t, err, ErrArticleNotFound)
	assert.Contains(t, err.Error(), "contains |")
}

func TestWikipediaSource_Errors(t *testing.T) {
	t.Run("http status", func(t *testing.T) {
		s := newTestWikipedia(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream down", http.StatusServiceUnavailable)
		})
		_, err := s.Fetch(context.Background(), "Dune")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrArticleNotFound)
		assert.Contains(t, err.Error(), "503")
	})

	t.Run("api error", func(t *testing.T) {
		s := newTestWikipedia(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"error":{"code":"maxlag","info":"Waiting for a database server"}}`))
		})
		_, err := s.Fetch(context.Background(), "Dune")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "maxlag")
	})

	t.Run("empty title", func(t *testing.T) {
		s := newTestWikipedia(t, func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("no request expected")
		})
		_, err := s.Fetch(context.Background(), "  ")
		assert.ErrorIs(t, err, ErrEmptyTitle)
	})

	t.Run("canceled context", func(t *testing.T) {
		s := newTestWikipedia(t, func(w http.ResponseWriter, r *http.Request) {})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := s.Fetch(ctx, "Dune")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestNewWikipediaSource_InvalidURL(t *testing.T) {
	_, err := NewWikipediaSource(WikipediaConfig{BaseURL: "not a url"}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestFileSource_Fetch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dune.txt")
	require.NoError(t, os.WriteFile(path, []byte("Paul Atreides unites with the Fremen."), 0o600))

	a, err := NewFileSource(nil).Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "dune", a.Title)
	assert.Equal(t, "Paul Atreides unites with the Fremen.", a.Text)
	assert.Contains(t, a.URL, "file://")
	assert.Equal(t, 6, a.WordCount())
}

func TestFileSource_Missing(t *testing.T) {
	_, err := NewFileSource(nil).Fetch(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))
	assert.ErrorIs(t, err, ErrArticleNotFound)

	_, err = NewFileSource(nil).Fetch(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, ErrArticleNotFound)
}

func TestArticle_WordCount(t *testing.T) {
	assert.Equal(t, 0, (*Article)(nil).WordCount())
	assert.Equal(t, 0, (&Article{}).WordCount())
	assert.Equal(t, 1, (&Article{Text: "Dune"}).WordCount())
	// Consecutive spaces count as empty words, matching a plain split.
	assert.Equal(t, 3, (&Article{Text: "a  b"}).WordCount())
}

func TestNew(t *testing.T) {
	cfg := config.Default().Source
	s, err := New(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &WikipediaSource{}, s)

	cfg.Provider = "file"
	s, err = New(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &FileSource{}, s)

	cfg.Provider = "gopher"
	_, err = New(cfg, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
