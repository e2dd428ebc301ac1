// Package chunker splits article text into overlapping chunks.
//
// Lengths are counted in runes. Consecutive chunks overlap by exactly the
// configured overlap, and no trimming is applied, so
//
//	chunks[0] + chunks[1][O:] + chunks[2][O:] + ... == text
//
// holds for every input (slicing in runes).
package chunker

import (
	"errors"
	"fmt"
	"unicode"
)

// ErrInvalidConfig is returned by New for a size/overlap pair that cannot make progress.
var ErrInvalidConfig = errors.New("invalid chunker config")

const (
	DefaultSize    = 512
	DefaultOverlap = 50
)

// Config sets the chunk length bound and the overlap, both in runes.
type Config struct {
	Size    int
	Overlap int
}

// DefaultConfig returns 512-rune chunks with 50 runes of overlap.
func DefaultConfig() Config {
	return Config{Size: DefaultSize, Overlap: DefaultOverlap}
}

// Validate requires Size > 0 and 0 <= Overlap < Size.
func (c Config) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("%w: size must be > 0, got %d", ErrInvalidConfig, c.Size)
	}
	if c.Overlap < 0 || c.Overlap >= c.Size {
		return fmt.Errorf("%w: overlap must be in [0, %d), got %d", ErrInvalidConfig, c.Size, c.Overlap)
	}
	return nil
}

// Chunker is stateless after construction and safe for concurrent use.
type Chunker struct {
	size    int
	overlap int
}

// New validates cfg and returns a Chunker.
func New(cfg Config) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{size: cfg.Size, overlap: cfg.Overlap}, nil
}

// Split cuts text into chunks of at most Size runes. Empty text yields nil.
//
// A chunk that does not reach the end of the text ends at the best boundary
// in its second half: paragraph break, then line break, then sentence end,
// then any whitespace. The rightmost boundary of the best class wins. Without
// any boundary the chunk is cut at exactly Size runes.
func (c *Chunker) Split(text string) []string {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	n := len(runes)

	var chunks []string
	start := 0
	for {
		if start+c.size >= n {
			return append(chunks, string(runes[start:]))
		}
		end := c.cut(runes, start)
		chunks = append(chunks, string(runes[start:end]))
		// end > start+overlap, so start strictly advances.
		start = end - c.overlap
	}
}

// boundary classes in order of preference
var boundaries = []func(r []rune, e int) bool{
	func(r []rune, e int) bool { return e >= 2 && r[e-2] == '\n' && r[e-1] == '\n' },
	func(r []rune, e int) bool { return r[e-1] == '\n' },
	func(r []rune, e int) bool {
		return e >= 2 && r[e-1] == ' ' && (r[e-2] == '.' || r[e-2] == '!' || r[e-2] == '?')
	},
	func(r []rune, e int) bool { return unicode.IsSpace(r[e-1]) },
}

// cut picks the exclusive end of the chunk starting at start, from the
// window (start+max(overlap, size/2), start+size].
func (c *Chunker) cut(runes []rune, start int) int {
	hi := start + c.size
	lo := start + max(c.overlap, c.size/2)

	for _, isBoundary := range boundaries {
		for e := hi; e > lo; e-- {
			if isBoundary(runes, e) {
				return e
			}
		}
	}
	return hi
}

// Stats summarizes a chunking result.
type Stats struct {
	Chunks   int
	Runes    int
	MinRunes int
	MaxRunes int
}

// Summarize computes Stats for chunks.
func Summarize(chunks []string) Stats {
	var s Stats
	for i, ch := range chunks {
		l := len([]rune(ch))
		s.Runes += l
		if i == 0 || l < s.MinRunes {
			s.MinRunes = l
		}
		if l > s.MaxRunes {
			s.MaxRunes = l
		}
	}
	s.Chunks = len(chunks)
	return s
}
