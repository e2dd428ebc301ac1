package chunker

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustNew(t *testing.T, size, overlap int) *Chunker {
	t.Helper()
	c, err := New(Config{Size: size, Overlap: overlap})
	require.NoError(t, err)
	return c
}

// reassemble undoes the overlap, counting in runes.
func reassemble(chunks []string, overlap int) string {
	var b strings.Builder
	for i, ch := range chunks {
		if i == 0 {
			b.WriteString(ch)
			continue
		}
		b.WriteString(string([]rune(ch)[overlap:]))
	}
	return b.String()
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", DefaultConfig(), false},
		{"zero overlap", Config{Size: 10, Overlap: 0}, false},
		{"size one", Config{Size: 1, Overlap: 0}, false},
		{"zero size", Config{Size: 0, Overlap: 0}, true},
		{"negative size", Config{Size: -5, Overlap: 0}, true},
		{"negative overlap", Config{Size: 10, Overlap: -1}, true},
		{"overlap equals size", Config{Size: 10, Overlap: 10}, true},
		{"overlap exceeds size", Config{Size: 10, Overlap: 11}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSplit_Empty(t *testing.T) {
	c := mustNew(t, 512, 50)
	assert.Empty(t, c.Split(""))
}

func TestSplit_ShortTextIsOneChunk(t *testing.T) {
	c := mustNew(t, 512, 50)
	chunks := c.Split("Dune: Part Two is a 2024 film.")
	assert.Equal(t, []string{"Dune: Part Two is a 2024 film."}, chunks)
}

func TestSplit_ThousandCharsNoSeparators(t *testing.T) {
	text := strings.Repeat("x", 1000)
	c := mustNew(t, 512, 50)

	chunks := c.Split(text)
	require.Len(t, chunks, 3)

	assert.Equal(t, text[0:512], chunks[0])
	assert.Equal(t, text[462:974], chunks[1])
	assert.Equal(t, text[924:1000], chunks[2])
	assert.Equal(t, []int{512, 512, 76}, []int{len(chunks[0]), len(chunks[1]), len(chunks[2])})
	assert.Equal(t, text, reassemble(chunks, 50))
}

func TestSplit_BoundaryPreference(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		size      int
		overlap   int
		wantFirst string
	}{
		{
			name:      "paragraph beats later whitespace",
			text:      strings.Repeat("a", 12) + "\n\n" + "bbbb cccc" + strings.Repeat("c", 30),
			size:      20,
			overlap:   2,
			wantFirst: strings.Repeat("a", 12) + "\n\n",
		},
		{
			name:      "line break beats sentence end",
			text:      "aaaaaaaaaaa\nbbb. cc" + strings.Repeat("d", 30),
			size:      20,
			overlap:   0,
			wantFirst: "aaaaaaaaaaa\n",
		},
		{
			name:      "sentence end beats later whitespace",
			text:      "Hello world. This is fine and long enough text here",
			size:      20,
			overlap:   0,
			wantFirst: "Hello world. ",
		},
		{
			name:      "rightmost whitespace",
			text:      "one two three four five six seven",
			size:      20,
			overlap:   3,
			wantFirst: "one two three four ",
		},
		{
			name:      "boundary in first half is ignored",
			text:      "ab cdefghijklmnopqrstuvwxyz",
			size:      10,
			overlap:   0,
			wantFirst: "ab cdefghi",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := mustNew(t, tt.size, tt.overlap)
			chunks := c.Split(tt.text)
			require.NotEmpty(t, chunks)
			assert.Equal(t, tt.wantFirst, chunks[0])
			assert.Equal(t, tt.text, reassemble(chunks, tt.overlap))
		})
	}
}

func TestSplit_OverlapIsExact(t *testing.T) {
	text := "The film was directed by Denis Villeneuve. It was written by Villeneuve and Jon Spaihts.\n\n" +
		"Produced by Mary Parent, Cale Boyter, Tanya Lapointe and Villeneuve."
	c := mustNew(t, 40, 8)

	chunks := c.Split(text)
	require.Greater(t, len(chunks), 1)
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		cur := []rune(chunks[i])
		assert.Equal(t, string(prev[len(prev)-8:]), string(cur[:8]), "chunk %d", i)
	}
}

func TestSplit_MultibyteRunes(t *testing.T) {
	text := strings.Repeat("砂丘の惑星。", 50)
	c := mustNew(t, 64, 10)

	chunks := c.Split(text)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len([]rune(ch)), 64)
	}
	assert.Equal(t, text, reassemble(chunks, 10))
}

func TestSplit_ReconstructionProperty(t *testing.T) {
	alphabet := []rune("abcdefghij  ..!?\n\n\té世")
	rng := rand.New(rand.NewSource(42))

	configs := []Config{
		{Size: 1, Overlap: 0},
		{Size: 2, Overlap: 1},
		{Size: 7, Overlap: 3},
		{Size: 16, Overlap: 0},
		{Size: 64, Overlap: 63},
		{Size: 512, Overlap: 50},
	}

	for _, cfg := range configs {
		c, err := New(cfg)
		require.NoError(t, err)

		for trial := 0; trial < 50; trial++ {
			n := rng.Intn(2000)
			runes := make([]rune, n)
			for i := range runes {
				runes[i] = alphabet[rng.Intn(len(alphabet))]
			}
			text := string(runes)

			chunks := c.Split(text)
			if n == 0 {
				assert.Empty(t, chunks)
				continue
			}
			for _, ch := range chunks {
				require.LessOrEqual(t, len([]rune(ch)), cfg.Size)
				require.NotEmpty(t, ch)
			}
			require.Equal(t, text, reassemble(chunks, cfg.Overlap), "size=%d overlap=%d", cfg.Size, cfg.Overlap)
		}
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]string{"abcd", "ab", "abcdef"})
	assert.Equal(t, Stats{Chunks: 3, Runes: 12, MinRunes: 2, MaxRunes: 6}, s)
	assert.Equal(t, Stats{}, Summarize(nil))
}
