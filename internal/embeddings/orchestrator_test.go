package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fyrsmithlabs/wikirag/internal/logging"
	"github.com/fyrsmithlabs/wikirag/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// fakeEmbedder maps each text to a vector derived from its index suffix so
// that order mistakes are visible. delay slows selected batches down.
type fakeEmbedder struct {
	delay    func(batch []string) time.Duration
	fail     func(batch []string) error
	short    bool
	calls    atomic.Int32
	inflight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls.Add(1)
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if f.delay != nil {
		select {
		case <-time.After(f.delay(texts)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.fail != nil {
		if err := f.fail(texts); err != nil {
			return nil, err
		}
	}

	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, vectorFor(t))
	}
	if f.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return vectorFor(text), nil
}

func vectorFor(text string) []float32 {
	var idx int
	_, _ = fmt.Sscanf(text, "chunk-%d", &idx)
	return []float32{float32(idx), 1}
}

func chunks(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("chunk-%d", i)
	}
	return out
}

func batchIndex(batch []string, size int) int {
	var idx int
	_, _ = fmt.Sscanf(batch[0], "chunk-%d", &idx)
	return idx / size
}

func TestNewOrchestrator_Validation(t *testing.T) {
	_, err := NewOrchestrator(nil, OrchestratorConfig{}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewOrchestrator(&fakeEmbedder{}, OrchestratorConfig{BatchSize: -1}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	o, err := NewOrchestrator(&fakeEmbedder{}, OrchestratorConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultBatchSize, o.BatchSize())
}

func TestEmbedChunks_Empty(t *testing.T) {
	emb := &fakeEmbedder{}
	o, err := NewOrchestrator(emb, OrchestratorConfig{}, nil)
	require.NoError(t, err)

	docs, err := o.EmbedChunks(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Zero(t, emb.calls.Load())
}

func TestEmbedChunks_SingleBatch(t *testing.T) {
	emb := &fakeEmbedder{}
	o, err := NewOrchestrator(emb, OrchestratorConfig{BatchSize: 96}, nil)
	require.NoError(t, err)

	docs, err := o.EmbedChunks(context.Background(), chunks(3))
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, int32(1), emb.calls.Load())
	for i, d := range docs {
		assert.Equal(t, fmt.Sprintf("chunk-%d", i), d.Content)
		assert.Equal(t, d.Content, d.Metadata[vectorstore.MetaText])
		assert.Equal(t, strconv.Itoa(i), d.Metadata[vectorstore.MetaPosition])
		assert.Equal(t, []float32{float32(i), 1}, d.Embedding)
	}
}

func TestEmbedChunks_OutOfOrderCompletionKeepsChunkOrder(t *testing.T) {
	const size = 10
	// Earlier batches finish later.
	emb := &fakeEmbedder{
		delay: func(batch []string) time.Duration {
			return time.Duration(6-batchIndex(batch, size)) * 20 * time.Millisecond
		},
	}
	o, err := NewOrchestrator(emb, OrchestratorConfig{BatchSize: size}, logging.NewTestLogger().Logger)
	require.NoError(t, err)

	input := chunks(45)
	docs, err := o.EmbedChunks(context.Background(), input)
	require.NoError(t, err)

	require.Len(t, docs, len(input))
	for i, d := range docs {
		assert.Equal(t, input[i], d.Content)
		assert.Equal(t, float32(i), d.Embedding[0])
	}
	assert.Equal(t, int32(5), emb.calls.Load())
	// Unbounded: every batch was in flight at once.
	assert.Equal(t, int32(5), emb.peak.Load())
}

func TestEmbedChunks_MaxConcurrency(t *testing.T) {
	emb := &fakeEmbedder{
		delay: func([]string) time.Duration { return 10 * time.Millisecond },
	}
	o, err := NewOrchestrator(emb, OrchestratorConfig{BatchSize: 2, MaxConcurrency: 2}, nil)
	require.NoError(t, err)

	docs, err := o.EmbedChunks(context.Background(), chunks(12))
	require.NoError(t, err)
	assert.Len(t, docs, 12)
	assert.LessOrEqual(t, emb.peak.Load(), int32(2))
}

func TestEmbedChunks_AnyFailedBatchFailsTheCall(t *testing.T) {
	cause := errors.New("upstream 500")
	emb := &fakeEmbedder{
		fail: func(batch []string) error {
			if batchIndex(batch, 4) == 2 {
				return cause
			}
			return nil
		},
	}
	logger := logging.NewTestLogger()
	o, err := NewOrchestrator(emb, OrchestratorConfig{BatchSize: 4}, logger.Logger)
	require.NoError(t, err)

	docs, err := o.EmbedChunks(context.Background(), chunks(16))
	require.Error(t, err)
	assert.Nil(t, docs)

	assert.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.ErrorIs(t, err, cause)

	var be *BatchError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, 2, be.Index)
	assert.Equal(t, 4, be.Size)
	logger.AssertLogged(t, zapcore.ErrorLevel, "embedding failed")
}

func TestEmbedChunks_VectorCountMismatch(t *testing.T) {
	emb := &fakeEmbedder{short: true}
	o, err := NewOrchestrator(emb, OrchestratorConfig{BatchSize: 5}, nil)
	require.NoError(t, err)

	_, err = o.EmbedChunks(context.Background(), chunks(5))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.Contains(t, err.Error(), "4 vectors for 5 texts")
}

func TestEmbedChunks_FailureCancelsSiblings(t *testing.T) {
	emb := &fakeEmbedder{
		delay: func(batch []string) time.Duration {
			if batchIndex(batch, 1) == 0 {
				return 0
			}
			return 5 * time.Second
		},
		fail: func(batch []string) error {
			if batchIndex(batch, 1) == 0 {
				return errors.New("boom")
			}
			return nil
		},
	}
	o, err := NewOrchestrator(emb, OrchestratorConfig{BatchSize: 1}, nil)
	require.NoError(t, err)

	start := time.Now()
	_, err = o.EmbedChunks(context.Background(), chunks(4))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestEmbedChunks_CanceledContext(t *testing.T) {
	emb := &fakeEmbedder{delay: func([]string) time.Duration { return time.Second }}
	o, err := NewOrchestrator(emb, OrchestratorConfig{BatchSize: 2}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = o.EmbedChunks(ctx, chunks(4))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
