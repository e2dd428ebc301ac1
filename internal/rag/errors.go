package rag

import (
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/wikirag/internal/embeddings"
)

// Stage names a pipeline step.
type Stage string

const (
	StageFetch    Stage = "fetch"
	StageEmbed    Stage = "embed"
	StageIndex    Stage = "index"
	StageGenerate Stage = "generate"
)

// Stage sentinels. Every pipeline error matches exactly one of them.
var (
	ErrSourceFetch = errors.New("source fetch failed")
	ErrEmbedding   = errors.New("embedding failed")
	ErrIndex       = errors.New("index operation failed")
	ErrGeneration  = errors.New("generation failed")
)

// ErrInvalidConfig indicates missing pipeline components or settings.
var ErrInvalidConfig = errors.New("invalid pipeline config")

// ErrEmptyQuery indicates a blank question.
var ErrEmptyQuery = errors.New("query cannot be empty")

// StageError is a fatal pipeline failure. It matches the stage sentinel and
// the underlying cause. Batch is the failed embedding batch, or -1.
type StageError struct {
	Stage Stage
	Batch int
	Err   error
}

func (e *StageError) Error() string {
	if e.Batch >= 0 {
		return fmt.Sprintf("%s stage failed at batch %d: %v", e.Stage, e.Batch, e.Err)
	}
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() []error {
	return []error{e.Stage.sentinel(), e.Err}
}

func (s Stage) sentinel() error {
	switch s {
	case StageFetch:
		return ErrSourceFetch
	case StageEmbed:
		return ErrEmbedding
	case StageIndex:
		return ErrIndex
	default:
		return ErrGeneration
	}
}

// stageError wraps err for stage, lifting the batch index out of an
// embeddings.BatchError.
func stageError(stage Stage, err error) *StageError {
	batch := -1
	var be *embeddings.BatchError
	if errors.As(err, &be) {
		batch = be.Index
	}
	return &StageError{Stage: stage, Batch: batch, Err: err}
}
