// Package logging provides structured logging for wikirag.
//
// Logger wraps Zap with:
//   - a Trace level (-2, below Debug)
//   - context field injection (trace_id, run.id, stage)
//   - secret redaction at the encoder
//   - level-aware sampling (errors are never sampled)
//
// Output goes to stderr by default so that stdout carries only the answer.
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithRunID(ctx, runID)
//	ctx = logging.WithStage(ctx, "embed")
//	logger.Info(ctx, "batches planned", zap.Int("batches", n))
//
// Tests use NewTestLogger to assert on emitted entries.
package logging
