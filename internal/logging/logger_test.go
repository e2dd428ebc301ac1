package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/fyrsmithlabs/wikirag/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(NewDefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, logger.Underlying())
	assert.True(t, logger.Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Enabled(zapcore.DebugLevel))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad format", func(c *Config) { c.Format = "xml" }},
		{"bad output", func(c *Config) { c.Output = "file" }},
		{"zero tick", func(c *Config) { c.Sampling.Tick = 0 }},
		{"bad pattern", func(c *Config) { c.Redaction.Patterns = []string{"("} }},
		{"empty field value", func(c *Config) { c.Fields = map[string]string{"k": ""} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	cfg, err := FromAppConfig(config.LoggingConfig{Level: "trace", Format: "json"})
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, cfg.Level)
	assert.Equal(t, "json", cfg.Format)

	_, err = FromAppConfig(config.LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestLevelFromString(t *testing.T) {
	lvl, err := LevelFromString("trace")
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, lvl)

	lvl, err = LevelFromString("warn")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, lvl)
}

func TestLogger_ContextFields(t *testing.T) {
	logger := NewTestLogger()

	ctx := WithRunID(context.Background(), "run-1")
	ctx = WithStage(ctx, "embed")
	logger.Info(ctx, "batches planned", zap.Int("batches", 3))

	logger.AssertLogged(t, zapcore.InfoLevel, "batches planned")
	logger.AssertField(t, "batches planned", "run.id", "run-1")
	logger.AssertField(t, "batches planned", "stage", "embed")
	logger.AssertField(t, "batches planned", "batches", int64(3))
}

func TestLogger_TraceCorrelation(t *testing.T) {
	tp := trace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	fields := ContextFields(ctx)
	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, f.Key)
	}
	assert.Contains(t, keys, "trace_id")
	assert.Contains(t, keys, "span_id")
}

func TestLogger_TraceLevelGated(t *testing.T) {
	logger := NewTestLogger()
	logger.Trace(context.Background(), "per-document detail")
	assert.Len(t, logger.All(), 1)

	assert.False(t, NewNop().Enabled(TraceLevel))
}

func TestRedactingEncoder(t *testing.T) {
	base := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	enc, err := NewRedactingEncoder(base, NewDefaultConfig().Redaction)
	require.NoError(t, err)

	var buf bytes.Buffer
	core := zapcore.NewCore(enc, zapcore.AddSync(&buf), zapcore.InfoLevel)
	zap.New(core).Info("calling cohere",
		zap.String("api_key", "co-123"),
		zap.String("header", "Bearer abc.def"),
		zap.String("model", "embed-english-v3.0"),
		Secret("cohere_key", config.Secret("co-123")),
	)

	out := buf.String()
	assert.NotContains(t, out, "co-123")
	assert.NotContains(t, out, "abc.def")
	assert.Contains(t, out, "embed-english-v3.0")
	assert.Contains(t, out, "[REDACTED:6]")
}

func TestRedactingEncoder_CallAndWithFields(t *testing.T) {
	base := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	enc, err := NewRedactingEncoder(base, NewDefaultConfig().Redaction)
	require.NoError(t, err)

	var buf bytes.Buffer
	l := zap.New(zapcore.NewCore(enc, zapcore.AddSync(&buf), zapcore.InfoLevel))
	l.Info("per call", zap.String("api_key", "SECRET1"), zap.ByteString("token", []byte("SECRET2")))
	l.With(zap.String("api_key", "SECRET3")).Info("with", zap.String("url", "x?api_key=SECRET4"))

	out := buf.String()
	for _, leaked := range []string{"SECRET1", "SECRET2", "SECRET3", "SECRET4"} {
		assert.NotContains(t, out, leaked)
	}
	assert.Equal(t, 3, strings.Count(out, `"[REDACTED]"`))
	assert.Contains(t, out, `"url":"[REDACTED:pattern]"`)
}

func TestRedactingEncoder_Disabled(t *testing.T) {
	base := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	enc, err := NewRedactingEncoder(base, RedactionConfig{})
	require.NoError(t, err)
	assert.Empty(t, enc.keys)
}

func TestSampledCore_ErrorsNeverSampled(t *testing.T) {
	var buf bytes.Buffer
	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	base := zapcore.NewCore(enc, zapcore.AddSync(&buf), zapcore.DebugLevel)

	cfg := NewDefaultConfig().Sampling
	cfg.Initial = 1
	cfg.Thereafter = 0
	logger := zap.New(newSampledCore(base, cfg))

	for i := 0; i < 5; i++ {
		logger.Info("repeated")
		logger.Error("failure")
	}

	out := buf.String()
	assert.Equal(t, 1, bytes.Count([]byte(out), []byte(`"repeated"`)))
	assert.Equal(t, 5, bytes.Count([]byte(out), []byte(`"failure"`)))
}
