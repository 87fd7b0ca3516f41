package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext_ReturnsEmbeddedLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := WithLogger(context.Background(), logger)
	FromContext(ctx).Debug("hello", "unit", "a")

	assert.Same(t, logger, FromContext(ctx))
	assert.Contains(t, buf.String(), "unit=a")
}

func TestFromContext_MissingLoggerDiscards(t *testing.T) {
	logger := FromContext(context.Background())
	require.NotNil(t, logger)
	assert.False(t, logger.Enabled(context.Background(), slog.LevelError))
}

func TestWithLogr_BridgesRecords(t *testing.T) {
	var lines []string
	sink := funcr.New(func(prefix, args string) {
		lines = append(lines, args)
	}, funcr.Options{Verbosity: 1})

	ctx := WithLogr(context.Background(), sink)
	FromContext(ctx).Info("applied", "digest", "sha256:abc")

	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "sha256:abc")
}

func TestWithLogr_ZeroLoggerDiscards(t *testing.T) {
	ctx := WithLogr(context.Background(), logr.Logger{})
	assert.False(t, FromContext(ctx).Enabled(ctx, slog.LevelError))
}
