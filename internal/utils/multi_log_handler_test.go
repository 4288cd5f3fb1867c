package utils

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closedSink struct{}

func (closedSink) Write([]byte) (int, error) { return 0, errors.New("sink closed") }

func TestMultiLogHandlerFansOut(t *testing.T) {
	var console, file bytes.Buffer
	handler := NewMultiLogHandler(
		NewLineLogHandler(&console, slog.LevelDebug),
		NewLineLogHandler(&file, slog.LevelWarn),
	)
	logger := slog.New(handler)

	logger.Debug("debug only")
	logger.Warn("both")

	assert.Contains(t, console.String(), "DEBUG: debug only")
	assert.Contains(t, console.String(), "WARNING: both")

	// the second handler filters below its own level
	assert.NotContains(t, file.String(), "debug only")
	assert.Contains(t, file.String(), "WARNING: both")
}

func TestMultiLogHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewMultiLogHandler(NewLineLogHandler(&buf, slog.LevelInfo))).
		With("daemon", "dgmt")

	logger.Info("hello")
	assert.Contains(t, buf.String(), "daemon=dgmt")
}

func TestMultiLogHandlerFailingSinkDoesNotSilenceOthers(t *testing.T) {
	var buf bytes.Buffer
	handler := NewMultiLogHandler(
		NewLineLogHandler(closedSink{}, slog.LevelInfo),
		NewLineLogHandler(&buf, slog.LevelInfo),
	)

	rec := slog.NewRecord(time.Now(), slog.LevelInfo, "hello", 0)
	err := handler.Handle(context.Background(), rec)

	require.Error(t, err)
	assert.Contains(t, buf.String(), "INFO: hello")
}
