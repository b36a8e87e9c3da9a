package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"info":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNewHandler_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, "info", "json", true))
	logger.Debug("hidden")
	logger.Info("login: succeeded", "user_id", "u-1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "login: succeeded", rec["msg"])
	assert.Equal(t, "u-1", rec["user_id"])
}

func TestNewHandler_TextWithoutColor(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, "debug", "text", true))
	logger.Debug("refresh: rotated", "jti", "abc")

	out := buf.String()
	assert.Contains(t, out, "refresh: rotated")
	assert.Contains(t, out, "jti=abc")
	assert.NotContains(t, out, "\x1b[")
}

func TestSetup_WritesRotatedFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "logs", "server.log")

	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger, closer, err := Setup(Options{Level: "info", Format: "json", File: file})
	require.NoError(t, err)
	logger.Info("startup")
	require.NoError(t, closer.Close())

	assert.FileExists(t, file)
}
