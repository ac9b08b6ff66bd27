package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"text":  FormatText,
		"TINT":  FormatText,
		"human": FormatText,
		"json":  FormatJSON,
		"auto":  FormatAuto,
		"":      FormatAuto,
		"xml":   FormatAuto,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseFormat(in), in)
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("loud"))
}

func TestIsTTY(t *testing.T) {
	assert.False(t, IsTTY(&bytes.Buffer{}))

	f, err := os.CreateTemp(t.TempDir(), "log")
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, IsTTY(f))
}

func TestNewHandler_JSONWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, FormatAuto, slog.LevelInfo))

	logger.Debug("hidden")
	logger.Info("captured", "id", "abc")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "captured", entry["msg"])
	assert.Equal(t, "abc", entry["id"])
}

func TestNewHandler_TextWhenForced(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, FormatText, slog.LevelInfo))
	logger.Info("hello", "k", "v")

	assert.Contains(t, buf.String(), "hello")
	assert.False(t, json.Valid(buf.Bytes()))
}

func TestSetupAndSetLevel(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	Setup(&buf, FormatJSON, slog.LevelWarn)
	assert.Equal(t, slog.LevelWarn, Level())

	slog.Info("suppressed")
	assert.Empty(t, buf.String())

	SetLevel(slog.LevelDebug)
	buf.Reset()
	slog.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestOpenFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	f, err := OpenFile(dir)
	require.NoError(t, err)
	_, err = f.WriteString("line\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f, err = OpenFile(dir)
	require.NoError(t, err)
	_, err = f.WriteString("more\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	data, err := os.ReadFile(filepath.Join(dir, LogFile))
	require.NoError(t, err)
	assert.Equal(t, "line\nmore\n", string(data))
}
