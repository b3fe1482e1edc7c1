package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carbocode/2mpeg-dash/internal/config"
)

func TestNew_ConsoleOnly(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ColorMode = config.ColorNever
	var buf bytes.Buffer

	l, err := New(&cfg, &buf)
	require.NoError(t, err)
	defer l.Close()

	l.Info().Str(FieldSource, "clip").Msg("probed")
	l.Debug().Msg("hidden")

	out := buf.String()
	assert.Contains(t, out, "probed")
	assert.Contains(t, out, "source=clip")
	assert.NotContains(t, out, "hidden", "debug is off unless verbose")
	assert.NotContains(t, out, "\x1b[", "no ANSI codes when colors are disabled")
}

func TestNew_VerboseEnablesDebug(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ColorMode = config.ColorNever
	cfg.Verbose = true
	var buf bytes.Buffer

	l, err := New(&cfg, &buf)
	require.NoError(t, err)
	l.Debug().Msg("details")
	assert.Contains(t, buf.String(), "details")
}

func TestNew_WithFile(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ColorMode = config.ColorNever
	cfg.LogFile = filepath.Join(t.TempDir(), "logs", "dash.log")
	var buf bytes.Buffer

	l, err := New(&cfg, &buf)
	require.NoError(t, err)
	cl := l.WithComponent("pipeline")
	cl.Warn().Msg("to file")
	require.NoError(t, l.Close())
	require.NoError(t, l.Close(), "second close is a no-op")

	b, err := os.ReadFile(cfg.LogFile)
	require.NoError(t, err)
	line := strings.TrimSpace(string(b))

	var ev map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &ev))
	assert.Equal(t, "warn", ev["level"])
	assert.Equal(t, "to file", ev["message"])
	assert.Equal(t, "pipeline", ev[FieldComponent])
	assert.Contains(t, buf.String(), "to file")
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Error().Msg("dropped")
	assert.NoError(t, l.Close())
}
