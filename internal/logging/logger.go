// Package logging configures the zerolog logger used across the pipeline:
// a human console stream (colored when the terminal allows) plus an optional
// append-only JSON log file.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/Carbocode/2mpeg-dash/internal/config"
	"github.com/Carbocode/2mpeg-dash/internal/term"
)

// Logger is a zerolog.Logger that owns the optional log file sink.
type Logger struct {
	zerolog.Logger
	file *os.File
}

// New builds a Logger writing human-readable lines to out. Colors follow
// cfg.ColorMode; cfg.Verbose enables debug level; cfg.LogFile, when set,
// additionally receives every event as a JSON line. Call Close when done.
func New(cfg *config.Config, out io.Writer) (*Logger, error) {
	if out == nil {
		out = os.Stdout
	}
	color := term.Configure(cfg.ColorMode)
	zerolog.TimeFieldFormat = time.RFC3339

	console := zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    !color,
		TimeFormat: "2006-01-02 15:04:05",
	}

	l := &Logger{}
	var w io.Writer = console
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		l.file = f
		w = zerolog.MultiLevelWriter(console, f)
	}

	level := zerolog.InfoLevel
	if cfg.Verbose {
		level = zerolog.DebugLevel
	}
	l.Logger = zerolog.New(w).Level(level).With().Timestamp().Logger()
	return l, nil
}

// Nop returns a Logger that discards everything. Used by tests.
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// WithComponent returns a child logger annotated with the given component name.
func (l *Logger) WithComponent(component string) zerolog.Logger {
	return l.With().Str(FieldComponent, component).Logger()
}

// Close closes the log file if one was opened.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
