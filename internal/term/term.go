// Package term decides whether output is colored and exposes the few ANSI
// sequences the plan table and banner use.
//
// The sequences are package variables set once by [Configure] at startup.
// With colors off they are empty, so concatenating them is a no-op.
package term

import (
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/Carbocode/2mpeg-dash/internal/config"
)

// ANSI sequences. Empty when colors are disabled.
var (
	Red  string
	Cyan string
	Bold string
	NC   string // Reset.
)

// Configure applies mode and reports whether colors ended up enabled, so
// the console logger can follow the same decision.
func Configure(mode config.ColorMode) bool {
	if !wantColor(mode) {
		Red, Cyan, Bold, NC = "", "", "", ""
		return false
	}
	Red, Cyan, Bold, NC = "\033[1;91m", "\033[1;96m", "\033[1m", "\033[0m"
	return true
}

// Enabled reports whether ANSI colors are active.
func Enabled() bool { return NC != "" }

// wantColor honors NO_COLOR (https://no-color.org) and TERM=dumb in auto mode.
func wantColor(mode config.ColorMode) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}
	if os.Getenv("NO_COLOR") != "" || strings.EqualFold(os.Getenv("TERM"), "dumb") {
		return false
	}
	return IsTerminal(os.Stdout)
}

// IsTerminal reports whether f is a TTY. Cygwin and MSYS pseudo-terminals
// count.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
