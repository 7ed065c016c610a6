// Package logging builds the relay's structured logger from a -v count.
package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
)

// LevelSilent is above every level the relay logs at.
const LevelSilent = slog.LevelError + 4

// Level maps a verbosity count to a log level:
// 0 silent, 1 warnings and errors, 2 info, 3 or more debug.
func Level(verbosity int) slog.Level {
	switch {
	case verbosity <= 0:
		return LevelSilent
	case verbosity == 1:
		return slog.LevelWarn
	case verbosity == 2:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// New returns a logger writing to w at the level for verbosity. Terminals
// get human-readable text, anything else gets JSON lines.
func New(w io.Writer, verbosity int) *slog.Logger {
	opts := &slog.HandlerOptions{Level: Level(verbosity)}
	if isTTY(w) {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// isTTY reports whether w is connected to a terminal.
func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
