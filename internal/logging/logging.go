// Package logging configures the global slog logger for clipshelf.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pwntr/tinter"
)

// Format selects the log output format.
type Format string

const (
	FormatAuto Format = "auto"
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// LogFile is the name of the log written inside the data directory
const LogFile = "clipshelf.log"

// level is shared by every handler Setup installs so it can change at runtime
var level = new(slog.LevelVar)

// ParseFormat converts a string to a Format, returning FormatAuto for unknown values.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "text", "tint", "human":
		return FormatText
	case "json":
		return FormatJSON
	default:
		return FormatAuto
	}
}

// ParseLevel converts a string to a slog.Level, defaulting to Info.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// NewHandler builds a handler for w: tinted text on terminals (or when
// forced), JSON otherwise.
func NewHandler(w io.Writer, format Format, leveler slog.Leveler) slog.Handler {
	useTint := format == FormatText || (format == FormatAuto && IsTTY(w))
	if useTint {
		return tinter.NewHandler(w, &tinter.Options{
			Level:      leveler,
			TimeFormat: "15:04:05.000",
		})
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: leveler})
}

// Setup configures the global slog logger writing to w. Call once after
// flag/viper parsing.
func Setup(w io.Writer, format Format, l slog.Level) {
	level.Set(l)
	slog.SetDefault(slog.New(NewHandler(w, format, level)))
}

// SetLevel changes the level of the installed logger
func SetLevel(l slog.Level) {
	if level.Level() != l {
		level.Set(l)
		slog.Info("log level changed", "level", l)
	}
}

// Level returns the current level
func Level() slog.Level {
	return level.Level()
}

// OpenFile opens the append-only log file in dir. The menu bar app has no
// terminal, so its logs go here.
func OpenFile(dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, LogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}
