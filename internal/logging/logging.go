// Package logging builds the slog logger shared by every command.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New returns a text logger writing to stderr and, when file is set, appending to it too.
// The returned closer releases the file and is never nil.
func New(level, file string) (*slog.Logger, io.Closer, error) {
	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, err
		}
		out = io.MultiWriter(os.Stderr, f)
		closer = f
	}
	h := slog.NewTextHandler(out, &slog.HandlerOptions{Level: ParseLevel(level)})
	return slog.New(h), closer, nil
}

// ParseLevel maps debug|info|warn|error to a slog level, info otherwise.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard is a logger that drops everything, handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
