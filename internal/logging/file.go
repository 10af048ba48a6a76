package logging

import (
	"io"
	"log/slog"

	"github.com/loctrack/agent/internal/filex"
)

// NewFileLogger opens (creating if necessary) a rotating log file at path
// and returns a Logger writing to it at the given level, along with the
// io.Closer the caller must close on shutdown. Grounded on SPEC_FULL.md's
// "log file rotates at 1 MiB" ambient-logging requirement.
func NewFileLogger(path, level string) (*SlogLogger, io.Closer, error) {
	w, err := filex.NewRotatingWriter(path, filex.DefaultRotateSize)
	if err != nil {
		return nil, nil, err
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(level)})
	return NewSlogLogger(slog.New(h)), w, nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
