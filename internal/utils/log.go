package utils

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

type LogOptions struct {
	// Level of the console handler. The file handler always logs debug.
	Level slog.Level
	// FilePath, when set, receives a plain text copy of every record.
	FilePath string
}

// ParseLogLevel accepts debug, info, warn and error.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(s)))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// SetupLogger installs a colored console handler on stderr, plus a file
// handler when opts.FilePath is set, as the default slog logger. The
// returned closer flushes the log file.
func SetupLogger(opts LogOptions) (io.Closer, error) {
	consoleHandler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      opts.Level,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})

	if opts.FilePath == "" {
		slog.SetDefault(slog.New(consoleHandler))
		return io.NopCloser(nil), nil
	}

	if err := EnsureParent(opts.FilePath); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(opts.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})

	slog.SetDefault(slog.New(NewMultiLogHandler(consoleHandler, fileHandler)))
	return file, nil
}
