package config

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// SetupLogger creates a logger writing text to console and JSON to logFile.
// A nil console logs to the file only, which keeps the terminal free for the
// progress view. Returns the logger and a cleanup function to close the file.
func SetupLogger(logFile string, level slog.Level, console io.Writer) (*slog.Logger, func() error) {
	var handlers []slog.Handler
	if console != nil {
		handlers = append(handlers, slog.NewTextHandler(console, &slog.HandlerOptions{
			Level: level,
		}))
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		// Fall back to stderr if the file cannot be opened
		stderr := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
		slog.New(stderr).Warn("failed to open log file, logging to stderr", "error", err, "file", logFile)
		if console == nil {
			handlers = append(handlers, stderr)
		}
		return slog.New(slogmulti.Fanout(handlers...)), func() error { return nil }
	}

	handlers = append(handlers, slog.NewJSONHandler(file, &slog.HandlerOptions{
		Level: level,
	}))
	logger := slog.New(slogmulti.Fanout(handlers...))

	cleanup := func() error {
		return file.Close()
	}

	return logger, cleanup
}

// SetupLoggerWithWriters creates a logger with custom writers (for testing).
func SetupLoggerWithWriters(console, file io.Writer, level slog.Level) *slog.Logger {
	consoleHandler := slog.NewTextHandler(console, &slog.HandlerOptions{Level: level})
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return slog.New(slogmulti.Fanout(consoleHandler, fileHandler))
}
