package internal

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// ParseLevel maps a config or env level name to a log level, defaulting to warn
// so hooks stay quiet inside git's own output.
func ParseLevel(s string) log.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.WarnLevel
	}
}

// NewLogger builds the process logger. KEEPER_LOG_LEVEL and KEEPER_LOG_FILE
// override cfg. With a file configured, records go there instead of w; the
// returned closer must be closed on exit.
func NewLogger(cfg LogConfig, w io.Writer) (*log.Logger, io.Closer, error) {
	level := cfg.Level
	if env := os.Getenv("KEEPER_LOG_LEVEL"); env != "" {
		level = env
	}
	path := cfg.File
	if env := os.Getenv("KEEPER_LOG_FILE"); env != "" {
		path = env
	}

	var closer io.Closer = nopCloser{}
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, nil, err
		}
		w, closer = f, f
	}

	logger := log.NewWithOptions(w, log.Options{
		Level:           ParseLevel(level),
		Prefix:          "keeper",
		ReportTimestamp: path != "",
	})
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NopLogger discards everything.
func NopLogger() *log.Logger {
	return log.New(io.Discard)
}

// logOp logs the outcome and duration of an operation when the returned
// function is called.
//
//	done := logOp(logger, "post-rewrite", "count", n)
//	defer func() { done(err) }()
func logOp(logger *log.Logger, op string, keyvals ...any) func(error) {
	start := time.Now()
	return func(err error) {
		args := make([]any, 0, len(keyvals)+6)
		args = append(args, "op", op, "duration", time.Since(start).String())
		args = append(args, keyvals...)
		if err != nil {
			args = append(args, "error", err.Error())
			logger.Error("operation failed", args...)
			return
		}
		logger.Debug("operation complete", args...)
	}
}
