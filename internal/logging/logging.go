// Package logging writes diagnostics to a file while the TUI owns the terminal.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const fileName = "tuimeta.log"

var (
	mu      sync.Mutex
	logger  = zerolog.Nop()
	logFile *os.File
)

// Init opens the log file in dir and installs the console-formatted logger.
func Init(dir, level string) error {
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, fileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = f
	logger = newLogger(f, lvl)
	return nil
}

// InitWriter installs a logger writing to w. Used by tests.
func InitWriter(w io.Writer, level zerolog.Level) {
	mu.Lock()
	defer mu.Unlock()
	logger = newLogger(w, level)
}

func newLogger(w io.Writer, lvl zerolog.Level) zerolog.Logger {
	console := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	return zerolog.New(console).Level(lvl).With().Timestamp().Int("pid", os.Getpid()).Logger()
}

// Close flushes and closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
	logger = zerolog.Nop()
}

// L returns the current logger. It is a no-op logger before Init.
func L() *zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	l := logger
	return &l
}

func Info(msg string) {
	L().Info().Msg(msg)
}

func Warnf(format string, args ...any) {
	L().Warn().Msg(fmt.Sprintf(format, args...))
}

func Errorf(format string, args ...any) {
	L().Error().Msg(fmt.Sprintf(format, args...))
}

// Request records one call to the remote service.
func Request(method, path, requestID string, status int, elapsed time.Duration, err error) {
	ev := L().Info()
	if err != nil {
		ev = L().Warn().Err(err)
	}
	ev.Str("method", method).
		Str("path", path).
		Str("request_id", requestID).
		Int("status", status).
		Float64("total_ms", float64(elapsed.Microseconds())/1000).
		Msg("service_request")
}

// SpeechEvent records a speech session transition.
func SpeechEvent(event, tag string, seq uint64) {
	L().Info().Str("event", event).Str("tag", tag).Uint64("seq", seq).Msg("speech")
}
