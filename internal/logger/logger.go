// Package logger provides the application logger: log/slog with a
// daily-rotated file handler, stderr mirroring and retention cleanup.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Level represents the logging level
type Level int

const (
	// DEBUG level for detailed debugging information
	DEBUG Level = iota
	// INFO level for informational messages
	INFO
	// WARN level for warning messages
	WARN
	// ERROR level for error messages
	ERROR
)

// String returns the string representation of the level
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case DEBUG:
		return slog.LevelDebug
	case WARN:
		return slog.LevelWarn
	case ERROR:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config holds logger configuration
type Config struct {
	LogDir        string
	Level         Level
	RetentionDays int
	// MirrorStderr copies every record to stderr in addition to the file
	MirrorStderr bool
}

// DefaultConfig returns the default logger configuration
func DefaultConfig() Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	logDir := filepath.Join(homeDir, "Library", "Application Support", "EzDictate", "logs")

	return Config{
		LogDir:        logDir,
		Level:         INFO,
		RetentionDays: 7,
		MirrorStderr:  true,
	}
}

// Logger writes structured records through slog. The printf-style methods
// exist so the rest of the application can log without building attr lists.
type Logger struct {
	level  *slog.LevelVar
	slog   *slog.Logger
	writer *rotatingWriter
}

// New creates a new logger
func New(config Config) (*Logger, error) {
	writer, err := newRotatingWriter(config.LogDir, config.RetentionDays)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	var out io.Writer = writer
	if config.MirrorStderr {
		out = io.MultiWriter(writer, os.Stderr)
	}

	level := &slog.LevelVar{}
	level.Set(config.Level.slogLevel())

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})

	return &Logger{
		level:  level,
		slog:   slog.New(handler),
		writer: writer,
	}, nil
}

// Slog exposes the underlying structured logger for packages that prefer
// attribute-based logging.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) {
	l.slog.Debug(fmt.Sprintf(format, v...))
}

// Info logs an informational message
func (l *Logger) Info(format string, v ...interface{}) {
	l.slog.Info(fmt.Sprintf(format, v...))
}

// Warn logs a warning message
func (l *Logger) Warn(format string, v ...interface{}) {
	l.slog.Warn(fmt.Sprintf(format, v...))
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	l.slog.Error(fmt.Sprintf(format, v...))
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level Level) {
	l.level.Set(level.slogLevel())
}

// GetLevel returns the current logging level
func (l *Logger) GetLevel() Level {
	switch l.level.Level() {
	case slog.LevelDebug:
		return DEBUG
	case slog.LevelWarn:
		return WARN
	case slog.LevelError:
		return ERROR
	default:
		return INFO
	}
}

// Close closes the log file
func (l *Logger) Close() error {
	return l.writer.Close()
}

// rotatingWriter appends to a per-day log file, switching files when the day
// changes and removing files older than the retention window.
type rotatingWriter struct {
	mu            sync.Mutex
	dir           string
	retentionDays int
	file          *os.File
	currentDay    string
}

func newRotatingWriter(dir string, retentionDays int) (*rotatingWriter, error) {
	w := &rotatingWriter{dir: dir, retentionDays: retentionDays}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.rotateLocked(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if today := time.Now().Format("20060102"); today != w.currentDay {
		if err := w.rotateLocked(); err != nil {
			return 0, err
		}
	}
	return w.file.Write(p)
}

func (w *rotatingWriter) rotateLocked() error {
	today := time.Now().Format("20060102")

	if w.file != nil {
		w.file.Close()
		w.file = nil
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	path := filepath.Join(w.dir, fmt.Sprintf("ezdictate-%s.log", today))
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	w.file = file
	w.currentDay = today

	if err := w.cleanOldLogs(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to clean old logs: %v\n", err)
	}
	return nil
}

// cleanOldLogs deletes log files older than retentionDays
func (w *rotatingWriter) cleanOldLogs() error {
	if w.retentionDays <= 0 {
		return nil
	}
	cutoffDate := time.Now().AddDate(0, 0, -w.retentionDays)

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("failed to read log directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".log" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoffDate) {
			os.Remove(filepath.Join(w.dir, entry.Name()))
		}
	}

	return nil
}

func (w *rotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file != nil {
		err := w.file.Close()
		w.file = nil
		return err
	}
	return nil
}
