// Package logger is the process-wide structured logger of the wikidumps CLI.
// Output goes to stdout and, when a log file is set, to a size-rotated file.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/cperrin88/wikidumps/pkg/fsutil"
	"gopkg.in/natefinch/lumberjack.v2"
)

// OutputFormat selects the slog handler.
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// Rotation limits of the log file.
const (
	LogFileMaxSizeMB  = 100
	LogFileMaxBackups = 10
)

// Fields is a type alias for log fields to make the API cleaner
type Fields map[string]interface{}

var (
	mu        sync.Mutex
	logger    *slog.Logger
	level     = new(slog.LevelVar)
	outFormat = FormatText
	logFile   *lumberjack.Logger
	testOut   io.Writer
)

// SetTestOutput sets the output writer for testing purposes
func SetTestOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	testOut = w
}

// UnsetTestOutput resets the test output to nil
func UnsetTestOutput() {
	mu.Lock()
	defer mu.Unlock()
	testOut = nil
}

// ParseLevel maps a configured level name to a slog level. Unknown names
// fall back to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
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

// ParseFormat maps a configured format name to an OutputFormat.
func ParseFormat(name string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(name)); f {
	case FormatText, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown log format %q, must be text or json", name)
	}
}

// InitLogger initializes the global logger for CLI operations.
func InitLogger(logLevel string, f OutputFormat) {
	mu.Lock()
	defer mu.Unlock()
	level.Set(ParseLevel(logLevel))
	outFormat = f
	rebuild()
}

// SetLevel changes the level of the running logger.
func SetLevel(logLevel string) {
	level.Set(ParseLevel(logLevel))
}

// SetOutputFormat switches between text and JSON output.
func SetOutputFormat(f OutputFormat) {
	mu.Lock()
	defer mu.Unlock()
	outFormat = f
	rebuild()
}

// SetLogFile additionally writes every record to path, rotated by size.
// An empty path stops file logging.
func SetLogFile(path string) error {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
	if path != "" {
		// Fail early on an unwritable location; lumberjack would only report it
		// on the first write.
		fh, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, fsutil.FileModeSecure)
		if err != nil {
			rebuild()
			return fmt.Errorf("failed to open log file: %w", err)
		}
		_ = fh.Close()
		logFile = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    LogFileMaxSizeMB,
			MaxBackups: LogFileMaxBackups,
			LocalTime:  true,
		}
	}
	rebuild()
	return nil
}

// Close flushes and closes the log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	rebuild()
	return err
}

// rebuild must be called with mu held.
func rebuild() {
	var out io.Writer = os.Stdout
	if testOut != nil {
		out = testOut
	}
	if logFile != nil {
		out = io.MultiWriter(out, logFile)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if outFormat == FormatJSON {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	logger = slog.New(handler)
}

// GetLogger returns the configured logger instance.
func GetLogger() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		// Initialize with default settings if not already initialized
		rebuild()
	}
	return logger
}

// Info logs an info message.
func Info(msg string, fields ...Fields) {
	GetLogger().Info(msg, mergeFields(fields...)...)
}

// Debug logs a debug message (only shown when debug level is enabled).
func Debug(msg string, fields ...Fields) {
	GetLogger().Debug(msg, mergeFields(fields...)...)
}

// Error logs an error message.
func Error(msg string, fields ...Fields) {
	GetLogger().Error(msg, mergeFields(fields...)...)
}

// Warn logs a warning message.
func Warn(msg string, fields ...Fields) {
	GetLogger().Warn(msg, mergeFields(fields...)...)
}

// Success logs a success message as info with success indicator.
func Success(msg string, fields ...Fields) {
	allFields := mergeFields(fields...)
	allFields = append(allFields, "status", "success")
	GetLogger().Info(msg, allFields...)
}

// mergeFields merges multiple field maps into one slice of key-value pairs for slog.
// Keys keep the order of the maps they first appear in, sorted within a map;
// later maps win on duplicate keys.
func mergeFields(fields ...Fields) []interface{} {
	merged := make(map[string]interface{})
	var order []string
	for _, field := range fields {
		keys := make([]string, 0, len(field))
		for k := range field {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if _, seen := merged[k]; !seen {
				order = append(order, k)
			}
			merged[k] = field[k]
		}
	}
	result := make([]interface{}, 0, len(order)*2)
	for _, k := range order {
		result = append(result, k, merged[k])
	}
	return result
}
