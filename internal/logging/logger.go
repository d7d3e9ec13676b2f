// Package logging provides categorized, zap-backed logging for mglint.
// Until Initialize or Use is called every logger is a no-op, so library
// code can log unconditionally.
package logging

import (
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"mglint/internal/config"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot      Category = "boot"      // startup, config loading
	CategoryAnalyze   Category = "analyze"   // per-source analysis pipeline
	CategoryWorkspace Category = "workspace" // editor document store
	CategoryReference Category = "reference" // upstream cross-check
	CategoryCheck     Category = "check"     // batch runner
	CategoryWatch     Category = "watch"     // file watcher
	CategoryHistory   Category = "history"   // run history database
	CategoryCLI       Category = "cli"
)

// Logger is a category-scoped printf-style logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger // nil for no-op
}

var (
	mu         sync.RWMutex
	base       *zap.Logger
	level      = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	categories config.LoggingConfig
	loggers    = make(map[Category]*Logger)
)

// Initialize builds the process logger from cfg.
func Initialize(cfg config.LoggingConfig) error {
	lvl := zapcore.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		lvl = parsed
	}
	if cfg.DebugMode {
		lvl = zapcore.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if cfg.Format == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	sink := zapcore.Lock(os.Stderr)
	if cfg.File != "" {
		ws, _, err := zap.Open(cfg.File)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		sink = ws
	}

	atom := zap.NewAtomicLevelAt(lvl)
	logger := zap.New(zapcore.NewCore(enc, sink, atom))

	mu.Lock()
	defer mu.Unlock()
	base = logger
	level = atom
	categories = cfg
	loggers = make(map[Category]*Logger)
	return nil
}

// Use installs l as the base logger with every category enabled. Tests pass
// a zaptest or observer logger here.
func Use(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	base = l
	categories = config.LoggingConfig{}
	loggers = make(map[Category]*Logger)
}

// Reset returns to the uninitialized no-op state.
func Reset() {
	Use(nil)
}

// SetLevel changes the level of a logger built by Initialize.
func SetLevel(l zapcore.Level) {
	mu.RLock()
	defer mu.RUnlock()
	level.SetLevel(l)
}

// Sync flushes buffered entries. Call at exit.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	if base == nil {
		return nil
	}
	return base.Sync()
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return base != nil && categories.IsCategoryEnabled(string(category))
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if logging is uninitialized or the category is off.
func Get(category Category) *Logger {
	mu.RLock()
	l, ok := loggers[category]
	mu.RUnlock()
	if ok {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	l = &Logger{category: category}
	if base != nil && categories.IsCategoryEnabled(string(category)) {
		l.sugar = base.Named(string(category)).Sugar()
	}
	loggers[category] = l
	return l
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.sugar != nil {
		l.sugar.Debugf(format, args...)
	}
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	if l.sugar != nil {
		l.sugar.Infof(format, args...)
	}
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.sugar != nil {
		l.sugar.Warnf(format, args...)
	}
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	if l.sugar != nil {
		l.sugar.Errorf(format, args...)
	}
}

// With returns a logger that adds key/value pairs to every entry.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	if l.sugar == nil {
		return l
	}
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// =============================================================================
// CONVENIENCE FUNCTIONS
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) { Get(CategoryBoot).Info(format, args...) }

// BootDebug logs debug to the boot category
func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debug(format, args...) }

// Analyze logs to the analyze category
func Analyze(format string, args ...interface{}) { Get(CategoryAnalyze).Info(format, args...) }

// AnalyzeDebug logs debug to the analyze category
func AnalyzeDebug(format string, args ...interface{}) { Get(CategoryAnalyze).Debug(format, args...) }

// WorkspaceDebug logs debug to the workspace category
func WorkspaceDebug(format string, args ...interface{}) {
	Get(CategoryWorkspace).Debug(format, args...)
}

// ReferenceWarn logs a warning to the reference category
func ReferenceWarn(format string, args ...interface{}) { Get(CategoryReference).Warn(format, args...) }

// Check logs to the check category
func Check(format string, args ...interface{}) { Get(CategoryCheck).Info(format, args...) }

// CheckDebug logs debug to the check category
func CheckDebug(format string, args ...interface{}) { Get(CategoryCheck).Debug(format, args...) }

// CheckWarn logs a warning to the check category
func CheckWarn(format string, args ...interface{}) { Get(CategoryCheck).Warn(format, args...) }

// Watch logs to the watch category
func Watch(format string, args ...interface{}) { Get(CategoryWatch).Info(format, args...) }

// WatchDebug logs debug to the watch category
func WatchDebug(format string, args ...interface{}) { Get(CategoryWatch).Debug(format, args...) }

// WatchError logs an error to the watch category
func WatchError(format string, args ...interface{}) { Get(CategoryWatch).Error(format, args...) }

// History logs to the history category
func History(format string, args ...interface{}) { Get(CategoryHistory).Info(format, args...) }

// HistoryError logs an error to the history category
func HistoryError(format string, args ...interface{}) { Get(CategoryHistory).Error(format, args...) }

// =============================================================================
// TIMING HELPERS
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration at debug level
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs a warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
