// Package logging provides config-driven categorized file-based logging for
// converse. Logs are written to <dir>/logs/ with separate files per
// category; when logging is disabled every call is a silent no-op.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category/system.
type Category string

const (
	CategoryBoot         Category = "boot"         // Startup and initialization
	CategoryEngine       Category = "engine"       // Turn loop, phase transitions
	CategoryRules        Category = "rules"        // Rule firing and priorities
	CategoryGrounding    Category = "grounding"    // ICM strategy decisions
	CategoryPerception   Category = "perception"   // Utterance -> moves
	CategoryArticulation Category = "articulation" // Moves -> utterances
	CategoryTactile      Category = "tactile"      // Device action execution
	CategoryDomain       Category = "domain"       // Domain registry, reloads
	CategoryKernel       Category = "kernel"       // Mangle knowledge base
	CategoryStore        Category = "store"        // Checkpoint store
)

// Config controls which categories get written and at what level.
type Config struct {
	Enabled    bool            `yaml:"enabled" json:"enabled"`
	Level      string          `yaml:"level" json:"level"`
	Categories map[string]bool `yaml:"categories" json:"categories"`
	JSONFormat bool            `yaml:"json_format" json:"json_format"`
}

// StructuredLogEntry is the JSON log form.
type StructuredLogEntry struct {
	Timestamp int64                  `json:"ts"`
	Category  string                 `json:"cat"`
	Level     string                 `json:"lvl"`
	Message   string                 `json:"msg"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Logger wraps a standard logger with category and file output.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	logsDir   string
	cfg       Config
	cfgMu     sync.RWMutex
	logLevel  int
)

// Log levels.
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Initialize sets up the logging directory from an explicit config. Call
// once at startup; calls before Initialize are no-ops.
func Initialize(dir string, c Config) error {
	cfgMu.Lock()
	cfg = c
	switch c.Level {
	case "debug":
		logLevel = LevelDebug
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}
	cfgMu.Unlock()

	if !c.Enabled {
		return nil
	}
	if dir == "" {
		return fmt.Errorf("log directory required")
	}
	logsDir = filepath.Join(dir, "logs")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== converse logging initialized ===")
	boot.Info("Logs directory: %s", logsDir)
	boot.Info("Log level: %s", c.Level)
	return nil
}

// IsCategoryEnabled returns whether a specific category is enabled.
func IsCategoryEnabled(category Category) bool {
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	if !cfg.Enabled {
		return false
	}
	if cfg.Categories == nil {
		return true
	}
	enabled, exists := cfg.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category. Returns a
// no-op logger when the category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) || logsDir == "" {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", date, category))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

func (l *Logger) logJSON(level, msg string) {
	entry := StructuredLogEntry{
		Timestamp: time.Now().UnixMilli(),
		Category:  string(l.category),
		Level:     level,
		Message:   msg,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		l.logger.Printf("[%s] %s", level, msg)
		return
	}
	l.logger.Printf("%s", data)
}

func (l *Logger) write(level int, tag, format string, args ...interface{}) {
	if l.logger == nil || logLevel > level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	cfgMu.RLock()
	jsonFmt := cfg.JSONFormat
	cfgMu.RUnlock()
	if jsonFmt {
		l.logJSON(tag, msg)
	} else {
		l.logger.Printf("[%s] %s", tag, msg)
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.write(LevelDebug, "DEBUG", format, args...)
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.write(LevelInfo, "INFO", format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.write(LevelWarn, "WARN", format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	l.write(LevelError, "ERROR", format, args...)
}

// CloseAll closes all open log files (call at shutdown).
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// =============================================================================

// Boot logs to the boot category.
func Boot(format string, args ...interface{}) { Get(CategoryBoot).Info(format, args...) }

// Engine logs to the engine category.
func Engine(format string, args ...interface{}) { Get(CategoryEngine).Info(format, args...) }

// EngineDebug logs debug to the engine category.
func EngineDebug(format string, args ...interface{}) { Get(CategoryEngine).Debug(format, args...) }

// Rules logs to the rules category.
func Rules(format string, args ...interface{}) { Get(CategoryRules).Info(format, args...) }

// RulesDebug logs debug to the rules category.
func RulesDebug(format string, args ...interface{}) { Get(CategoryRules).Debug(format, args...) }

// Grounding logs to the grounding category.
func Grounding(format string, args ...interface{}) { Get(CategoryGrounding).Info(format, args...) }

// GroundingDebug logs debug to the grounding category.
func GroundingDebug(format string, args ...interface{}) {
	Get(CategoryGrounding).Debug(format, args...)
}

// Perception logs to the perception category.
func Perception(format string, args ...interface{}) { Get(CategoryPerception).Info(format, args...) }

// PerceptionDebug logs debug to the perception category.
func PerceptionDebug(format string, args ...interface{}) {
	Get(CategoryPerception).Debug(format, args...)
}

// Articulation logs to the articulation category.
func Articulation(format string, args ...interface{}) {
	Get(CategoryArticulation).Info(format, args...)
}

// Tactile logs to the tactile category.
func Tactile(format string, args ...interface{}) { Get(CategoryTactile).Info(format, args...) }

// TactileDebug logs debug to the tactile category.
func TactileDebug(format string, args ...interface{}) { Get(CategoryTactile).Debug(format, args...) }

// Domain logs to the domain category.
func Domain(format string, args ...interface{}) { Get(CategoryDomain).Info(format, args...) }

// DomainDebug logs debug to the domain category.
func DomainDebug(format string, args ...interface{}) { Get(CategoryDomain).Debug(format, args...) }

// Kernel logs to the kernel category.
func Kernel(format string, args ...interface{}) { Get(CategoryKernel).Info(format, args...) }

// KernelDebug logs debug to the kernel category.
func KernelDebug(format string, args ...interface{}) { Get(CategoryKernel).Debug(format, args...) }

// Store logs to the store category.
func Store(format string, args ...interface{}) { Get(CategoryStore).Info(format, args...) }

// StoreDebug logs debug to the store category.
func StoreDebug(format string, args ...interface{}) { Get(CategoryStore).Debug(format, args...) }

// =============================================================================
// TIMING HELPERS - For performance logging
// =============================================================================

// Timer helps measure operation duration.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration at debug level.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithInfo ends the timer and logs at info level.
func (t *Timer) StopWithInfo() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Info("%s completed in %v", t.op, elapsed)
	return elapsed
}
