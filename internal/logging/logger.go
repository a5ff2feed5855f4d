package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/reflexrun/reflex/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a *zap.SugaredLogger scoped to one Category, writing to
// that category's own file under the configured logs directory.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu      sync.RWMutex
	loggers = make(map[Category]*Logger)
	cfg     config.LoggingConfig
	logsDir string
	level   zapcore.Level
)

// Initialize sets up the logging directory and remembers cfg for every
// subsequent Get call. Must be called once at startup, before any
// actor goroutine is spawned.
func Initialize(c config.LoggingConfig, dir string) error {
	mu.Lock()
	cfg = c
	logsDir = dir
	level = parseLevel(c.Level)
	mu.Unlock()

	if !c.DebugMode {
		return nil // production mode: only Boot/CLI categories log, to stderr
	}
	if dir == "" {
		return fmt.Errorf("logs directory required in debug mode")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("reflexd logging initialized (level=%s format=%s dir=%s)", c.Level, c.Format, dir)
	return nil
}

func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// IsDebugMode reports whether debug_mode is set.
func IsDebugMode() bool {
	mu.RLock()
	defer mu.RUnlock()
	return cfg.DebugMode
}

// IsCategoryEnabled reports whether a category is enabled under the
// current config.
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return cfg.IsCategoryEnabled(string(category))
}

// Get returns (or lazily creates) the Logger for category. Returns a
// no-op logger — cheap to call unconditionally from hot paths — when
// the category or debug mode is disabled, except that a disabled
// CategoryBoot or CategoryCLI gets a stderr logger instead.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	enabled := cfg.IsCategoryEnabled(string(category))
	dir := logsDir
	lvl := level
	format := cfg.Format
	mu.RUnlock()

	if !enabled {
		if category == CategoryBoot || category == CategoryCLI {
			return stderrLogger(category, lvl, format)
		}
		return &Logger{category: category, sugar: zap.NewNop().Sugar()}
	}

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	l := newFileLogger(category, dir, lvl, format)
	loggers[category] = l
	return l
}

func newFileLogger(category Category, dir string, lvl zapcore.Level, format string) *Logger {
	if dir == "" {
		return stderrLogger(category, lvl, format)
	}
	date := time.Now().Format("2006-01-02")
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.log", date, category))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] could not open %s: %v\n", path, err)
		return stderrLogger(category, lvl, format)
	}
	core := zapcore.NewCore(encoderFor(format), zapcore.AddSync(file), lvl)
	return &Logger{category: category, sugar: zap.New(core).Sugar()}
}

func stderrLogger(category Category, lvl zapcore.Level, format string) *Logger {
	core := zapcore.NewCore(encoderFor(format), zapcore.AddSync(os.Stderr), lvl)
	return &Logger{category: category, sugar: zap.New(core).Sugar()}
}

func encoderFor(format string) zapcore.Encoder {
	if format == "json" {
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	ec := zap.NewDevelopmentEncoderConfig()
	return zapcore.NewConsoleEncoder(ec)
}

func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// With returns a child Logger that attaches the given key-value pairs
// (an even-length list, per zap.SugaredLogger.With) to every entry.
func (l *Logger) With(kv ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(kv...)}
}

// Sync flushes every open category logger; call once at shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	for _, l := range loggers {
		_ = l.sugar.Sync()
	}
}

// Boot, BootDebug, BootWarn, and BootError are convenience wrappers
// around Get(CategoryBoot), matching the teacher's top-level
// Boot/BootDebug/BootError functions used from main/startup code before
// any component-specific logger is in scope.
func Boot(format string, args ...interface{})      { Get(CategoryBoot).Info(format, args...) }
func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debug(format, args...) }
func BootWarn(format string, args ...interface{})  { Get(CategoryBoot).Warn(format, args...) }
func BootError(format string, args ...interface{}) { Get(CategoryBoot).Error(format, args...) }
