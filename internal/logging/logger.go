package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

const defaultBufferSize = 1000

// Logger is satisfied by *slog.Logger. Packages that only emit logs accept
// this instead of the concrete type.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config is the [logging] table: a global level, an output format and
// per-module level overrides.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

var (
	mutex          sync.RWMutex
	current        Config
	initialized    bool
	globalLevelVar = &slog.LevelVar{}
	loggers        = make(map[string]*slog.Logger)
	levelVars      = make(map[string]*slog.LevelVar)
	logBuffer      = NewRingBuffer(defaultBufferSize)
	logCallback    LogCallback
)

// Initialize configures the logging system. Loggers handed out before the
// call are rebuilt so they pick up the configured format and outputs.
func Initialize(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	current = config
	initialized = true
	globalLevelVar.Set(levelOr(config.Level, slog.LevelInfo))

	for module, lv := range levelVars {
		lv.Set(moduleLevel(config, module))
		loggers[module] = slog.New(createHandler(config.Format, lv)).With("module", module)
	}

	slog.SetDefault(slog.New(createHandler(config.Format, globalLevelVar)))
}

// Apply updates levels in place without rebuilding handlers. Used when the
// config file is reloaded at runtime; the format is not changed.
func Apply(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	current.Level = config.Level
	current.Modules = config.Modules
	globalLevelVar.Set(levelOr(config.Level, slog.LevelInfo))
	for module, lv := range levelVars {
		lv.Set(moduleLevel(current, module))
	}
}

// SetModuleLevel changes the level of a single module at runtime.
// Returns false if the level string is not recognised.
func SetModuleLevel(module, level string) bool {
	parsed := parseLevel(level)
	if parsed == nil {
		return false
	}

	mutex.Lock()
	defer mutex.Unlock()
	if current.Modules == nil {
		current.Modules = make(map[string]string)
	}
	current.Modules[module] = level
	if lv, ok := levelVars[module]; ok {
		lv.Set(*parsed)
	}
	return true
}

// GetLogger returns the logger for a module, creating it on first use.
func GetLogger(module string) *slog.Logger {
	mutex.RLock()
	if logger, ok := loggers[module]; ok {
		mutex.RUnlock()
		return logger
	}
	mutex.RUnlock()

	mutex.Lock()
	defer mutex.Unlock()
	if logger, ok := loggers[module]; ok {
		return logger
	}

	lv := &slog.LevelVar{}
	format := "text"
	if initialized {
		lv.Set(moduleLevel(current, module))
		format = current.Format
	}

	logger := slog.New(createHandler(format, lv)).With("module", module)
	loggers[module] = logger
	levelVars[module] = lv
	return logger
}

// GetBuffer returns the ring buffer holding recent log entries.
func GetBuffer() *RingBuffer {
	return logBuffer
}

// SetLogCallback registers a function invoked for every buffered entry.
func SetLogCallback(callback LogCallback) {
	mutex.Lock()
	defer mutex.Unlock()
	logCallback = callback
}

func currentCallback() LogCallback {
	mutex.RLock()
	defer mutex.RUnlock()
	return logCallback
}

func moduleLevel(config Config, module string) slog.Level {
	level := levelOr(config.Level, slog.LevelInfo)
	if s, ok := config.Modules[module]; ok {
		level = levelOr(s, level)
	}
	return level
}

// createHandler builds the output chain: stdout (text or json), the systemd
// journal when present, and the in-memory ring buffer.
func createHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var stdout slog.Handler
	if format == "json" {
		stdout = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		stdout = slog.NewTextHandler(os.Stdout, opts)
	}

	handlers := make([]slog.Handler, 0, 3)
	if isStdoutAvailable() {
		handlers = append(handlers, stdout)
	}
	if IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}
	handlers = append(handlers, NewBufferHandler(logBuffer, level, currentCallback))

	if len(handlers) == 1 {
		return handlers[0]
	}
	return NewMultiHandler(handlers...)
}

// isStdoutAvailable is false when stdout is /dev/null or closed.
func isStdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&os.ModeCharDevice != 0 || mode&os.ModeNamedPipe != 0 || mode&os.ModeSocket != 0 || mode.IsRegular()
}

func levelOr(level string, fallback slog.Level) slog.Level {
	if parsed := parseLevel(level); parsed != nil {
		return *parsed
	}
	return fallback
}

func parseLevel(level string) *slog.Level {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug", "trace":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return nil
	}
	return &l
}
