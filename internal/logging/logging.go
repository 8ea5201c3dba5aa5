package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Log levels constants.
const (
	None = iota
	Error
	Warning
	Info
	Debug
)

var (
	currentLevel atomic.Int32 // Stores the current logging level atomically.

	mu     sync.RWMutex
	output io.Writer = os.Stderr
	logger zerolog.Logger
)

func init() {
	// Default log level is Info.
	currentLevel.Store(Info)
	logger = newLogger(output)
}

// newLogger builds the console logger used for all migration output.
// Colour is only enabled when writing to a terminal-backed stderr.
func newLogger(w io.Writer) zerolog.Logger {
	cw := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "2006/01/02 15:04:05.000000",
		NoColor:    w != os.Stderr,
	}
	return zerolog.New(cw).Level(zerolog.TraceLevel).With().Timestamp().Logger()
}

// toZerolog maps a package level onto the zerolog level it is emitted at.
func toZerolog(level int) zerolog.Level {
	switch level {
	case Error:
		return zerolog.ErrorLevel
	case Warning:
		return zerolog.WarnLevel
	case Info:
		return zerolog.InfoLevel
	case Debug:
		return zerolog.DebugLevel
	default:
		return zerolog.NoLevel
	}
}

// SetLevel atomically sets the global logging level.
// It clamps the input level to the valid range [None, Debug].
func SetLevel(level int) {
	if level < None {
		level = None
	} else if level > Debug {
		level = Debug
	}
	currentLevel.Store(int32(level))
	if level >= Debug {
		logf(Debug, "Log level set to %d", level)
	}
}

// GetLevel atomically retrieves the current logging level.
func GetLevel() int {
	return int(currentLevel.Load())
}

// ParseLevel converts a log level string (case-insensitive) to its integer representation.
// Returns Info level and an error if the string is invalid.
func ParseLevel(levelStr string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "none":
		return None, nil
	case "error":
		return Error, nil
	case "warn", "warning":
		return Warning, nil
	case "info":
		return Info, nil
	case "debug":
		return Debug, nil
	default:
		return Info, fmt.Errorf("invalid log level string: '%s'", levelStr)
	}
}

// SetupLogging configures the logging level based on an input string.
// Logs a warning and uses Info level if the input string is invalid.
// Returns the finally set log level.
func SetupLogging(levelStr string) int {
	level, err := ParseLevel(levelStr)
	if err != nil {
		logf(Warning, "Invalid log level '%s' provided, defaulting to 'info'. Error: %v", levelStr, err)
	}
	SetLevel(level)
	return level
}

// SetOutput changes the output destination of the global logger.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	logger = newLogger(w)
}

// Enabled reports whether messages at level would currently be written.
func Enabled(level int) bool {
	return level > None && int32(level) <= currentLevel.Load()
}

// Event starts a structured log entry at the given level. It returns nil when the
// level is disabled; a nil *zerolog.Event is safe to chain and discards everything.
func Event(level int) *zerolog.Event {
	if !Enabled(level) {
		return nil
	}
	mu.RLock()
	l := logger
	mu.RUnlock()
	return l.WithLevel(toZerolog(level))
}

func logf(level int, format string, v ...interface{}) {
	if !Enabled(level) {
		return
	}

	mu.RLock()
	l := logger
	mu.RUnlock()

	ev := l.WithLevel(toZerolog(level))
	if level == Debug {
		// runtime.Caller(2) is the caller of Logf.
		if pc, file, line, ok := runtime.Caller(2); ok {
			funcName := "???"
			if f := runtime.FuncForPC(pc); f != nil {
				funcName = filepath.Base(f.Name())
			}
			ev = ev.Str("caller", fmt.Sprintf("%s:%d:%s", filepath.Base(file), line, funcName))
		}
	}
	ev.Msg(fmt.Sprintf(format, v...))
}

// Logf logs a formatted message if the specified level is enabled according to the global setting.
// This is the public logging function intended for use by other packages.
func Logf(level int, format string, v ...interface{}) {
	logf(level, format, v...)
}

// Since formats the elapsed time since start for progress lines.
func Since(start time.Time) string {
	return time.Since(start).Round(time.Millisecond).String()
}
