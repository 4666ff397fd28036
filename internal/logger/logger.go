package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Environment variable to configure log file path.
const envLogPath = "FOLIO_MCP_LOG"

// Environment variable that enables debug output when set to a non-empty value.
const envDebug = "FOLIO_MCP_DEBUG"

var (
	mu            sync.Mutex
	std           *log.Logger
	logFile       *os.File
	isInitialized bool
	debug         = os.Getenv(envDebug) != ""
)

// InitFromEnv initializes the logger using FOLIO_MCP_LOG or a default path.
func InitFromEnv() error {
	path := os.Getenv(envLogPath)
	if path == "" {
		// Default to the directory where the executable is located
		if exePath, err := os.Executable(); err == nil {
			path = filepath.Join(filepath.Dir(exePath), "folio-mcp.log")
		} else {
			path = "./folio-mcp.log"
		}
	}
	return Init(path)
}

// Init initializes the logger to write to the provided file path.
// It creates parent directories if needed and opens the file in append mode.
// Stdout is reserved for the MCP stdio transport, so logs never go there.
func Init(path string) error {
	mu.Lock()
	defer mu.Unlock()
	if isInitialized {
		return nil
	}
	if err := ensureParentDir(path); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	logFile = f
	std = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds)
	isInitialized = true
	return nil
}

// SetOutput redirects logging to w. Tests use it with io.Discard.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	std = log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds)
	isInitialized = true
}

// SetDebug toggles Debugf output.
func SetDebug(enabled bool) {
	mu.Lock()
	debug = enabled
	mu.Unlock()
}

// Close closes the underlying log file, if open.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		err := logFile.Close()
		logFile = nil
		std = nil
		isInitialized = false
		return err
	}
	return nil
}

// Debugf logs verbose diagnostics when debug output is enabled.
func Debugf(format string, args ...any) {
	mu.Lock()
	on := debug
	mu.Unlock()
	if on {
		write("DEBUG", format, args...)
	}
}

// Infof logs informational messages.
func Infof(format string, args ...any) { write("INFO", format, args...) }

// Warnf logs warnings.
func Warnf(format string, args ...any) { write("WARN", format, args...) }

// Errorf logs errors.
func Errorf(format string, args ...any) { write("ERROR", format, args...) }

func write(level string, format string, args ...any) {
	mu.Lock()
	l := std
	mu.Unlock()
	if l == nil {
		// Fallback: initialize with default if not already.
		_ = InitFromEnv()
		mu.Lock()
		l = std
		mu.Unlock()
	}
	if l != nil {
		l.Printf("[%s] %s", level, fmt.Sprintf(format, args...))
	}
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
