// Package logger is the process-wide log dispatcher. Backends are registered
// once with Init; until then every call is a no-op, which keeps library
// packages quiet in tests.
package logger

import (
	"fmt"
	"os"
	"sync"
)

// LoggerInstance is a logging backend.
type LoggerInstance interface {
	Log(message string, keyvals ...any)
	Debug(message string, keyvals ...any)
	Info(message string, keyvals ...any)
	Warn(message string, keyvals ...any)
	Error(message string, keyvals ...any)
	Fatal(message string, keyvals ...any)
}

// Logger fans every call out to its backends.
type Logger struct {
	instances []LoggerInstance
}

var (
	mu        sync.RWMutex
	singleton *Logger
)

func getSingleton() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return singleton
}

// Init replaces the registered backends. Calling it without arguments
// disables logging.
func Init(instances ...LoggerInstance) {
	mu.Lock()
	defer mu.Unlock()
	if len(instances) == 0 {
		singleton = nil
		return
	}
	singleton = &Logger{instances: instances}
}

func dispatch(fn func(LoggerInstance)) {
	logger := getSingleton()
	if logger == nil {
		return
	}
	for _, instance := range logger.instances {
		fn(instance)
	}
}

// Log writes a message without a level.
func Log(message string, keyvals ...any) {
	dispatch(func(l LoggerInstance) { l.Log(message, keyvals...) })
}

func Debug(message string, keyvals ...any) {
	dispatch(func(l LoggerInstance) { l.Debug(message, keyvals...) })
}

func Info(message string, keyvals ...any) {
	dispatch(func(l LoggerInstance) { l.Info(message, keyvals...) })
}

func Warn(message string, keyvals ...any) {
	dispatch(func(l LoggerInstance) { l.Warn(message, keyvals...) })
}

func Error(message string, keyvals ...any) {
	dispatch(func(l LoggerInstance) { l.Error(message, keyvals...) })
}

// Fatal logs and exits the process. Backends usually exit themselves; the
// process still exits when none is registered.
func Fatal(message string, keyvals ...any) {
	dispatch(func(l LoggerInstance) { l.Fatal(message, keyvals...) })
	if getSingleton() == nil {
		fmt.Fprintln(os.Stderr, append([]any{"FATAL", message}, keyvals...)...)
	}
	os.Exit(1)
}
