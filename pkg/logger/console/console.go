package console

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// ConsoleLogger implements logger.LoggerInstance on charmbracelet/log.
type ConsoleLogger struct {
	logger *log.Logger
}

// ConsoleLoggerParams configures a ConsoleLogger.
type ConsoleLoggerParams struct {
	// Debug forces the debug level and wins over Level.
	Debug bool
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string
	// Format is text, json or logfmt. Defaults to text.
	Format string
	// Prefix is printed before every message, e.g. the binary name.
	Prefix string
	// Output defaults to stderr.
	Output io.Writer
}

func parseLevel(params ConsoleLoggerParams) log.Level {
	if params.Debug {
		return log.DebugLevel
	}
	if params.Level == "" {
		return log.InfoLevel
	}
	level, err := log.ParseLevel(strings.ToLower(params.Level))
	if err != nil {
		return log.InfoLevel
	}
	return level
}

func parseFormatter(format string) log.Formatter {
	switch strings.ToLower(format) {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}

// NewConsoleLogger creates a console logger.
func NewConsoleLogger(params ConsoleLoggerParams) *ConsoleLogger {
	out := params.Output
	if out == nil {
		out = os.Stderr
	}
	logger := log.NewWithOptions(out, log.Options{
		ReportTimestamp: true,
		Level:           parseLevel(params),
		Formatter:       parseFormatter(params.Format),
		Prefix:          params.Prefix,
	})
	return &ConsoleLogger{logger: logger}
}

func (c *ConsoleLogger) Log(message string, keyvals ...any) {
	c.logger.Print(message, keyvals...)
}

func (c *ConsoleLogger) Info(message string, keyvals ...any) {
	c.logger.Info(message, keyvals...)
}

func (c *ConsoleLogger) Warn(message string, keyvals ...any) {
	c.logger.Warn(message, keyvals...)
}

func (c *ConsoleLogger) Error(message string, keyvals ...any) {
	c.logger.Error(message, keyvals...)
}

func (c *ConsoleLogger) Debug(message string, keyvals ...any) {
	c.logger.Debug(message, keyvals...)
}

// Fatal logs at FATAL level and exits with status 1.
func (c *ConsoleLogger) Fatal(message string, keyvals ...any) {
	c.logger.Fatal(message, keyvals...)
}
