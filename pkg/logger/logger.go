package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"

	"concierge/pkg/config"
)

const (
	defaultFormat = "text"
	defaultLevel  = "info"
)

const (
	envLogFormat    = "CONCIERGE_LOG_FORMAT"
	envLogLevel     = "CONCIERGE_LOG_LEVEL"
	envLogAddSource = "CONCIERGE_LOG_ADD_SOURCE"
)

var formatters = map[string]charmLog.Formatter{
	"text":   charmLog.TextFormatter,
	"logfmt": charmLog.LogfmtFormatter,
	"json":   charmLog.JSONFormatter,
}

// New builds the process logger. All formats are rendered by charm log so
// text output stays human friendly while json/logfmt stay machine readable.
func New(cfg config.LoggingConfig) (*slog.Logger, error) {
	return newWithWriter(cfg, os.Stderr)
}

func newWithWriter(cfg config.LoggingConfig, writer io.Writer) (*slog.Logger, error) {
	format := resolve(cfg.Format, envLogFormat, defaultFormat)
	formatter, ok := formatters[format]
	if !ok {
		return nil, fmt.Errorf("unsupported log format %q", format)
	}

	level, err := parseLevel(resolve(cfg.Level, envLogLevel, defaultLevel))
	if err != nil {
		return nil, err
	}

	addSource := cfg.AddSource
	if env := strings.TrimSpace(os.Getenv(envLogAddSource)); env != "" {
		addSource = parseBool(env)
	}

	handler := charmLog.NewWithOptions(writer, charmLog.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		ReportCaller:    addSource,
		Formatter:       formatter,
	})

	return slog.New(handler), nil
}

// resolve picks the env value, then the configured value, then the fallback.
func resolve(configured string, envName string, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(envName)); value != "" {
		return strings.ToLower(value)
	}
	if value := strings.TrimSpace(configured); value != "" {
		return strings.ToLower(value)
	}

	return fallback
}

func parseLevel(levelText string) (charmLog.Level, error) {
	switch levelText {
	case "debug":
		return charmLog.DebugLevel, nil
	case "info":
		return charmLog.InfoLevel, nil
	case "warn", "warning":
		return charmLog.WarnLevel, nil
	case "error":
		return charmLog.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("unsupported log level %q", levelText)
	}
}

func parseBool(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Preview returns a bounded, single-line rendition of user text for logs.
func Preview(text string, limit int) string {
	flat := strings.Join(strings.Fields(text), " ")
	runes := []rune(flat)
	if limit <= 0 || len(runes) <= limit {
		return flat
	}

	return string(runes[:limit]) + "..."
}
