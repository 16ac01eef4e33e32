// Package logging builds the zap loggers shared by the platform server and the CLI client.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	EncodingJSON    = "json"
	EncodingConsole = "console"
)

// Options selects the level, encoding and component name of a logger.
// OutputPaths defaults to stderr so stdout stays free for command output.
type Options struct {
	Level       string
	Encoding    string
	Service     string
	OutputPaths []string
}

// NewLogger returns a zap logger tagged with the service name.
func NewLogger(options Options) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(options.Level))

	switch encoding := strings.ToLower(strings.TrimSpace(options.Encoding)); encoding {
	case EncodingJSON, "":
	case EncodingConsole:
		cfg.Encoding = EncodingConsole
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	default:
		return nil, fmt.Errorf("logging: unsupported encoding %q", options.Encoding)
	}

	if len(options.OutputPaths) > 0 {
		cfg.OutputPaths = options.OutputPaths
	}
	if service := strings.TrimSpace(options.Service); service != "" {
		cfg.InitialFields = map[string]any{"service": service}
	}

	return cfg.Build()
}

// ParseLevel maps a configured level name to a zap level; unknown names log at info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
