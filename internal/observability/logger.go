// Package observability owns the process-wide CLI logger.
//
// Logs always go to stderr; stdout carries rendered output and reports.
package observability

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the logger used by command handlers. It discards until
// InitCLILogger runs.
var CLILogger = zap.NewNop()

// NewCLILogger builds a stderr logger. format is "console" or "json".
func NewCLILogger(serviceName, level, format string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var encoder zapcore.Encoder
	switch format {
	case "", "console":
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.TimeKey = ""
		encCfg.CallerKey = ""
		encoder = zapcore.NewConsoleEncoder(encCfg)
	case "json":
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encCfg)
	default:
		return nil, fmt.Errorf("invalid log format %q (expected console or json)", format)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), zap.NewAtomicLevelAt(lvl))
	logger := zap.New(core)
	if format == "json" {
		logger = logger.With(zap.String("service", serviceName))
	}
	return logger, nil
}

// InitCLILogger replaces CLILogger. On error CLILogger is left unchanged.
func InitCLILogger(serviceName, level, format string) error {
	logger, err := NewCLILogger(serviceName, level, format)
	if err != nil {
		return err
	}
	CLILogger = logger
	return nil
}
