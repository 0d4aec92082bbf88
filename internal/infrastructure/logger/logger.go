package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Config holds logger configuration
type Config struct {
	Level   string // debug, info, warn, error
	Format  string // json, console
	Output  string // stdout, stderr, or file path
	Service string // stamped on every entry when set
	Env     string
}

// DefaultConfig returns a console configuration for local development
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "console",
		Output: "stdout",
	}
}

// New creates a zap logger. Production environments always log JSON.
func New(cfg Config) (*zap.Logger, error) {
	if cfg.Env == "production" {
		cfg.Format = "json"
	}
	writer, err := createWriter(cfg.Output)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(createEncoder(cfg.Format), writer, ParseLevel(cfg.Level))
	logger := zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)

	var fields []zap.Field
	if cfg.Service != "" {
		fields = append(fields, zap.String("service", cfg.Service))
	}
	if cfg.Env != "" {
		fields = append(fields, zap.String("env", cfg.Env))
	}
	return logger.With(fields...), nil
}

// ParseLevel converts a string level to zapcore.Level; unknown levels map to info
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
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

func createEncoder(format string) zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout(defaultTimeFormat),
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	if format == "console" {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(encoderConfig)
	}
	return zapcore.NewJSONEncoder(encoderConfig)
}

func createWriter(output string) (zapcore.WriteSyncer, error) {
	switch strings.ToLower(output) {
	case "", "stdout":
		return zapcore.AddSync(os.Stdout), nil
	case "stderr":
		return zapcore.AddSync(os.Stderr), nil
	}
	file, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", output, err)
	}
	return zapcore.AddSync(file), nil
}
