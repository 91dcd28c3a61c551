package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config configures the process logger.
type Config struct {
	// Level is one of debug, info, warn, error, dpanic, panic, fatal.
	Level string `mapstructure:"level"`
	// Format is json or console.
	Format string `mapstructure:"format"`
	// Output is stdout, stderr or file.
	Output      string `mapstructure:"output"`
	FilePath    string `mapstructure:"file_path"`
	Development bool   `mapstructure:"development"`
}

// NewZapLogger builds a zap logger from config. Every entry carries the
// service name so relay and server output can share a sink.
func NewZapLogger(config Config, service string) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if config.Level != "" {
		parsed, err := zapcore.ParseLevel(config.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", config.Level, err)
		}
		level.SetLevel(parsed)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "@timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.LevelKey = "log.level"
	encoderConfig.MessageKey = "message"
	encoderConfig.CallerKey = "caller"

	if config.Development {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var encoder zapcore.Encoder
	if config.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	var writeSyncer zapcore.WriteSyncer
	switch config.Output {
	case "stderr":
		writeSyncer = zapcore.AddSync(os.Stderr)
	case "file":
		if config.FilePath == "" {
			writeSyncer = zapcore.AddSync(os.Stdout)
			break
		}
		file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writeSyncer = zapcore.AddSync(file)
	default:
		writeSyncer = zapcore.AddSync(os.Stdout)
	}

	logger := zap.New(zapcore.NewCore(encoder, writeSyncer, level))
	if config.Development {
		logger = logger.WithOptions(zap.AddCaller())
	}
	logger = logger.WithOptions(zap.AddStacktrace(zapcore.ErrorLevel))

	if service != "" {
		logger = logger.With(zap.String("service", service))
	}
	return logger, nil
}

// DefaultZapLogger returns an info level JSON logger on stdout. It is used
// before configuration has been read.
func DefaultZapLogger() *zap.Logger {
	logger, err := NewZapLogger(Config{Level: "info", Format: "json", Output: "stdout"}, "")
	if err != nil {
		return zap.NewExample()
	}
	return logger
}
