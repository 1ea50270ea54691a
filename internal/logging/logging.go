// Package logging builds the process-wide structured logger.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns a JSON zap logger at the given minimum level
// ("debug", "info", "warn", "error").
func NewLogger(level string) (*zap.Logger, error) {
	atomicLevel := zap.NewAtomicLevel()
	if level == "" {
		atomicLevel.SetLevel(zapcore.InfoLevel)
	} else if err := atomicLevel.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return nil, err
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(os.Stdout),
		atomicLevel,
	)
	return zap.New(core), nil
}
