// Package logging holds the process-wide logger of the driver.
package logging

import (
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	Logger      *zap.SugaredLogger
	AtomicLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
)

// lookupEnv prefers the HTAPBENCH_ variable and falls back to the bare name.
func lookupEnv(key string) (string, bool) {
	if value, ok := os.LookupEnv("HTAPBENCH_" + key); ok {
		return value, true
	}
	return os.LookupEnv(key)
}

func init() {
	if level, ok := lookupEnv("LOG_LEVEL"); ok {
		if err := SetLevel(level); err != nil {
			log.Printf("failed to parse log level, fallback to INFO: %v", err)
		}
	}
	encoding, ok := lookupEnv("LOG_FORMAT")
	if !ok {
		encoding = "console"
	}
	logger, err := New(encoding, "stderr")
	if err != nil {
		panic(fmt.Errorf("failed to initialize logger: %w", err))
	}
	Logger = logger.Sugar()
}

// New builds a logger writing to outputs with the shared level. encoding is
// "console" or "json".
func New(encoding string, outputs ...string) (*zap.Logger, error) {
	config := zap.Config{
		Level:    AtomicLevel,
		Sampling: &zap.SamplingConfig{Initial: 100, Thereafter: 100},
		Encoding: encoding,
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:     "M",
			LevelKey:       "L",
			TimeKey:        "T",
			NameKey:        "N",
			CallerKey:      zapcore.OmitKey,
			FunctionKey:    zapcore.OmitKey,
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
		},
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	}
	return config.Build()
}

// SetLevel changes the level of the process-wide logger, e.g. "debug" or "WARN".
func SetLevel(level string) error {
	parsed, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return err
	}
	AtomicLevel.SetLevel(parsed.Level())
	return nil
}
