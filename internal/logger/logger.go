// Package logger builds the process-wide zap logger.
package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger that writes to stderr and, when path is set, to a log
// file that is truncated on every start. The returned func flushes and closes
// the file.
func New(path string, debug bool) (*zap.Logger, func(), error) {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewConsoleEncoder(encCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level),
	}

	var file *os.File
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.Create(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		file = f
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(f), level))
	}

	log := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	cleanup := func() {
		_ = log.Sync()
		if file != nil {
			_ = file.Close()
		}
	}
	return log, cleanup, nil
}
