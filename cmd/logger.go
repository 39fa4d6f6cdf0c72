package cmd

import (
	"fmt"
	"strings"

	log "github.com/jensneuse/abstractlogger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func parseLogLevel(level string) (log.Level, zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return log.DebugLevel, zapcore.DebugLevel, nil
	case "", "info":
		return log.InfoLevel, zapcore.InfoLevel, nil
	case "warn":
		return log.WarnLevel, zapcore.WarnLevel, nil
	case "error":
		return log.ErrorLevel, zapcore.ErrorLevel, nil
	default:
		return 0, 0, fmt.Errorf("unknown log level %q", level)
	}
}

// newLogger builds a zap production logger behind the abstractlogger
// interface. The returned func flushes the logger.
func newLogger(level string) (log.Logger, func(), error) {
	abstractLevel, zapLevel, err := parseLogLevel(level)
	if err != nil {
		return nil, nil, err
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	logger, err := config.Build()
	if err != nil {
		return nil, nil, err
	}

	return log.NewZapLogger(logger, abstractLevel), func() {
		_ = logger.Sync() // nolint
	}, nil
}
