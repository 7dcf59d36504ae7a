package keg

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger denotes a generic log interface that a logging service must provide in order
// to be used by a Monitor (a *zap.SugaredLogger or a *logrus.Logger fulfil it)
type Logger interface {
	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
}

// NullLogger denotes a null-op logger that ignores all messages
type NullLogger struct{}

func (l *NullLogger) Error(args ...interface{}) {}

func (l *NullLogger) Errorf(format string, args ...interface{}) {}

func (l *NullLogger) Warn(args ...interface{}) {}

func (l *NullLogger) Warnf(format string, args ...interface{}) {}

func (l *NullLogger) Info(args ...interface{}) {}

func (l *NullLogger) Infof(format string, args ...interface{}) {}

func (l *NullLogger) Debug(args ...interface{}) {}

func (l *NullLogger) Debugf(format string, args ...interface{}) {}

// Compile-time check that the default logger can be used as Logger
var _ Logger = (*zap.SugaredLogger)(nil)

// NewDefaultLogger instantiates a new default (zap based) logger for the given level
// ("debug", "info", "warn", "error"). Structured JSON output replaces the human
// readable console encoding if requested
func NewDefaultLogger(level string, jsonOutput bool) (*zap.SugaredLogger, error) {

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level `%s`: %w", level, err)
	}

	logCfg := zap.NewDevelopmentConfig()
	if jsonOutput {
		logCfg = zap.NewProductionConfig()
		logCfg.EncoderConfig.TimeKey = "time"
		logCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	logCfg.DisableStacktrace = true
	logCfg.DisableCaller = lvl > zap.DebugLevel
	logCfg.Level.SetLevel(lvl)
	zapLogger, err := logCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate logger: %w", err)
	}

	return zapLogger.Named("btkeg").Sugar(), nil
}
