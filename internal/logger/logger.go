package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var sugar *zap.SugaredLogger

// Init builds the process logger. Call once from main before anything logs.
func Init() {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}
	sugar = l.Sugar()
}

// InitDevelopment switches to the human-readable console encoder, used by
// tests and local runs.
func InitDevelopment() {
	l, err := zap.NewDevelopment(zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}
	sugar = l.Sugar()
}

func ensure() *zap.SugaredLogger {
	if sugar == nil {
		InitDevelopment()
	}
	return sugar
}

// Info logs a message with optional alternating key/value pairs.
func Info(msg string, keysAndValues ...interface{}) {
	ensure().Infow(msg, keysAndValues...)
}

func Infof(format string, v ...interface{}) {
	ensure().Infof(format, v...)
}

func Error(msg string, keysAndValues ...interface{}) {
	ensure().Errorw(msg, keysAndValues...)
}

func Errorf(format string, v ...interface{}) {
	ensure().Errorf(format, v...)
}

func Debug(msg string, keysAndValues ...interface{}) {
	ensure().Debugw(msg, keysAndValues...)
}

func Debugf(format string, v ...interface{}) {
	ensure().Debugf(format, v...)
}

func Warn(msg string, keysAndValues ...interface{}) {
	ensure().Warnw(msg, keysAndValues...)
}

func Fatal(msg string, keysAndValues ...interface{}) {
	ensure().Fatalw(msg, keysAndValues...)
}

func Fatalf(format string, v ...interface{}) {
	ensure().Fatalf(format, v...)
}

// Sync flushes buffered entries; call on shutdown.
func Sync() {
	if sugar != nil {
		_ = sugar.Sync()
	}
}
