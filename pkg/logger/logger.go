package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process wide logger. It is a no-op until Init runs, so tests
// and tools can log without setup.
var Log = zap.NewNop()

// Init replaces Log. Development mode writes colored console lines,
// otherwise JSON. level overrides the mode's default (debug in
// development, info in production) when it parses, e.g. "warn".
func Init(isDevelopment bool, level string) error {
	var cfg zap.Config
	if isDevelopment {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "time"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return err
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	l, err := cfg.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zap.ErrorLevel),
	)
	if err != nil {
		return err
	}

	Log = l
	return nil
}

// Named returns a child of Log tagged with a component name
func Named(component string) *zap.Logger {
	return Log.Named(component)
}

// Sync flushes buffered entries; call before exit
func Sync() {
	_ = Log.Sync()
}
