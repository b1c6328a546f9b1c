package cli

import "go.uber.org/zap"

// launchLogger wraps zap for verbose debug output. Disabled it is a no-op,
// so call sites never guard their logging.
type launchLogger struct {
	sugared *zap.SugaredLogger
}

func newLaunchLogger(enabled bool) *launchLogger {
	if !enabled {
		return &launchLogger{}
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	cfg.Encoding = "console"
	logger, _ := cfg.Build()
	return &launchLogger{sugared: logger.Sugar()}
}

func (l *launchLogger) Debug(format string, args ...interface{}) {
	if l.sugared == nil {
		return
	}
	l.sugared.Debugf(format, args...)
}

// Sugared returns the underlying logger, or a nop logger when disabled.
func (l *launchLogger) Sugared() *zap.SugaredLogger {
	if l.sugared == nil {
		return zap.NewNop().Sugar()
	}
	return l.sugared
}
