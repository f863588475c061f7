package utils

import "go.uber.org/zap"

// AppLogger adapts a zap logger to the keys-and-values logging interface the
// application layer depends on.
type AppLogger struct {
	sugar *zap.SugaredLogger
}

// NewAppLogger creates a new AppLogger
func NewAppLogger(logger *zap.Logger) *AppLogger {
	return &AppLogger{sugar: logger.Sugar()}
}

// Info logs at info level with alternating key/value pairs
func (l *AppLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

// Error logs at error level with alternating key/value pairs
func (l *AppLogger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}
