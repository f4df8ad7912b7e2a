package auth

import (
	ab "github.com/aarondl/authboss/v3"
	"go.uber.org/zap"
)

// zapLogger adapts zap to ab.Logger.
type zapLogger struct {
	l *zap.Logger
}

func NewLogger(l *zap.Logger) ab.Logger {
	return zapLogger{l: l.Named("authboss").WithOptions(zap.AddCallerSkip(1))}
}

func (z zapLogger) Info(s string)  { z.l.Info(s) }
func (z zapLogger) Error(s string) { z.l.Error(s) }
