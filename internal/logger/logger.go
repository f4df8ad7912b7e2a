package logger

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"goal-tracker/internal/infrastructure/config"
)

// EventCode tags log entries that are also persisted to access_logs.
type EventCode string

const (
	EventAPIRequest    EventCode = "API_REQUEST"
	EventAPIResponse   EventCode = "API_RESPONSE"
	EventMagicLinkSent EventCode = "MAGIC_LINK_SENT"
	EventSignIn        EventCode = "USER_SIGNIN"
	EventSignOut       EventCode = "USER_SIGNOUT"
	EventAction        EventCode = "ACTION"
	EventAuthError     EventCode = "AUTH_ERROR"
	EventSystemStart   EventCode = "SYSTEM_START"
	EventSystemStop    EventCode = "SYSTEM_STOP"
	EventError         EventCode = "ERROR"
)

// Field keys the access-log sink lifts into their own columns.
const (
	eventKey     = "event_code"
	actorKey     = "actor"
	requestIDKey = "request_id"
)

// Event marks an entry for persistence under code.
func Event(code EventCode) zap.Field { return zap.String(eventKey, string(code)) }

// Actor attributes an entry to a user id.
func Actor(userID string) zap.Field { return zap.String(actorKey, userID) }

// RequestID correlates an entry with one HTTP request.
func RequestID(id string) zap.Field { return zap.String(requestIDKey, id) }

// New builds the process logger. When db is non-nil, entries carrying an
// Event field are also written to the access_logs table.
func New(cfg config.LogConfig, db *sql.DB) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	if cfg.OutputPath != "" {
		zapCfg.OutputPaths = []string{cfg.OutputPath}
	}
	zapCfg.ErrorOutputPaths = []string{"stderr"}

	opts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if db != nil {
		opts = append(opts, zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, NewAccessLogCore(db, level))
		}))
	}

	l, err := zapCfg.Build(opts...)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return l, nil
}

type ctxKey struct{}

// WithContext stores a request-scoped logger.
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the request-scoped logger, or fallback when none was
// stored. A nil fallback yields a no-op logger.
func FromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	if fallback == nil {
		return zap.NewNop()
	}
	return fallback
}
