package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"goal-tracker/internal/logger"
)

// quietPaths are logged at debug level and never persisted.
var quietPaths = map[string]bool{"/healthz": true, "/metrics": true}

type actorKey struct{}

// SetActor records the signed-in user for the response log line. It is a
// no-op outside Logging.
func SetActor(ctx context.Context, userID string) {
	if a, ok := ctx.Value(actorKey{}).(*string); ok {
		*a = userID
	}
}

// Logging writes one structured line per response and installs a
// request-scoped logger in the context. Client addresses are resolved
// through proxies.
func Logging(base *zap.Logger, proxies TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}

			reqLog := base.With(logger.RequestID(GetRequestID(r.Context())))
			var actor string
			ctx := context.WithValue(r.Context(), actorKey{}, &actor)
			ctx = logger.WithContext(ctx, reqLog)

			reqLog.Debug(fmt.Sprintf("API request: %s %s", r.Method, r.URL.Path),
				zap.String("user_agent", r.UserAgent()),
				zap.String("remote_addr", proxies.ClientIP(r)),
			)

			next.ServeHTTP(wrapper, r.WithContext(ctx))

			duration := time.Since(start)
			msg := fmt.Sprintf("API response: %s %s [%d] (%dms)", r.Method, r.URL.Path, wrapper.statusCode, duration.Milliseconds())
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status_code", wrapper.statusCode),
				zap.Int64("response_time", duration.Milliseconds()),
			}
			if quietPaths[r.URL.Path] {
				reqLog.Debug(msg, fields...)
				return
			}
			fields = append(fields, logger.Event(logger.EventAPIResponse))
			if actor != "" {
				fields = append(fields, logger.Actor(actor))
			}

			switch {
			case wrapper.statusCode >= 500:
				reqLog.Error(msg, fields...)
			case wrapper.statusCode >= 400:
				reqLog.Warn(msg, fields...)
			default:
				reqLog.Info(msg, fields...)
			}
		})
	}
}

// responseWrapper captures the status code.
type responseWrapper struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWrapper) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWrapper) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWrapper) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

// UnderlyingResponseWriter lets authboss find its client-state writer
// beneath this wrapper.
func (rw *responseWrapper) UnderlyingResponseWriter() http.ResponseWriter { return rw.ResponseWriter }
