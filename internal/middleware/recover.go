package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"goal-tracker/internal/action"
	"goal-tracker/internal/logger"
	"goal-tracker/internal/presentation/http/respond"
)

// Recover turns a handler panic into an UNKNOWN_ERROR envelope.
func Recover(base *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.FromContext(r.Context(), base).Error("panic recovered",
					logger.Event(logger.EventError),
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
				)
				respond.Error(w, action.Unknown("An unexpected error occurred"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
