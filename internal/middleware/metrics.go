package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"goal-tracker/internal/metrics"
)

// Metrics records request counts and latency labelled by the matched mux
// route template, so ids do not explode label cardinality. It must be
// installed with router.Use.
func Metrics(m *metrics.Collector) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := "unmatched"
			if cur := mux.CurrentRoute(r); cur != nil {
				if tpl, err := cur.GetPathTemplate(); err == nil {
					route = tpl
				}
			}

			m.InFlightGauge.Inc()
			defer m.InFlightGauge.Dec()

			start := time.Now()
			wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapper, r)

			status := strconv.Itoa(wrapper.statusCode)
			m.RequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			m.RequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		})
	}
}
