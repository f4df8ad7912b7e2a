package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_IndependentRegistries(t *testing.T) {
	a := NewCollector()
	b := NewCollector()

	a.ActionsTotal.WithLabelValues("goals.create", "ok").Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.ActionsTotal.WithLabelValues("goals.create", "ok")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ActionsTotal.WithLabelValues("goals.create", "ok")))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	c.MagicLinksTotal.WithLabelValues("sent").Inc()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `goal_tracker_auth_magic_links_total{result="sent"} 1`)
}
