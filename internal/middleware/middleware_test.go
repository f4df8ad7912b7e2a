package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	ab "github.com/aarondl/authboss/v3"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"goal-tracker/internal/action"
	"goal-tracker/internal/auth"
	"goal-tracker/internal/authz"
	"goal-tracker/internal/metrics"
	dbtest "goal-tracker/internal/testutil"
)

// fakeState stands in for the client state authboss loads from the cookie.
type fakeState map[string]string

func (f fakeState) Get(key string) (string, bool) {
	v, ok := f[key]
	return v, ok
}

func withState(r *http.Request, state fakeState) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), ab.CTXKeySessionState, ab.ClientState(state)))
}

func newGate(t *testing.T) (func(http.Handler) http.Handler, *metrics.Collector) {
	t.Helper()
	policy, err := authz.NewRoutePolicy(dbtest.NewDB(t).DB())
	require.NoError(t, err)
	m := metrics.NewCollector()
	return SessionGate(policy, m), m
}

func TestSessionGate_AnonymousRedirectsWithoutRunningHandler(t *testing.T) {
	gate, m := newGate(t)
	called := false
	h := gate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/goals/42?tab=tasks", nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/auth/signin?callbackUrl=%2Fgoals%2F42%3Ftab%3Dtasks", rec.Header().Get("Location"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GateRedirects.WithLabelValues("signin")))
}

func TestSessionGate_AnonymousPostUsesPathOnly(t *testing.T) {
	gate, _ := newGate(t)
	h := gate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { t.Fatal("handler reached") }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/goals?x=1", nil))
	assert.Equal(t, "/auth/signin?callbackUrl=%2Fapi%2Fgoals", rec.Header().Get("Location"))
}

func TestSessionGate_AllowListedForAnonymous(t *testing.T) {
	gate, _ := newGate(t)
	h := gate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := auth.SessionFromContext(r.Context())
		assert.False(t, ok)
		w.WriteHeader(http.StatusTeapot)
	}))

	for _, path := range []string{"/auth/signin", "/auth/callback/email", "/healthz"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusTeapot, rec.Code, path)
	}
}

func TestSessionGate_SignedInUser(t *testing.T) {
	gate, m := newGate(t)
	var gotUser string
	h := gate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = auth.UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	state := fakeState{ab.SessionKey: "user-1"}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, withState(httptest.NewRequest(http.MethodGet, "/api/goals", nil), state))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "user-1", gotUser)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, withState(httptest.NewRequest(http.MethodGet, "/auth/signin", nil), state))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/goals", rec.Header().Get("Location"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GateRedirects.WithLabelValues("landing")))
}

func TestSessionGate_PendingSecondFactor(t *testing.T) {
	gate, _ := newGate(t)
	h := gate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := auth.SessionFromContext(r.Context())
		assert.True(t, ok)
		assert.True(t, s.Pending)
		w.WriteHeader(http.StatusNoContent)
	}))
	state := fakeState{ab.SessionKey: "user-1", "two_factor_pending": "true"}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, withState(httptest.NewRequest(http.MethodGet, "/api/goals", nil), state))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/auth/2fa", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, withState(httptest.NewRequest(http.MethodPost, "/auth/2fa", nil), state))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := uuid.Parse(seen)
	require.NoError(t, err)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	inbound := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", inbound)
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, inbound, seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "not a uuid\r\n")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.NotEqual(t, "not a uuid\r\n", seen)
}

func TestLogging_RecordsResponseWithActor(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	h := RequestID(Logging(zap.New(core), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetActor(r.Context(), "user-7")
		w.WriteHeader(http.StatusNotFound)
	})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/goals/x", nil))

	entries := logs.FilterField(zap.String("event_code", "API_RESPONSE")).All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
	assert.Equal(t, "user-7", fields["actor"])
	assert.Equal(t, int64(404), fields["status_code"])
	assert.NotEmpty(t, fields["request_id"])
}

func TestLogging_QuietPathsAreNotPersisted(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	h := Logging(zap.New(core), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Empty(t, logs.FilterFieldKey("event_code").All())
	assert.NotEmpty(t, logs.All())
}

func TestClientIP_UntrustedPeerIgnoresHeaders(t *testing.T) {
	var proxies TrustedProxies
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "198.51.100.7:5555"
	r.Header.Set("X-Forwarded-For", "203.0.113.9")
	r.Header.Set("X-Real-IP", "203.0.113.10")
	assert.Equal(t, "198.51.100.7", proxies.ClientIP(r))
}

func TestClientIP_TrustedProxy(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8", "192.0.2.1"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		remote string
		xff    []string
		realIP string
		want   string
	}{
		{"no headers", "10.0.0.1:80", nil, "", "10.0.0.1"},
		{"single hop", "10.0.0.1:80", []string{"203.0.113.9"}, "", "203.0.113.9"},
		{"right-most untrusted hop wins", "10.0.0.1:80", []string{"1.2.3.4, 203.0.113.9, 10.0.0.5"}, "", "203.0.113.9"},
		{"multiple headers joined", "192.0.2.1:80", []string{"1.2.3.4", "203.0.113.9"}, "", "203.0.113.9"},
		{"malformed hop stops the walk", "10.0.0.1:80", []string{"1.2.3.4, garbage"}, "", "10.0.0.1"},
		{"all hops trusted", "10.0.0.1:80", []string{"10.0.0.7, 10.0.0.8"}, "", "10.0.0.7"},
		{"x-real-ip from proxy", "10.0.0.1:80", nil, "203.0.113.10", "203.0.113.10"},
		{"ipv4-mapped peer", "[::ffff:10.0.0.1]:80", []string{"203.0.113.9"}, "", "203.0.113.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for _, v := range tt.xff {
				r.Header.Add("X-Forwarded-For", v)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, proxies.ClientIP(r))
		})
	}
}

func TestParseTrustedProxies_RejectsGarbage(t *testing.T) {
	_, err := ParseTrustedProxies([]string{"10.0.0.0/33"})
	assert.Error(t, err)
	_, err = ParseTrustedProxies([]string{"proxy.internal"})
	assert.Error(t, err)

	p, err := ParseTrustedProxies([]string{" ", ""})
	require.NoError(t, err)
	assert.Empty(t, p)
}

func TestRecover_WritesUnknownErrorEnvelope(t *testing.T) {
	h := Recover(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, action.IsError(body))
	assert.Equal(t, "UNKNOWN_ERROR", body["code"])
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://app.example"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/goals", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/api/goals", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestKeyedLimiter(t *testing.T) {
	l := NewKeyedLimiter(1, 2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))

	now = now.Add(time.Minute)
	assert.True(t, l.Allow("a"))

	now = now.Add(time.Hour)
	l.Allow("c")
	assert.Equal(t, 1, l.Len())
}

func ipRule(proxies TrustedProxies) LimitRule {
	return LimitRule{Key: proxies.ClientIP, Field: "code", Message: "Too many verification attempts."}
}

func TestRateLimit_Returns429Envelope(t *testing.T) {
	h := RateLimit(NewKeyedLimiter(1, 1), ipRule(nil))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusSeeOther)
	}))
	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/2fa", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusSeeOther, send().Code)
	rec := send()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	r, err := action.Decode[any](rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, action.CodeValidationError, r.Code())
	assert.Equal(t, []action.FieldError{{Field: "code", Message: "Too many verification attempts."}}, r.Err().ValidationErrors)
}

func TestRateLimit_ForgedForwardedForSharesOneBucket(t *testing.T) {
	h := RateLimit(NewKeyedLimiter(1, 1), ipRule(nil))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	passed := 0
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/2fa", nil)
		req.RemoteAddr = "198.51.100.7:4444"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusOK {
			passed++
		}
	}
	assert.Equal(t, 1, passed)
}

func TestMetrics_LabelsByRouteTemplate(t *testing.T) {
	m := metrics.NewCollector()
	router := mux.NewRouter()
	router.Use(Metrics(m))
	router.HandleFunc("/api/goals/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods(http.MethodGet)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/goals/abc", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/goals/def", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/api/goals/{id}", "404")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.InFlightGauge))
}
