package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"

	ab "github.com/aarondl/authboss/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"goal-tracker/internal/action"
	"goal-tracker/internal/infrastructure/config"
	"goal-tracker/internal/infrastructure/di"
	"goal-tracker/internal/metrics"
	"goal-tracker/internal/testutil"
)

type inbox struct {
	mu   sync.Mutex
	mail []ab.Email
}

func (i *inbox) Send(_ context.Context, e ab.Email) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.mail = append(i.mail, e)
	return nil
}

var linkPattern = regexp.MustCompile(`https?://\S+`)

// lastLinkPath returns the path and query of the newest magic link.
func (i *inbox) lastLinkPath(t *testing.T) string {
	i.mu.Lock()
	defer i.mu.Unlock()
	require.NotEmpty(t, i.mail)
	u, err := url.Parse(linkPattern.FindString(i.mail[len(i.mail)-1].TextBody))
	require.NoError(t, err)
	return u.RequestURI()
}

type harness struct {
	srv    *httptest.Server
	client *http.Client
	inbox  *inbox
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.Default()
	db := testutil.NewDB(t)
	box := &inbox{}
	c, err := di.New(cfg, db, zap.NewNop(), metrics.NewCollector(), di.Options{Mailer: box})
	require.NoError(t, err)

	srv := httptest.NewServer(New(c).Handler())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &harness{srv: srv, client: client, inbox: box}
}

func (h *harness) do(t *testing.T, method, path string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, h.srv.URL+path, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := h.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (h *harness) signIn(t *testing.T, email string) {
	t.Helper()
	form := url.Values{"email": {email}, "callbackUrl": {"/goals"}}
	resp := h.do(t, http.MethodPost, "/auth/signin", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/auth/verify-request?email="+url.QueryEscape(email), resp.Header.Get("Location"))

	resp = h.do(t, http.MethodGet, h.inbox.lastLinkPath(t), nil, "")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/goals", resp.Header.Get("Location"))
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestServer_AnonymousRequestsAreRedirected(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodGet, "/api/goals", nil, "")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/auth/signin?callbackUrl=%2Fapi%2Fgoals", resp.Header.Get("Location"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp = h.do(t, http.MethodGet, "/auth/signin", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	resp = h.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decodeBody(t, resp)["status"])
}

func TestServer_SignInFlowAndGoalCRUD(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "ada@example.com")

	resp := h.do(t, http.MethodGet, "/auth/signin", nil, "")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/goals", resp.Header.Get("Location"))

	resp = h.do(t, http.MethodGet, "/goals", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = h.do(t, http.MethodPost, "/api/goals", strings.NewReader(`{"title":"<i>Learn</i> Go","targetDate":"2026-12-31"}`), "application/json")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody(t, resp)
	require.True(t, action.IsSuccess(created))
	goal := created["data"].(map[string]any)
	assert.Equal(t, "Learn Go", goal["title"])
	id := goal["id"].(string)

	resp = h.do(t, http.MethodPost, "/api/goals/"+id+"/subgoals", strings.NewReader(`{"title":"Basics"}`), "application/json")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "true", resp.Header.Get("Deprecation"))

	resp = h.do(t, http.MethodGet, "/api/goals/"+id, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	detail := decodeBody(t, resp)["data"].(map[string]any)
	assert.Len(t, detail["regions"], 1)

	resp = h.do(t, http.MethodPost, "/api/goals", strings.NewReader(`{"title":""}`), "application/json")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	invalid := decodeBody(t, resp)
	assert.True(t, action.IsError(invalid))
	assert.Equal(t, "VALIDATION_ERROR", invalid["code"])
	assert.Len(t, invalid["validationErrors"], 1)

	resp = h.do(t, http.MethodPost, "/api/goals", strings.NewReader(`{not json`), "application/json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = h.do(t, http.MethodDelete, "/api/goals/"+id, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = h.do(t, http.MethodGet, "/api/goals/"+id, nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Goal not found", decodeBody(t, resp)["error"])
}

func TestServer_OtherUsersGoalsLookMissing(t *testing.T) {
	owner := newHarness(t)
	owner.signIn(t, "ada@example.com")
	resp := owner.do(t, http.MethodPost, "/api/goals", strings.NewReader(`{"title":"Secret"}`), "application/json")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := decodeBody(t, resp)["data"].(map[string]any)["id"].(string)

	// Same server, fresh cookie jar.
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	other := &harness{srv: owner.srv, inbox: owner.inbox, client: &http.Client{
		Jar:           jar,
		CheckRedirect: owner.client.CheckRedirect,
	}}
	other.signIn(t, "eve@example.com")

	foreign := other.do(t, http.MethodGet, "/api/goals/"+id, nil, "")
	missing := other.do(t, http.MethodGet, "/api/goals/00000000-0000-0000-0000-000000000000", nil, "")
	assert.Equal(t, http.StatusNotFound, foreign.StatusCode)
	assert.Equal(t, decodeBody(t, missing), decodeBody(t, foreign))
}

func TestServer_LogoutEndsSession(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "ada@example.com")

	resp := h.do(t, http.MethodPost, "/auth/ab/logout", nil, "")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/auth/signed-out", resp.Header.Get("Location"))

	resp = h.do(t, http.MethodPost, "/auth/signed-out", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = h.do(t, http.MethodGet, "/api/goals", nil, "")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestServer_BadMagicLinkGoesToErrorPage(t *testing.T) {
	h := newHarness(t)
	resp := h.do(t, http.MethodGet, "/auth/callback/email?email=ada%40example.com&token="+strings.Repeat("0", 64), nil, "")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/auth/error?error=Verification", resp.Header.Get("Location"))
}

func TestServer_MetricsEndpoint(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodGet, "/healthz", nil, "")

	resp := h.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(b), `goal_tracker_http_requests_total{method="GET",route="/healthz",status="200"}`)
}
