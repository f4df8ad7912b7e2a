package middleware

import (
	"net/http"
	"net/url"

	"goal-tracker/internal/auth"
	"goal-tracker/internal/authz"
	"goal-tracker/internal/metrics"
)

const (
	SignInPath    = "/auth/signin"
	TwoFactorPath = "/auth/2fa"
	LandingPath   = "/goals"
)

// SessionGate admits a request only when the route policy allows the
// caller's kind of session. Refused requests are redirected with 303 and
// never reach next. Admitted sessions are attached to the context.
func SessionGate(policy *authz.RoutePolicy, m *metrics.Collector) func(http.Handler) http.Handler {
	redirect := func(w http.ResponseWriter, r *http.Request, target, label string) {
		if m != nil {
			m.GateRedirects.WithLabelValues(label).Inc()
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path, method := r.URL.Path, r.Method

			sess, signedIn := auth.ReadSession(r)
			sub := authz.SubjectAnonymous
			switch {
			case signedIn && sess.Pending:
				sub = authz.SubjectPending
			case signedIn:
				sub = authz.SubjectUser
			}

			if sub == authz.SubjectUser && policy.GuestOnly(path, method) {
				redirect(w, r, LandingPath, "landing")
				return
			}

			if !policy.Allowed(sub, path, method) {
				if sub == authz.SubjectPending {
					redirect(w, r, TwoFactorPath, "two_factor")
					return
				}
				redirect(w, r, SignInPath+"?callbackUrl="+url.QueryEscape(callbackFor(r)), "signin")
				return
			}

			ctx := r.Context()
			if signedIn {
				ctx = auth.WithSession(ctx, sess)
				SetActor(ctx, sess.UserID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// callbackFor is where the user returns after signing in.
func callbackFor(r *http.Request) string {
	if r.Method == http.MethodGet {
		return r.URL.RequestURI()
	}
	return r.URL.Path
}
