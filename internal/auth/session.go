package auth

import (
	"context"
	"net/http"

	ab "github.com/aarondl/authboss/v3"
)

// pendingKey marks a session that still owes a TOTP code.
const pendingKey = "two_factor_pending"

// Session is the identity carried by the session cookie.
type Session struct {
	UserID  string
	Pending bool
}

// ReadSession reads the session loaded by authboss's client-state middleware.
func ReadSession(r *http.Request) (Session, bool) {
	uid, ok := ab.GetSession(r, ab.SessionKey)
	if !ok || uid == "" {
		return Session{}, false
	}
	pending, _ := ab.GetSession(r, pendingKey)
	return Session{UserID: uid, Pending: pending == "true"}, true
}

// SignIn stores userID in the session. pending holds the session at the
// second-factor step until CompleteSecondFactor is called.
func SignIn(w http.ResponseWriter, userID string, pending bool) {
	ab.PutSession(w, ab.SessionKey, userID)
	if pending {
		ab.PutSession(w, pendingKey, "true")
	} else {
		ab.DelSession(w, pendingKey)
	}
}

func CompleteSecondFactor(w http.ResponseWriter) {
	ab.DelSession(w, pendingKey)
}

// SignOut clears every session key.
func SignOut(w http.ResponseWriter) {
	ab.DelAllSession(w, nil)
}

type sessionCtxKey struct{}

// WithSession attaches s to ctx for the handlers and actions downstream of
// the session gate.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, s)
}

// SessionFromContext returns the session attached by WithSession.
func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionCtxKey{}).(Session)
	return s, ok
}

// UserID returns the caller's id for fully signed-in sessions only.
func UserID(ctx context.Context) (string, bool) {
	s, ok := SessionFromContext(ctx)
	if !ok || s.Pending || s.UserID == "" {
		return "", false
	}
	return s.UserID, true
}
