package auth

import (
	"net/http"
	"strings"

	ab "github.com/aarondl/authboss/v3"
	"github.com/gorilla/securecookie"
)

// clientState implements ab.ClientState over a plain map.
type clientState map[string]string

func (s clientState) Get(key string) (string, bool) {
	v, ok := s[key]
	return v, ok
}

// CookieStateRW implements ab.ClientStateReadWriter with an encrypted,
// signed cookie.
type CookieStateRW struct {
	name       string
	persistent bool
	secure     bool
	sc         *securecookie.SecureCookie
}

// NewCookieStateRW builds a cookie store. Empty keys are replaced with
// random ones, so sessions do not survive a restart.
func NewCookieStateRW(name string, authKey, encKey []byte, persistent, secure bool) *CookieStateRW {
	if len(authKey) == 0 {
		authKey = securecookie.GenerateRandomKey(32)
	}
	if len(encKey) == 0 {
		encKey = securecookie.GenerateRandomKey(32)
	}
	sc := securecookie.New(authKey, encKey)
	sc.SetSerializer(securecookie.JSONEncoder{})
	if persistent {
		sc.MaxAge(persistentMaxAge)
	}
	return &CookieStateRW{name: name, persistent: persistent, secure: secure, sc: sc}
}

const persistentMaxAge = 60 * 60 * 24 * 30

// ReadState never fails: a missing, tampered or expired cookie reads as an
// empty state.
func (c *CookieStateRW) ReadState(r *http.Request) (ab.ClientState, error) {
	ck, err := r.Cookie(c.name)
	if err != nil || ck == nil {
		return clientState{}, nil
	}
	m := map[string]string{}
	if err := c.sc.Decode(c.name, ck.Value, &m); err != nil {
		return clientState{}, nil
	}
	return clientState(m), nil
}

func (c *CookieStateRW) WriteState(w http.ResponseWriter, state ab.ClientState, events []ab.ClientStateEvent) error {
	s := clientState{}
	if cur, ok := state.(clientState); ok {
		for k, v := range cur {
			s[k] = v
		}
	}
	for _, ev := range events {
		switch ev.Kind {
		case ab.ClientStateEventPut:
			s[ev.Key] = ev.Value
		case ab.ClientStateEventDel:
			delete(s, ev.Key)
		case ab.ClientStateEventDelAll:
			keep := map[string]bool{}
			for _, k := range strings.Split(ev.Key, ",") {
				if k != "" {
					keep[k] = true
				}
			}
			for k := range s {
				if !keep[k] {
					delete(s, k)
				}
			}
		}
	}

	ck := &http.Cookie{
		Name:     c.name,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if len(s) == 0 {
		ck.MaxAge = -1
		http.SetCookie(w, ck)
		return nil
	}

	encoded, err := c.sc.Encode(c.name, map[string]string(s))
	if err != nil {
		return err
	}
	ck.Value = encoded
	if c.persistent {
		ck.MaxAge = persistentMaxAge
	}
	http.SetCookie(w, ck)
	return nil
}

var _ ab.ClientStateReadWriter = (*CookieStateRW)(nil)
