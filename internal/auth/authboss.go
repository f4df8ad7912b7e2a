package auth

import (
	"errors"

	ab "github.com/aarondl/authboss/v3"
	"github.com/aarondl/authboss/v3/defaults"
	_ "github.com/aarondl/authboss/v3/logout"
	"go.uber.org/zap"
)

const (
	// MountPath is where the authboss router is mounted, with the prefix
	// stripped before it sees the request.
	MountPath = "/auth/ab"
	// SignedOutPath is where the logout module sends the browser.
	SignedOutPath = "/auth/signed-out"
)

// Options are the collaborators authboss needs. SessionState is required.
type Options struct {
	RootURL      string
	SessionState ab.ClientStateReadWriter
	CookieState  ab.ClientStateReadWriter
	Storer       ab.ServerStorer
	Mailer       ab.Mailer
	Logger       *zap.Logger
}

// NewAuthboss builds an authboss instance providing client state, the
// logout route and mail delivery. Sign-in itself is the magic-link flow.
func NewAuthboss(o Options) (*ab.Authboss, error) {
	if o.SessionState == nil {
		return nil, errors.New("authboss: session state is required")
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}

	a := ab.New()
	a.Config.Paths.Mount = ""
	a.Config.Paths.RootURL = o.RootURL
	a.Config.Paths.LogoutOK = SignedOutPath
	a.Config.Modules.LogoutMethod = "POST"

	a.Config.Storage.Server = o.Storer
	a.Config.Storage.SessionState = o.SessionState
	a.Config.Storage.CookieState = o.CookieState

	logger := NewLogger(o.Logger)
	renderer := defaults.JSONRenderer{}
	a.Config.Core.Router = defaults.NewRouter()
	a.Config.Core.ViewRenderer = renderer
	a.Config.Core.Responder = defaults.NewResponder(renderer)
	a.Config.Core.Redirector = defaults.NewRedirector(renderer, ab.FormValueRedirect)
	a.Config.Core.ErrorHandler = defaults.NewErrorHandler(logger)
	a.Config.Core.BodyReader = defaults.NewHTTPBodyReader(true, false)
	a.Config.Core.Logger = logger
	a.Config.Core.Hasher = ab.NewBCryptHasher(12)
	a.Config.Core.Mailer = o.Mailer

	if err := a.Init(); err != nil {
		return nil, err
	}
	return a, nil
}
