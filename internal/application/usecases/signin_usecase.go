package usecases

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"goal-tracker/internal/action"
	"goal-tracker/internal/auth"
	domainerrors "goal-tracker/internal/domain/errors"
	"goal-tracker/internal/logger"
	"goal-tracker/internal/metrics"
	"goal-tracker/internal/presentation/http/validation"
)

// LandingPath is where a completed sign-in lands without a callback.
const LandingPath = "/goals"

// Limiter spends one unit of a per-key budget.
type Limiter interface {
	Allow(key string) bool
}

// SignInUseCase drives the magic-link flow.
type SignInUseCase struct {
	links   *auth.MagicLinks
	limiter Limiter
	log     *zap.Logger
	metrics *metrics.Collector
	obs     action.Observer
}

func NewSignInUseCase(links *auth.MagicLinks, perEmail Limiter, log *zap.Logger, m *metrics.Collector, obs action.Observer) *SignInUseCase {
	if log == nil {
		log = zap.NewNop()
	}
	return &SignInUseCase{links: links, limiter: perEmail, log: log, metrics: m, obs: obs}
}

type SignInInput struct {
	Email       string `json:"email" validate:"required,max=254,email"`
	CallbackURL string `json:"callbackUrl"`
}

type SignInRequested struct {
	Email string `json:"email"`
}

// CallbackInput is the query of a clicked magic link.
type CallbackInput struct {
	Email       string `json:"email" validate:"required,email"`
	Token       string `json:"token" validate:"required,hexadecimal,len=64"`
	CallbackURL string `json:"callbackUrl"`
}

// SignInCompleted tells the caller whom to sign in and where to go next.
// Pending is set when the user still owes a TOTP code.
type SignInCompleted struct {
	UserID   string `json:"userId"`
	Redirect string `json:"redirect"`
	Pending  bool   `json:"pending"`
}

// RequestSignIn mails a magic link to the given address.
func (uc *SignInUseCase) RequestSignIn(ctx context.Context, in SignInInput) action.Result[SignInRequested] {
	return action.Run(ctx, uc.obs, action.Stages[SignInInput, SignInRequested]{
		Name: "auth.signin",
		Sanitize: func(in SignInInput) SignInInput {
			in.Email = validation.SanitizeEmail(in.Email)
			in.CallbackURL = validation.SafeRedirectPath(in.CallbackURL, LandingPath)
			return in
		},
		Validate:       func(in SignInInput) []action.FieldError { return shape.Struct(in) },
		InvalidMessage: "Invalid email address",
		Authorize: func(ctx context.Context, in SignInInput) *action.Error {
			if uc.limiter != nil && !uc.limiter.Allow(in.Email) {
				uc.count("rate_limited")
				return action.Invalid("Too many sign-in attempts",
					action.FieldError{Field: "email", Message: "Too many sign-in attempts. Try again in a minute."})
			}
			return nil
		},
		DatabaseMessage: "Failed to start sign-in",
		Execute: func(ctx context.Context, in SignInInput) (SignInRequested, error) {
			l := logger.FromContext(ctx, uc.log)
			if err := uc.links.Send(ctx, in.Email, in.CallbackURL); err != nil {
				uc.count("mail_failed")
				l.Error("sending magic link failed", logger.Event(logger.EventAuthError), zap.Error(err))
				return SignInRequested{}, action.Unknown("Failed to send the sign-in email")
			}
			uc.count("sent")
			l.Info("magic link sent", logger.Event(logger.EventMagicLinkSent), zap.String("email", in.Email))
			return SignInRequested{Email: in.Email}, nil
		},
	}, in)
}

// CompleteSignIn redeems a magic link.
func (uc *SignInUseCase) CompleteSignIn(ctx context.Context, in CallbackInput) action.Result[SignInCompleted] {
	return action.Run(ctx, uc.obs, action.Stages[CallbackInput, SignInCompleted]{
		Name: "auth.callback",
		Sanitize: func(in CallbackInput) CallbackInput {
			in.Email = validation.SanitizeEmail(in.Email)
			in.Token = validation.SanitizeString(in.Token)
			in.CallbackURL = validation.SafeRedirectPath(in.CallbackURL, LandingPath)
			return in
		},
		Validate:        func(in CallbackInput) []action.FieldError { return shape.Struct(in) },
		InvalidMessage:  "Invalid sign-in link",
		DatabaseMessage: "Failed to complete sign-in",
		Execute: func(ctx context.Context, in CallbackInput) (SignInCompleted, error) {
			l := logger.FromContext(ctx, uc.log)
			u, err := uc.links.Redeem(ctx, in.Email, in.Token)
			if errors.Is(err, domainerrors.ErrTokenInvalid) {
				uc.count("rejected")
				l.Warn("magic link rejected", logger.Event(logger.EventAuthError), zap.String("email", in.Email))
				return SignInCompleted{}, action.Unauthorized("The sign-in link is invalid or has expired")
			}
			if err != nil {
				return SignInCompleted{}, err
			}
			uc.count("redeemed")
			l.Info("user signed in", logger.Event(logger.EventSignIn), logger.Actor(u.ID),
				zap.Bool("second_factor", u.TwoFactorEnabled))
			return SignInCompleted{UserID: u.ID, Redirect: in.CallbackURL, Pending: u.TwoFactorEnabled}, nil
		},
	}, in)
}

func (uc *SignInUseCase) count(result string) {
	if uc.metrics != nil {
		uc.metrics.MagicLinksTotal.WithLabelValues(result).Inc()
	}
}
