package usecases

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"goal-tracker/internal/action"
	"goal-tracker/internal/auth"
	"goal-tracker/internal/domain/entities"
	"goal-tracker/internal/domain/repositories"
	"goal-tracker/internal/presentation/http/validation"
)

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 200
)

// ProfileUseCase manages the caller's own account and second factor.
type ProfileUseCase struct {
	users      repositories.UserRepository
	accessLogs repositories.AccessLogRepository
	issuer     string
	attempts   Limiter
	obs        action.Observer
}

// NewProfileUseCase builds the profile actions. attempts caps second-factor
// guesses per user; nil leaves them uncapped.
func NewProfileUseCase(users repositories.UserRepository, accessLogs repositories.AccessLogRepository, totpIssuer string, attempts Limiter, obs action.Observer) *ProfileUseCase {
	return &ProfileUseCase{users: users, accessLogs: accessLogs, issuer: totpIssuer, attempts: attempts, obs: obs}
}

// UpdateProfileInput is a partial update. An empty name clears it.
type UpdateProfileInput struct {
	Name  *string `json:"name" validate:"omitempty,max=100"`
	Theme *string `json:"theme" validate:"omitempty,oneof=light dark system"`

	clearName bool
}

// TOTPCodeInput carries a code from an authenticator app.
type TOTPCodeInput struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// SecondFactorInput accepts an authenticator code or a recovery code.
type SecondFactorInput struct {
	Code string `json:"code" validate:"required,max=32"`
}

type ActivityInput struct {
	Query url.Values
}

type TwoFactorSetup struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauthUrl"`
}

// TwoFactorEnabled carries recovery codes. They are shown once and only
// their hashes are kept.
type TwoFactorEnabled struct {
	RecoveryCodes []string `json:"recoveryCodes"`
}

func (uc *ProfileUseCase) Get(ctx context.Context) action.Result[entities.User] {
	return action.Run(ctx, uc.obs, action.Stages[struct{}, entities.User]{
		Name:            "profile.get",
		Authorize:       signedIn[struct{}],
		DatabaseMessage: "Failed to load profile",
		Execute: func(ctx context.Context, _ struct{}) (entities.User, error) {
			u, err := uc.users.GetByID(ctx, callerID(ctx))
			if err != nil {
				return entities.User{}, vanished(err, "User")
			}
			return *u, nil
		},
	}, struct{}{})
}

func (uc *ProfileUseCase) Update(ctx context.Context, in UpdateProfileInput) action.Result[entities.User] {
	return action.Run(ctx, uc.obs, action.Stages[UpdateProfileInput, entities.User]{
		Name: "profile.update",
		Sanitize: func(in UpdateProfileInput) UpdateProfileInput {
			in.Name, in.clearName = clearable(validation.SanitizePatchString(in.Name))
			if t := validation.SanitizePatchString(in.Theme); t != nil {
				lower := strings.ToLower(*t)
				in.Theme = &lower
			}
			return in
		},
		Validate:        func(in UpdateProfileInput) []action.FieldError { return shape.Struct(in) },
		InvalidMessage:  "Invalid profile",
		Authorize:       signedIn[UpdateProfileInput],
		DatabaseMessage: "Failed to update profile",
		Execute: func(ctx context.Context, in UpdateProfileInput) (entities.User, error) {
			return uc.mutate(ctx, func(u *entities.User) *action.Error {
				if in.Name != nil || in.clearName {
					u.Name = in.Name
				}
				if in.Theme != nil {
					u.Theme = entities.Theme(*in.Theme)
				}
				return nil
			})
		},
	}, in)
}

// BeginTwoFactor stores a fresh, not yet active TOTP secret.
func (uc *ProfileUseCase) BeginTwoFactor(ctx context.Context) action.Result[TwoFactorSetup] {
	return action.Run(ctx, uc.obs, action.Stages[struct{}, TwoFactorSetup]{
		Name:            "profile.2fa.setup",
		Authorize:       signedIn[struct{}],
		DatabaseMessage: "Failed to start two-factor setup",
		Execute: func(ctx context.Context, _ struct{}) (TwoFactorSetup, error) {
			var setup TwoFactorSetup
			_, err := uc.mutate(ctx, func(u *entities.User) *action.Error {
				if u.TwoFactorEnabled {
					return action.Invalid("Two-factor authentication is already enabled",
						action.FieldError{Field: "code", Message: "Disable two-factor authentication first"})
				}
				secret, link, err := auth.NewTOTPKey(uc.issuer, u.Email)
				if err != nil {
					return action.Unknown("Failed to generate a two-factor secret")
				}
				u.TOTPSecret = secret
				setup = TwoFactorSetup{Secret: secret, OTPAuthURL: link}
				return nil
			})
			return setup, err
		},
	}, struct{}{})
}

// EnableTwoFactor activates the pending secret once code proves the
// authenticator is set up, and issues recovery codes.
func (uc *ProfileUseCase) EnableTwoFactor(ctx context.Context, in TOTPCodeInput) action.Result[TwoFactorEnabled] {
	return action.Run(ctx, uc.obs, action.Stages[TOTPCodeInput, TwoFactorEnabled]{
		Name:            "profile.2fa.enable",
		Sanitize:        func(in TOTPCodeInput) TOTPCodeInput { in.Code = cleanCode(in.Code); return in },
		Validate:        func(in TOTPCodeInput) []action.FieldError { return shape.Struct(in) },
		InvalidMessage:  "Invalid verification code",
		Authorize:       signedIn[TOTPCodeInput],
		DatabaseMessage: "Failed to enable two-factor authentication",
		Execute: func(ctx context.Context, in TOTPCodeInput) (TwoFactorEnabled, error) {
			var out TwoFactorEnabled
			_, err := uc.mutate(ctx, func(u *entities.User) *action.Error {
				if u.TwoFactorEnabled {
					return action.Invalid("Two-factor authentication is already enabled",
						action.FieldError{Field: "code", Message: "Two-factor authentication is already enabled"})
				}
				if u.TOTPSecret == "" {
					return action.Invalid("Two-factor setup has not been started",
						action.FieldError{Field: "code", Message: "Start two-factor setup first"})
				}
				if !auth.ValidateTOTP(in.Code, u.TOTPSecret) {
					return wrongCode()
				}
				plain, hashed, err := auth.NewRecoveryCodes()
				if err != nil {
					return action.Unknown("Failed to generate recovery codes")
				}
				u.TwoFactorEnabled = true
				u.RecoveryCodes = hashed
				out.RecoveryCodes = plain
				return nil
			})
			return out, err
		},
	}, in)
}

// DisableTwoFactor turns the second factor off after one last proof.
func (uc *ProfileUseCase) DisableTwoFactor(ctx context.Context, in SecondFactorInput) action.Result[entities.User] {
	return action.Run(ctx, uc.obs, action.Stages[SecondFactorInput, entities.User]{
		Name:            "profile.2fa.disable",
		Sanitize:        func(in SecondFactorInput) SecondFactorInput { in.Code = cleanCode(in.Code); return in },
		Validate:        func(in SecondFactorInput) []action.FieldError { return shape.Struct(in) },
		InvalidMessage:  "Invalid verification code",
		Authorize:       signedIn[SecondFactorInput],
		DatabaseMessage: "Failed to disable two-factor authentication",
		Execute: func(ctx context.Context, in SecondFactorInput) (entities.User, error) {
			return uc.mutate(ctx, func(u *entities.User) *action.Error {
				if !u.TwoFactorEnabled {
					return action.Invalid("Two-factor authentication is not enabled",
						action.FieldError{Field: "code", Message: "Two-factor authentication is not enabled"})
				}
				if !proveSecondFactor(u, in.Code) {
					return wrongCode()
				}
				u.TwoFactorEnabled = false
				u.TOTPSecret = ""
				u.RecoveryCodes = nil
				return nil
			})
		},
	}, in)
}

// VerifySecondFactor completes a pending sign-in. A recovery code is spent
// on use.
func (uc *ProfileUseCase) VerifySecondFactor(ctx context.Context, in SecondFactorInput) action.Result[entities.User] {
	return action.Run(ctx, uc.obs, action.Stages[SecondFactorInput, entities.User]{
		Name:           "auth.2fa.verify",
		Sanitize:       func(in SecondFactorInput) SecondFactorInput { in.Code = cleanCode(in.Code); return in },
		Validate:       func(in SecondFactorInput) []action.FieldError { return shape.Struct(in) },
		InvalidMessage: "Invalid verification code",
		Authorize: func(ctx context.Context, _ SecondFactorInput) *action.Error {
			s, ok := auth.SessionFromContext(ctx)
			if !ok || !s.Pending {
				return action.Unauthorized("No sign-in is waiting for a second factor")
			}
			if uc.attempts != nil && !uc.attempts.Allow(s.UserID) {
				return action.Invalid("Too many verification attempts", action.FieldError{
					Field:   "code",
					Message: "Too many attempts. Try again in a minute.",
				})
			}
			return nil
		},
		DatabaseMessage: "Failed to verify code",
		Execute: func(ctx context.Context, in SecondFactorInput) (entities.User, error) {
			s, _ := auth.SessionFromContext(ctx)
			u, err := uc.users.GetByID(ctx, s.UserID)
			if err != nil {
				return entities.User{}, vanished(err, "User")
			}
			if auth.ValidateTOTP(in.Code, u.TOTPSecret) {
				return *u, nil
			}
			rest, ok := auth.UseRecoveryCode(u.RecoveryCodes, in.Code)
			if !ok {
				return entities.User{}, wrongCode()
			}
			u.RecoveryCodes = rest
			u.UpdatedAt = now()
			if err := uc.users.Update(ctx, u); err != nil {
				return entities.User{}, fmt.Errorf("spending recovery code: %w", err)
			}
			return *u, nil
		},
	}, in)
}

// Activity lists the caller's most recent logged events.
func (uc *ProfileUseCase) Activity(ctx context.Context, in ActivityInput) action.Result[[]entities.ActivityEntry] {
	limitOnly := func(q url.Values) url.Values { return url.Values{"limit": q["limit"]} }
	return action.Run(ctx, uc.obs, action.Stages[ActivityInput, []entities.ActivityEntry]{
		Name: "profile.activity",
		Validate: func(in ActivityInput) []action.FieldError {
			_, fields := validation.ParsePagination(limitOnly(in.Query), defaultActivityLimit, maxActivityLimit)
			return fields
		},
		InvalidMessage:  "Invalid limit",
		Authorize:       signedIn[ActivityInput],
		DatabaseMessage: "Failed to load activity",
		Execute: func(ctx context.Context, in ActivityInput) ([]entities.ActivityEntry, error) {
			p, _ := validation.ParsePagination(limitOnly(in.Query), defaultActivityLimit, maxActivityLimit)
			return uc.accessLogs.ListByActor(ctx, callerID(ctx), p.Limit)
		},
	}, in)
}

// mutate loads the caller, applies change and saves. An envelope returned
// by change aborts without saving.
func (uc *ProfileUseCase) mutate(ctx context.Context, change func(u *entities.User) *action.Error) (entities.User, error) {
	u, err := uc.users.GetByID(ctx, callerID(ctx))
	if err != nil {
		return entities.User{}, vanished(err, "User")
	}
	if e := change(u); e != nil {
		return entities.User{}, e
	}
	u.UpdatedAt = now()
	if err := uc.users.Update(ctx, u); err != nil {
		return entities.User{}, fmt.Errorf("updating user %s: %w", u.ID, err)
	}
	return *u, nil
}

func proveSecondFactor(u *entities.User, code string) bool {
	if auth.ValidateTOTP(code, u.TOTPSecret) {
		return true
	}
	_, ok := auth.UseRecoveryCode(u.RecoveryCodes, code)
	return ok
}

func wrongCode() *action.Error {
	return action.Invalid("Invalid verification code",
		action.FieldError{Field: "code", Message: "Code is incorrect"})
}

func signedIn[T any](ctx context.Context, _ T) *action.Error {
	_, e := requireUser(ctx)
	return e
}

// cleanCode drops the spaces authenticator apps show inside codes.
func cleanCode(code string) string {
	return strings.ReplaceAll(validation.SanitizeString(code), " ", "")
}
