package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	ab "github.com/aarondl/authboss/v3"
	"github.com/google/uuid"

	"goal-tracker/internal/domain/entities"
	domainerrors "goal-tracker/internal/domain/errors"
	"goal-tracker/internal/domain/repositories"
)

// CallbackPath receives magic-link clicks.
const CallbackPath = "/auth/callback/email"

// MagicLinkConfig configures link issue and delivery.
type MagicLinkConfig struct {
	BaseURL  string
	TTL      time.Duration
	From     string
	FromName string
}

// MagicLinks issues single-use sign-in links and redeems them.
type MagicLinks struct {
	tokens repositories.VerificationTokenRepository
	users  repositories.UserRepository
	mailer ab.Mailer
	cfg    MagicLinkConfig
	now    func() time.Time
}

func NewMagicLinks(tokens repositories.VerificationTokenRepository, users repositories.UserRepository, mailer ab.Mailer, cfg MagicLinkConfig) *MagicLinks {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &MagicLinks{tokens: tokens, users: users, mailer: mailer, cfg: cfg, now: time.Now}
}

// Send stores a fresh token for email and mails the link. callbackPath must
// already be a safe relative path.
func (m *MagicLinks) Send(ctx context.Context, email, callbackPath string) error {
	token, err := newToken()
	if err != nil {
		return err
	}
	if err := m.tokens.Create(ctx, &entities.VerificationToken{
		Identifier: email,
		TokenHash:  hashToken(token),
		ExpiresAt:  m.now().Add(m.cfg.TTL),
	}); err != nil {
		return err
	}

	link := m.Link(email, token, callbackPath)
	return m.mailer.Send(ctx, ab.Email{
		To:       []string{email},
		From:     m.cfg.From,
		FromName: m.cfg.FromName,
		Subject:  "Sign in to Goal Tracker",
		TextBody: fmt.Sprintf("Sign in to Goal Tracker:\n\n%s\n\nThe link expires in %s and works once. If you did not ask for it, ignore this email.\n", link, m.cfg.TTL),
		HTMLBody: fmt.Sprintf(`<p><a href="%s">Sign in to Goal Tracker</a></p><p>The link expires in %s and works once.</p>`, html.EscapeString(link), m.cfg.TTL),
	})
}

// Link builds the callback URL carrying token.
func (m *MagicLinks) Link(email, token, callbackPath string) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("email", email)
	if callbackPath != "" {
		q.Set("callbackUrl", callbackPath)
	}
	return strings.TrimRight(m.cfg.BaseURL, "/") + CallbackPath + "?" + q.Encode()
}

// Redeem consumes token and returns the signed-in user, creating the
// account on first use. Unknown, reused and expired tokens all return
// domainerrors.ErrTokenInvalid.
func (m *MagicLinks) Redeem(ctx context.Context, email, token string) (*entities.User, error) {
	if email == "" || token == "" {
		return nil, domainerrors.ErrTokenInvalid
	}
	now := m.now()
	if _, err := m.tokens.Consume(ctx, email, hashToken(token), now); err != nil {
		return nil, err
	}

	u, err := m.users.GetByEmail(ctx, email)
	if errors.Is(err, domainerrors.ErrNotFound) {
		u = &entities.User{
			ID:              uuid.NewString(),
			Email:           email,
			Theme:           entities.ThemeSystem,
			EmailVerifiedAt: &now,
			CreatedAt:       now,
			UpdatedAt:       now,
			LastLoginAt:     &now,
		}
		err = m.users.Create(ctx, u)
		if errors.Is(err, domainerrors.ErrConflict) {
			// Lost a race with a concurrent first sign-in.
			return m.users.GetByEmail(ctx, email)
		}
		if err != nil {
			return nil, err
		}
		return u, nil
	}
	if err != nil {
		return nil, err
	}

	if u.EmailVerifiedAt == nil {
		u.EmailVerifiedAt = &now
		u.LastLoginAt = &now
		u.UpdatedAt = now
		if err := m.users.Update(ctx, u); err != nil {
			return nil, err
		}
		return u, nil
	}
	if err := m.users.TouchLogin(ctx, u.ID, now); err != nil {
		return nil, err
	}
	u.LastLoginAt = &now
	return u, nil
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
