package entities

import "time"

// Theme is the UI colour scheme a user prefers.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Name             *string    `json:"name,omitempty"`
	Theme            Theme      `json:"theme"`
	EmailVerifiedAt  *time.Time `json:"emailVerifiedAt,omitempty"`
	TwoFactorEnabled bool       `json:"twoFactorEnabled"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	LastLoginAt      *time.Time `json:"lastLoginAt,omitempty"`

	// Second-factor material; never serialized.
	TOTPSecret    string   `json:"-"`
	RecoveryCodes []string `json:"-"`
}

// VerificationToken is a pending magic-link sign-in. Only the hash of the
// token is stored.
type VerificationToken struct {
	Identifier string
	TokenHash  string
	ExpiresAt  time.Time
}

// Expired reports whether the token is no longer usable at now.
func (t VerificationToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
