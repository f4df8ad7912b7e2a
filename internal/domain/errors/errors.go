package domainerrors

import "errors"

// Repository sentinels. Implementations wrap these with context; callers
// match with errors.Is.
var (
	ErrNotFound     = errors.New("record not found")
	ErrConflict     = errors.New("record already exists")
	ErrTokenInvalid = errors.New("verification token invalid or expired")
)
