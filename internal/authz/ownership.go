package authz

import (
	"context"
	"errors"

	"goal-tracker/internal/action"
	domainerrors "goal-tracker/internal/domain/errors"
	"goal-tracker/internal/domain/repositories"
)

// CheckOwnership confirms userID owns the kind resource id. A missing
// resource and someone else's resource produce the same NOT_FOUND envelope
// so callers learn nothing about ids they do not own. Lookup failures are
// DATABASE_ERROR.
func CheckOwnership(ctx context.Context, lookup repositories.OwnerLookup, kind, id, userID string) *action.Error {
	owner, err := lookup.OwnerOf(ctx, id)
	if errors.Is(err, domainerrors.ErrNotFound) {
		return action.NotFound(kind + " not found")
	}
	if err != nil {
		return action.DatabaseFailure("Failed to load " + lowerFirst(kind))
	}
	if owner != userID {
		return action.NotFound(kind + " not found")
	}
	return nil
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}
