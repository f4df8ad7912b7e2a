package repositories

import (
	"context"
	"time"

	"goal-tracker/internal/domain/entities"
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*entities.User, error)
	GetByEmail(ctx context.Context, email string) (*entities.User, error)
	Create(ctx context.Context, user *entities.User) error
	Update(ctx context.Context, user *entities.User) error
	TouchLogin(ctx context.Context, id string, at time.Time) error
}

type VerificationTokenRepository interface {
	Create(ctx context.Context, token *entities.VerificationToken) error
	// Consume deletes and returns the matching token. Missing and expired
	// tokens both yield domainerrors.ErrTokenInvalid.
	Consume(ctx context.Context, identifier, tokenHash string, now time.Time) (*entities.VerificationToken, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type AccessLogRepository interface {
	ListByActor(ctx context.Context, actor string, limit int) ([]entities.ActivityEntry, error)
}
