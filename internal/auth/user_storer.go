package auth

import (
	"context"
	"errors"
	"time"

	ab "github.com/aarondl/authboss/v3"
	"github.com/google/uuid"

	"goal-tracker/internal/domain/entities"
	domainerrors "goal-tracker/internal/domain/errors"
	"goal-tracker/internal/domain/repositories"
)

// ABUser adapts a goal-tracker user to authboss. The PID is the user id,
// which is also what the session stores.
type ABUser struct {
	ID    string
	Email string
}

func (u *ABUser) GetPID() string        { return u.ID }
func (u *ABUser) PutPID(pid string)     { u.ID = pid }
func (u *ABUser) GetEmail() string      { return u.Email }
func (u *ABUser) PutEmail(email string) { u.Email = email }

// UserStorer implements ab.ServerStorer over the user repository.
type UserStorer struct {
	users repositories.UserRepository
}

func NewUserStorer(users repositories.UserRepository) *UserStorer {
	return &UserStorer{users: users}
}

var (
	_ ab.ServerStorer         = (*UserStorer)(nil)
	_ ab.CreatingServerStorer = (*UserStorer)(nil)
)

func (s *UserStorer) Load(ctx context.Context, key string) (ab.User, error) {
	u, err := s.users.GetByID(ctx, key)
	if errors.Is(err, domainerrors.ErrNotFound) {
		return nil, ab.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ABUser{ID: u.ID, Email: u.Email}, nil
}

func (s *UserStorer) Save(ctx context.Context, user ab.User) error {
	au, ok := user.(*ABUser)
	if !ok {
		return errors.New("invalid user type")
	}
	u, err := s.users.GetByID(ctx, au.ID)
	if errors.Is(err, domainerrors.ErrNotFound) {
		return ab.ErrUserNotFound
	}
	if err != nil {
		return err
	}
	if au.Email != "" {
		u.Email = au.Email
	}
	u.UpdatedAt = time.Now()
	return s.users.Update(ctx, u)
}

func (s *UserStorer) New(ctx context.Context) ab.User { return &ABUser{} }

// Create implements ab.CreatingServerStorer.
func (s *UserStorer) Create(ctx context.Context, user ab.User) error {
	au, ok := user.(*ABUser)
	if !ok {
		return errors.New("invalid user type")
	}
	if au.ID == "" {
		au.ID = uuid.NewString()
	}
	now := time.Now()
	err := s.users.Create(ctx, &entities.User{
		ID:        au.ID,
		Email:     au.Email,
		Theme:     entities.ThemeSystem,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if errors.Is(err, domainerrors.ErrConflict) {
		return ab.ErrUserFound
	}
	return err
}
