package repositories

import (
	"context"

	"goal-tracker/internal/domain/entities"
)

// OwnerLookup resolves the id of the user owning a resource. A missing
// resource yields domainerrors.ErrNotFound.
type OwnerLookup interface {
	OwnerOf(ctx context.Context, id string) (string, error)
}

type GoalRepository interface {
	OwnerLookup
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]entities.Goal, int, error)
	GetByID(ctx context.Context, id string) (*entities.Goal, error)
	Create(ctx context.Context, goal *entities.Goal) error
	Update(ctx context.Context, goal *entities.Goal) error
	Delete(ctx context.Context, id string) error
}

type RegionRepository interface {
	OwnerLookup
	ListByGoal(ctx context.Context, goalID string) ([]entities.Region, error)
	GetByID(ctx context.Context, id string) (*entities.Region, error)
	NextPosition(ctx context.Context, goalID string) (int, error)
	Create(ctx context.Context, region *entities.Region) error
	Update(ctx context.Context, region *entities.Region) error
	Delete(ctx context.Context, id string) error
}

type TaskRepository interface {
	OwnerLookup
	ListByRegion(ctx context.Context, regionID string) ([]entities.Task, error)
	ListByGoal(ctx context.Context, goalID string) ([]entities.Task, error)
	GetByID(ctx context.Context, id string) (*entities.Task, error)
	NextPosition(ctx context.Context, regionID string) (int, error)
	Create(ctx context.Context, task *entities.Task) error
	Update(ctx context.Context, task *entities.Task) error
	Delete(ctx context.Context, id string) error
}
