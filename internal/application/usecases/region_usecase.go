package usecases

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"goal-tracker/internal/action"
	"goal-tracker/internal/domain/entities"
	"goal-tracker/internal/domain/repositories"
	"goal-tracker/internal/presentation/http/validation"
)

// RegionUseCase also serves the legacy subgoal routes.
type RegionUseCase struct {
	goals   repositories.GoalRepository
	regions repositories.RegionRepository
	tasks   repositories.TaskRepository
	obs     action.Observer
}

func NewRegionUseCase(goals repositories.GoalRepository, regions repositories.RegionRepository, tasks repositories.TaskRepository, obs action.Observer) *RegionUseCase {
	return &RegionUseCase{goals: goals, regions: regions, tasks: tasks, obs: obs}
}

type CreateRegionInput struct {
	GoalID      string  `json:"-"`
	Title       string  `json:"title" validate:"required,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

type UpdateRegionInput struct {
	ID          string  `json:"-"`
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Position    *int    `json:"position" validate:"omitempty,min=0"`

	clearDescription bool
}

func (uc *RegionUseCase) ListForGoal(ctx context.Context, goalID string) action.Result[[]entities.Region] {
	return action.Run(ctx, uc.obs, action.Stages[string, []entities.Region]{
		Name: "regions.list",
		Authorize: func(ctx context.Context, goalID string) *action.Error {
			return ownedBy(ctx, uc.goals, "Goal", goalID)
		},
		DatabaseMessage: "Failed to load regions",
		Execute: func(ctx context.Context, goalID string) ([]entities.Region, error) {
			return uc.regions.ListByGoal(ctx, goalID)
		},
	}, goalID)
}

func (uc *RegionUseCase) Get(ctx context.Context, id string) action.Result[entities.RegionDetail] {
	return action.Run(ctx, uc.obs, action.Stages[string, entities.RegionDetail]{
		Name: "regions.get",
		Authorize: func(ctx context.Context, id string) *action.Error {
			return ownedBy(ctx, uc.regions, "Region", id)
		},
		DatabaseMessage: "Failed to load region",
		Execute: func(ctx context.Context, id string) (entities.RegionDetail, error) {
			region, err := uc.regions.GetByID(ctx, id)
			if err != nil {
				return entities.RegionDetail{}, vanished(err, "Region")
			}
			tasks, err := uc.tasks.ListByRegion(ctx, id)
			if err != nil {
				return entities.RegionDetail{}, err
			}
			return entities.RegionDetail{Region: *region, Tasks: tasks}, nil
		},
	}, id)
}

// Create appends a region to the end of the goal.
func (uc *RegionUseCase) Create(ctx context.Context, in CreateRegionInput) action.Result[entities.Region] {
	return action.Run(ctx, uc.obs, action.Stages[CreateRegionInput, entities.Region]{
		Name: "regions.create",
		Sanitize: func(in CreateRegionInput) CreateRegionInput {
			in.Title = validation.SanitizeString(in.Title)
			in.Description = validation.SanitizeOptionalString(in.Description)
			return in
		},
		Validate:       func(in CreateRegionInput) []action.FieldError { return shape.Struct(in) },
		InvalidMessage: "Invalid region",
		Authorize: func(ctx context.Context, in CreateRegionInput) *action.Error {
			return ownedBy(ctx, uc.goals, "Goal", in.GoalID)
		},
		DatabaseMessage: "Failed to create region",
		Execute: func(ctx context.Context, in CreateRegionInput) (entities.Region, error) {
			pos, err := uc.regions.NextPosition(ctx, in.GoalID)
			if err != nil {
				return entities.Region{}, err
			}
			ts := now()
			region := entities.Region{
				ID:          uuid.NewString(),
				GoalID:      in.GoalID,
				Title:       in.Title,
				Description: in.Description,
				Position:    pos,
				CreatedAt:   ts,
				UpdatedAt:   ts,
			}
			if err := uc.regions.Create(ctx, &region); err != nil {
				return entities.Region{}, fmt.Errorf("creating region: %w", err)
			}
			return region, nil
		},
	}, in)
}

func (uc *RegionUseCase) Update(ctx context.Context, in UpdateRegionInput) action.Result[entities.Region] {
	return action.Run(ctx, uc.obs, action.Stages[UpdateRegionInput, entities.Region]{
		Name: "regions.update",
		Sanitize: func(in UpdateRegionInput) UpdateRegionInput {
			in.Title = validation.SanitizePatchString(in.Title)
			in.Description, in.clearDescription = clearable(validation.SanitizePatchString(in.Description))
			return in
		},
		Validate:       func(in UpdateRegionInput) []action.FieldError { return shape.Struct(in) },
		InvalidMessage: "Invalid region",
		Authorize: func(ctx context.Context, in UpdateRegionInput) *action.Error {
			return ownedBy(ctx, uc.regions, "Region", in.ID)
		},
		DatabaseMessage: "Failed to update region",
		Execute: func(ctx context.Context, in UpdateRegionInput) (entities.Region, error) {
			region, err := uc.regions.GetByID(ctx, in.ID)
			if err != nil {
				return entities.Region{}, vanished(err, "Region")
			}
			if in.Title != nil {
				region.Title = *in.Title
			}
			if in.Description != nil || in.clearDescription {
				region.Description = in.Description
			}
			if in.Position != nil {
				region.Position = *in.Position
			}
			region.UpdatedAt = now()
			if err := uc.regions.Update(ctx, region); err != nil {
				return entities.Region{}, vanished(fmt.Errorf("updating region %s: %w", in.ID, err), "Region")
			}
			return *region, nil
		},
	}, in)
}

// Delete removes the region and its tasks.
func (uc *RegionUseCase) Delete(ctx context.Context, id string) action.Result[DeletedResource] {
	return action.Run(ctx, uc.obs, action.Stages[string, DeletedResource]{
		Name: "regions.delete",
		Authorize: func(ctx context.Context, id string) *action.Error {
			return ownedBy(ctx, uc.regions, "Region", id)
		},
		DatabaseMessage: "Failed to delete region",
		Execute: func(ctx context.Context, id string) (DeletedResource, error) {
			if err := uc.regions.Delete(ctx, id); err != nil {
				return DeletedResource{}, vanished(fmt.Errorf("deleting region %s: %w", id, err), "Region")
			}
			return DeletedResource{ID: id}, nil
		},
	}, id)
}
