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

type TaskUseCase struct {
	regions repositories.RegionRepository
	tasks   repositories.TaskRepository
	obs     action.Observer
}

func NewTaskUseCase(regions repositories.RegionRepository, tasks repositories.TaskRepository, obs action.Observer) *TaskUseCase {
	return &TaskUseCase{regions: regions, tasks: tasks, obs: obs}
}

type CreateTaskInput struct {
	RegionID    string  `json:"-"`
	Title       string  `json:"title" validate:"required,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	DueDate     *string `json:"dueDate" validate:"omitempty,datetime=2006-01-02"`
}

// UpdateTaskInput is a partial update. An empty description or due date
// clears it.
type UpdateTaskInput struct {
	ID          string  `json:"-"`
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Completed   *bool   `json:"completed"`
	DueDate     *string `json:"dueDate" validate:"omitempty,datetime=2006-01-02"`
	Position    *int    `json:"position" validate:"omitempty,min=0"`

	clearDescription bool
	clearDueDate     bool
}

func (uc *TaskUseCase) ListForRegion(ctx context.Context, regionID string) action.Result[[]entities.Task] {
	return action.Run(ctx, uc.obs, action.Stages[string, []entities.Task]{
		Name: "tasks.list",
		Authorize: func(ctx context.Context, regionID string) *action.Error {
			return ownedBy(ctx, uc.regions, "Region", regionID)
		},
		DatabaseMessage: "Failed to load tasks",
		Execute: func(ctx context.Context, regionID string) ([]entities.Task, error) {
			return uc.tasks.ListByRegion(ctx, regionID)
		},
	}, regionID)
}

func (uc *TaskUseCase) Get(ctx context.Context, id string) action.Result[entities.Task] {
	return action.Run(ctx, uc.obs, action.Stages[string, entities.Task]{
		Name: "tasks.get",
		Authorize: func(ctx context.Context, id string) *action.Error {
			return ownedBy(ctx, uc.tasks, "Task", id)
		},
		DatabaseMessage: "Failed to load task",
		Execute: func(ctx context.Context, id string) (entities.Task, error) {
			task, err := uc.tasks.GetByID(ctx, id)
			if err != nil {
				return entities.Task{}, vanished(err, "Task")
			}
			return *task, nil
		},
	}, id)
}

func (uc *TaskUseCase) Create(ctx context.Context, in CreateTaskInput) action.Result[entities.Task] {
	return action.Run(ctx, uc.obs, action.Stages[CreateTaskInput, entities.Task]{
		Name: "tasks.create",
		Sanitize: func(in CreateTaskInput) CreateTaskInput {
			in.Title = validation.SanitizeString(in.Title)
			in.Description = validation.SanitizeOptionalString(in.Description)
			in.DueDate = validation.SanitizeOptionalString(in.DueDate)
			return in
		},
		Validate:       func(in CreateTaskInput) []action.FieldError { return shape.Struct(in) },
		InvalidMessage: "Invalid task",
		Authorize: func(ctx context.Context, in CreateTaskInput) *action.Error {
			return ownedBy(ctx, uc.regions, "Region", in.RegionID)
		},
		DatabaseMessage: "Failed to create task",
		Execute: func(ctx context.Context, in CreateTaskInput) (entities.Task, error) {
			pos, err := uc.tasks.NextPosition(ctx, in.RegionID)
			if err != nil {
				return entities.Task{}, err
			}
			ts := now()
			task := entities.Task{
				ID:          uuid.NewString(),
				RegionID:    in.RegionID,
				Title:       in.Title,
				Description: in.Description,
				DueDate:     in.DueDate,
				Position:    pos,
				CreatedAt:   ts,
				UpdatedAt:   ts,
			}
			if err := uc.tasks.Create(ctx, &task); err != nil {
				return entities.Task{}, fmt.Errorf("creating task: %w", err)
			}
			return task, nil
		},
	}, in)
}

func (uc *TaskUseCase) Update(ctx context.Context, in UpdateTaskInput) action.Result[entities.Task] {
	return action.Run(ctx, uc.obs, action.Stages[UpdateTaskInput, entities.Task]{
		Name: "tasks.update",
		Sanitize: func(in UpdateTaskInput) UpdateTaskInput {
			in.Title = validation.SanitizePatchString(in.Title)
			in.Description, in.clearDescription = clearable(validation.SanitizePatchString(in.Description))
			in.DueDate, in.clearDueDate = clearable(validation.SanitizePatchString(in.DueDate))
			return in
		},
		Validate:       func(in UpdateTaskInput) []action.FieldError { return shape.Struct(in) },
		InvalidMessage: "Invalid task",
		Authorize: func(ctx context.Context, in UpdateTaskInput) *action.Error {
			return ownedBy(ctx, uc.tasks, "Task", in.ID)
		},
		DatabaseMessage: "Failed to update task",
		Execute: func(ctx context.Context, in UpdateTaskInput) (entities.Task, error) {
			task, err := uc.tasks.GetByID(ctx, in.ID)
			if err != nil {
				return entities.Task{}, vanished(err, "Task")
			}
			if in.Title != nil {
				task.Title = *in.Title
			}
			if in.Description != nil || in.clearDescription {
				task.Description = in.Description
			}
			if in.Completed != nil {
				task.Completed = *in.Completed
			}
			if in.DueDate != nil || in.clearDueDate {
				task.DueDate = in.DueDate
			}
			if in.Position != nil {
				task.Position = *in.Position
			}
			task.UpdatedAt = now()
			if err := uc.tasks.Update(ctx, task); err != nil {
				return entities.Task{}, vanished(fmt.Errorf("updating task %s: %w", in.ID, err), "Task")
			}
			return *task, nil
		},
	}, in)
}

func (uc *TaskUseCase) Delete(ctx context.Context, id string) action.Result[DeletedResource] {
	return action.Run(ctx, uc.obs, action.Stages[string, DeletedResource]{
		Name: "tasks.delete",
		Authorize: func(ctx context.Context, id string) *action.Error {
			return ownedBy(ctx, uc.tasks, "Task", id)
		},
		DatabaseMessage: "Failed to delete task",
		Execute: func(ctx context.Context, id string) (DeletedResource, error) {
			if err := uc.tasks.Delete(ctx, id); err != nil {
				return DeletedResource{}, vanished(fmt.Errorf("deleting task %s: %w", id, err), "Task")
			}
			return DeletedResource{ID: id}, nil
		},
	}, id)
}
