package usecases

import (
	"context"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"goal-tracker/internal/action"
	"goal-tracker/internal/domain/entities"
	"goal-tracker/internal/domain/repositories"
	"goal-tracker/internal/presentation/http/validation"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type GoalUseCase struct {
	goals   repositories.GoalRepository
	regions repositories.RegionRepository
	tasks   repositories.TaskRepository
	obs     action.Observer
}

func NewGoalUseCase(goals repositories.GoalRepository, regions repositories.RegionRepository, tasks repositories.TaskRepository, obs action.Observer) *GoalUseCase {
	return &GoalUseCase{goals: goals, regions: regions, tasks: tasks, obs: obs}
}

// GoalPage is one page of the caller's goals, newest first.
type GoalPage struct {
	Goals []entities.Goal `json:"goals"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
	Total int             `json:"total"`
}

type ListGoalsInput struct {
	Query url.Values
}

type CreateGoalInput struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Status      string  `json:"status" validate:"omitempty,oneof=active completed archived"`
	TargetDate  *string `json:"targetDate" validate:"omitempty,datetime=2006-01-02"`
}

// UpdateGoalInput is a partial update. Absent fields are left alone; an
// empty description or target date clears it.
type UpdateGoalInput struct {
	ID          string  `json:"-"`
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Status      *string `json:"status" validate:"omitempty,oneof=active completed archived"`
	TargetDate  *string `json:"targetDate" validate:"omitempty,datetime=2006-01-02"`

	clearDescription bool
	clearTargetDate  bool
}

func (uc *GoalUseCase) List(ctx context.Context, in ListGoalsInput) action.Result[GoalPage] {
	return action.Run(ctx, uc.obs, action.Stages[ListGoalsInput, GoalPage]{
		Name:           "goals.list",
		InvalidMessage: "Invalid pagination",
		Validate: func(in ListGoalsInput) []action.FieldError {
			_, fields := validation.ParsePagination(in.Query, defaultPageSize, maxPageSize)
			return fields
		},
		Authorize: func(ctx context.Context, _ ListGoalsInput) *action.Error {
			_, e := requireUser(ctx)
			return e
		},
		DatabaseMessage: "Failed to load goals",
		Execute: func(ctx context.Context, in ListGoalsInput) (GoalPage, error) {
			p, _ := validation.ParsePagination(in.Query, defaultPageSize, maxPageSize)
			goals, total, err := uc.goals.ListByUser(ctx, callerID(ctx), p.Offset(), p.Limit)
			if err != nil {
				return GoalPage{}, err
			}
			return GoalPage{Goals: goals, Page: p.Page, Limit: p.Limit, Total: total}, nil
		},
	}, in)
}

// Get returns the goal with its regions and their tasks.
func (uc *GoalUseCase) Get(ctx context.Context, id string) action.Result[entities.GoalDetail] {
	return action.Run(ctx, uc.obs, action.Stages[string, entities.GoalDetail]{
		Name: "goals.get",
		Authorize: func(ctx context.Context, id string) *action.Error {
			return ownedBy(ctx, uc.goals, "Goal", id)
		},
		DatabaseMessage: "Failed to load goal",
		Execute: func(ctx context.Context, id string) (entities.GoalDetail, error) {
			goal, err := uc.goals.GetByID(ctx, id)
			if err != nil {
				return entities.GoalDetail{}, vanished(err, "Goal")
			}
			regions, err := uc.regions.ListByGoal(ctx, id)
			if err != nil {
				return entities.GoalDetail{}, err
			}
			tasks, err := uc.tasks.ListByGoal(ctx, id)
			if err != nil {
				return entities.GoalDetail{}, err
			}
			return assembleDetail(*goal, regions, tasks), nil
		},
	}, id)
}

func assembleDetail(goal entities.Goal, regions []entities.Region, tasks []entities.Task) entities.GoalDetail {
	byRegion := make(map[string][]entities.Task, len(regions))
	for _, t := range tasks {
		byRegion[t.RegionID] = append(byRegion[t.RegionID], t)
	}
	detail := entities.GoalDetail{Goal: goal, Regions: make([]entities.RegionDetail, 0, len(regions))}
	for _, r := range regions {
		rt := byRegion[r.ID]
		if rt == nil {
			rt = []entities.Task{}
		}
		detail.Regions = append(detail.Regions, entities.RegionDetail{Region: r, Tasks: rt})
	}
	return detail
}

func (uc *GoalUseCase) Create(ctx context.Context, in CreateGoalInput) action.Result[entities.Goal] {
	return action.Run(ctx, uc.obs, action.Stages[CreateGoalInput, entities.Goal]{
		Name: "goals.create",
		Sanitize: func(in CreateGoalInput) CreateGoalInput {
			in.Title = validation.SanitizeString(in.Title)
			in.Description = validation.SanitizeOptionalString(in.Description)
			in.Status = validation.SanitizeString(in.Status)
			in.TargetDate = validation.SanitizeOptionalString(in.TargetDate)
			return in
		},
		Validate:       func(in CreateGoalInput) []action.FieldError { return shape.Struct(in) },
		InvalidMessage: "Invalid goal",
		Authorize: func(ctx context.Context, _ CreateGoalInput) *action.Error {
			_, e := requireUser(ctx)
			return e
		},
		DatabaseMessage: "Failed to create goal",
		Execute: func(ctx context.Context, in CreateGoalInput) (entities.Goal, error) {
			ts := now()
			goal := entities.Goal{
				ID:          uuid.NewString(),
				UserID:      callerID(ctx),
				Title:       in.Title,
				Description: in.Description,
				Status:      entities.GoalActive,
				TargetDate:  in.TargetDate,
				CreatedAt:   ts,
				UpdatedAt:   ts,
			}
			if in.Status != "" {
				goal.Status = entities.GoalStatus(in.Status)
			}
			if err := uc.goals.Create(ctx, &goal); err != nil {
				return entities.Goal{}, fmt.Errorf("creating goal: %w", err)
			}
			return goal, nil
		},
	}, in)
}

func (uc *GoalUseCase) Update(ctx context.Context, in UpdateGoalInput) action.Result[entities.Goal] {
	return action.Run(ctx, uc.obs, action.Stages[UpdateGoalInput, entities.Goal]{
		Name: "goals.update",
		Sanitize: func(in UpdateGoalInput) UpdateGoalInput {
			in.Title = validation.SanitizePatchString(in.Title)
			in.Status = validation.SanitizePatchString(in.Status)
			in.Description, in.clearDescription = clearable(validation.SanitizePatchString(in.Description))
			in.TargetDate, in.clearTargetDate = clearable(validation.SanitizePatchString(in.TargetDate))
			return in
		},
		Validate:       func(in UpdateGoalInput) []action.FieldError { return shape.Struct(in) },
		InvalidMessage: "Invalid goal",
		Authorize: func(ctx context.Context, in UpdateGoalInput) *action.Error {
			return ownedBy(ctx, uc.goals, "Goal", in.ID)
		},
		DatabaseMessage: "Failed to update goal",
		Execute: func(ctx context.Context, in UpdateGoalInput) (entities.Goal, error) {
			goal, err := uc.goals.GetByID(ctx, in.ID)
			if err != nil {
				return entities.Goal{}, vanished(err, "Goal")
			}
			if in.Title != nil {
				goal.Title = *in.Title
			}
			if in.Status != nil {
				goal.Status = entities.GoalStatus(*in.Status)
			}
			if in.Description != nil || in.clearDescription {
				goal.Description = in.Description
			}
			if in.TargetDate != nil || in.clearTargetDate {
				goal.TargetDate = in.TargetDate
			}
			goal.UpdatedAt = now()
			if err := uc.goals.Update(ctx, goal); err != nil {
				return entities.Goal{}, vanished(fmt.Errorf("updating goal %s: %w", in.ID, err), "Goal")
			}
			return *goal, nil
		},
	}, in)
}

// Delete removes the goal together with its regions and tasks.
func (uc *GoalUseCase) Delete(ctx context.Context, id string) action.Result[DeletedResource] {
	return action.Run(ctx, uc.obs, action.Stages[string, DeletedResource]{
		Name: "goals.delete",
		Authorize: func(ctx context.Context, id string) *action.Error {
			return ownedBy(ctx, uc.goals, "Goal", id)
		},
		DatabaseMessage: "Failed to delete goal",
		Execute: func(ctx context.Context, id string) (DeletedResource, error) {
			if err := uc.goals.Delete(ctx, id); err != nil {
				return DeletedResource{}, vanished(fmt.Errorf("deleting goal %s: %w", id, err), "Goal")
			}
			return DeletedResource{ID: id}, nil
		},
	}, id)
}
