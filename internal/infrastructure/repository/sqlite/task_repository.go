package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	dbpkg "goal-tracker/internal/database"
	"goal-tracker/internal/domain/entities"
	"goal-tracker/internal/domain/repositories"
)

type TaskRepo struct {
	db *dbpkg.Database
}

var _ repositories.TaskRepository = (*TaskRepo)(nil)

func NewTaskRepo(db *dbpkg.Database) *TaskRepo { return &TaskRepo{db: db} }

const taskColumns = "t.id, t.region_id, t.title, t.description, t.completed, t.due_date, t.position, t.created_at, t.updated_at"

func (r *TaskRepo) OwnerOf(ctx context.Context, id string) (string, error) {
	return ownerOf(ctx, r.db.DB(), `
	SELECT g.user_id FROM tasks t
	JOIN regions r ON r.id = t.region_id
	JOIN goals g ON g.id = r.goal_id
	WHERE t.id = ?`, "task", id)
}

func (r *TaskRepo) ListByRegion(ctx context.Context, regionID string) ([]entities.Task, error) {
	return r.list(ctx, `
	SELECT `+taskColumns+` FROM tasks t
	WHERE t.region_id = ?
	ORDER BY t.position, t.created_at`, regionID)
}

// ListByGoal returns every task under the goal's regions, ordered by region
// then position, for assembling a goal detail in one query.
func (r *TaskRepo) ListByGoal(ctx context.Context, goalID string) ([]entities.Task, error) {
	return r.list(ctx, `
	SELECT `+taskColumns+` FROM tasks t
	JOIN regions r ON r.id = t.region_id
	WHERE r.goal_id = ?
	ORDER BY r.position, t.position, t.created_at`, goalID)
}

func (r *TaskRepo) list(ctx context.Context, query, arg string) ([]entities.Task, error) {
	rows, err := r.db.DB().QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []entities.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (r *TaskRepo) GetByID(ctx context.Context, id string) (*entities.Task, error) {
	t, err := scanTask(r.db.DB().QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks t WHERE t.id = ?", id))
	if err != nil {
		return nil, notFound(err, "task", id)
	}
	return t, nil
}

func (r *TaskRepo) NextPosition(ctx context.Context, regionID string) (int, error) {
	var pos int
	if err := r.db.DB().QueryRowContext(ctx,
		"SELECT COALESCE(MAX(position) + 1, 0) FROM tasks WHERE region_id = ?", regionID).Scan(&pos); err != nil {
		return 0, fmt.Errorf("failed to compute task position: %w", err)
	}
	return pos, nil
}

func (r *TaskRepo) Create(ctx context.Context, t *entities.Task) error {
	_, err := r.db.DB().ExecContext(ctx, `
	INSERT INTO tasks (id, region_id, title, description, completed, due_date, position, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.RegionID, t.Title, nullString(t.Description), t.Completed, nullString(t.DueDate), t.Position,
		dbpkg.FormatTime(t.CreatedAt), dbpkg.FormatTime(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

func (r *TaskRepo) Update(ctx context.Context, t *entities.Task) error {
	res, err := r.db.DB().ExecContext(ctx, `
	UPDATE tasks SET title = ?, description = ?, completed = ?, due_date = ?, position = ?, updated_at = ?
	WHERE id = ?`,
		t.Title, nullString(t.Description), t.Completed, nullString(t.DueDate), t.Position,
		dbpkg.FormatTime(t.UpdatedAt), t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return mustAffect(res, "task", t.ID)
}

func (r *TaskRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.DB().ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return mustAffect(res, "task", id)
}

func scanTask(row rowScanner) (*entities.Task, error) {
	var (
		t            entities.Task
		desc, due    sql.NullString
		created, upd string
	)
	if err := row.Scan(&t.ID, &t.RegionID, &t.Title, &desc, &t.Completed, &due, &t.Position, &created, &upd); err != nil {
		return nil, err
	}
	t.Description = stringPtr(desc)
	t.DueDate = stringPtr(due)
	var err error
	t.CreatedAt, t.UpdatedAt, err = parseTimes(created, upd)
	return &t, err
}
