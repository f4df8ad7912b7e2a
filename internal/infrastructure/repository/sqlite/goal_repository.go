package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	dbpkg "goal-tracker/internal/database"
	"goal-tracker/internal/domain/entities"
	"goal-tracker/internal/domain/repositories"
)

type GoalRepo struct {
	db *dbpkg.Database
}

var _ repositories.GoalRepository = (*GoalRepo)(nil)

func NewGoalRepo(db *dbpkg.Database) *GoalRepo { return &GoalRepo{db: db} }

const goalColumns = "id, user_id, title, description, status, target_date, created_at, updated_at"

func (r *GoalRepo) OwnerOf(ctx context.Context, id string) (string, error) {
	return ownerOf(ctx, r.db.DB(), "SELECT user_id FROM goals WHERE id = ?", "goal", id)
}

// ListByUser returns one page of the user's goals, newest first, and the
// user's total goal count.
func (r *GoalRepo) ListByUser(ctx context.Context, userID string, offset, limit int) ([]entities.Goal, int, error) {
	var total int
	if err := r.db.DB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM goals WHERE user_id = ?", userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count goals: %w", err)
	}

	rows, err := r.db.DB().QueryContext(ctx, `
	SELECT `+goalColumns+`
	FROM goals
	WHERE user_id = ?
	ORDER BY created_at DESC, id
	LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list goals: %w", err)
	}
	defer rows.Close()

	goals := []entities.Goal{}
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, 0, err
		}
		goals = append(goals, *g)
	}
	return goals, total, rows.Err()
}

func (r *GoalRepo) GetByID(ctx context.Context, id string) (*entities.Goal, error) {
	g, err := scanGoal(r.db.DB().QueryRowContext(ctx, "SELECT "+goalColumns+" FROM goals WHERE id = ?", id))
	if err != nil {
		return nil, notFound(err, "goal", id)
	}
	return g, nil
}

func (r *GoalRepo) Create(ctx context.Context, g *entities.Goal) error {
	_, err := r.db.DB().ExecContext(ctx, `
	INSERT INTO goals (`+goalColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.UserID, g.Title, nullString(g.Description), string(g.Status), nullString(g.TargetDate),
		dbpkg.FormatTime(g.CreatedAt), dbpkg.FormatTime(g.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert goal: %w", err)
	}
	return nil
}

func (r *GoalRepo) Update(ctx context.Context, g *entities.Goal) error {
	res, err := r.db.DB().ExecContext(ctx, `
	UPDATE goals SET title = ?, description = ?, status = ?, target_date = ?, updated_at = ?
	WHERE id = ?`,
		g.Title, nullString(g.Description), string(g.Status), nullString(g.TargetDate),
		dbpkg.FormatTime(g.UpdatedAt), g.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update goal: %w", err)
	}
	return mustAffect(res, "goal", g.ID)
}

// Delete removes the goal; regions and tasks go with it via ON DELETE CASCADE.
func (r *GoalRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.DB().ExecContext(ctx, "DELETE FROM goals WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete goal: %w", err)
	}
	return mustAffect(res, "goal", id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGoal(row rowScanner) (*entities.Goal, error) {
	var (
		g                    entities.Goal
		desc, target         sql.NullString
		status, created, upd string
	)
	if err := row.Scan(&g.ID, &g.UserID, &g.Title, &desc, &status, &target, &created, &upd); err != nil {
		return nil, err
	}
	g.Description = stringPtr(desc)
	g.TargetDate = stringPtr(target)
	g.Status = entities.GoalStatus(status)
	var err error
	g.CreatedAt, g.UpdatedAt, err = parseTimes(created, upd)
	return &g, err
}
