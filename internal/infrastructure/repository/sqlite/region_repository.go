package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	dbpkg "goal-tracker/internal/database"
	"goal-tracker/internal/domain/entities"
	"goal-tracker/internal/domain/repositories"
)

type RegionRepo struct {
	db *dbpkg.Database
}

var _ repositories.RegionRepository = (*RegionRepo)(nil)

func NewRegionRepo(db *dbpkg.Database) *RegionRepo { return &RegionRepo{db: db} }

const regionColumns = "id, goal_id, title, description, position, created_at, updated_at"

func (r *RegionRepo) OwnerOf(ctx context.Context, id string) (string, error) {
	return ownerOf(ctx, r.db.DB(), `
	SELECT g.user_id FROM regions r
	JOIN goals g ON g.id = r.goal_id
	WHERE r.id = ?`, "region", id)
}

func (r *RegionRepo) ListByGoal(ctx context.Context, goalID string) ([]entities.Region, error) {
	rows, err := r.db.DB().QueryContext(ctx, `
	SELECT `+regionColumns+` FROM regions WHERE goal_id = ? ORDER BY position, created_at`, goalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list regions: %w", err)
	}
	defer rows.Close()

	regions := []entities.Region{}
	for rows.Next() {
		reg, err := scanRegion(rows)
		if err != nil {
			return nil, err
		}
		regions = append(regions, *reg)
	}
	return regions, rows.Err()
}

func (r *RegionRepo) GetByID(ctx context.Context, id string) (*entities.Region, error) {
	reg, err := scanRegion(r.db.DB().QueryRowContext(ctx, "SELECT "+regionColumns+" FROM regions WHERE id = ?", id))
	if err != nil {
		return nil, notFound(err, "region", id)
	}
	return reg, nil
}

func (r *RegionRepo) NextPosition(ctx context.Context, goalID string) (int, error) {
	var pos int
	if err := r.db.DB().QueryRowContext(ctx,
		"SELECT COALESCE(MAX(position) + 1, 0) FROM regions WHERE goal_id = ?", goalID).Scan(&pos); err != nil {
		return 0, fmt.Errorf("failed to compute region position: %w", err)
	}
	return pos, nil
}

func (r *RegionRepo) Create(ctx context.Context, reg *entities.Region) error {
	_, err := r.db.DB().ExecContext(ctx, `
	INSERT INTO regions (`+regionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		reg.ID, reg.GoalID, reg.Title, nullString(reg.Description), reg.Position,
		dbpkg.FormatTime(reg.CreatedAt), dbpkg.FormatTime(reg.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert region: %w", err)
	}
	return nil
}

func (r *RegionRepo) Update(ctx context.Context, reg *entities.Region) error {
	res, err := r.db.DB().ExecContext(ctx, `
	UPDATE regions SET title = ?, description = ?, position = ?, updated_at = ? WHERE id = ?`,
		reg.Title, nullString(reg.Description), reg.Position, dbpkg.FormatTime(reg.UpdatedAt), reg.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update region: %w", err)
	}
	return mustAffect(res, "region", reg.ID)
}

func (r *RegionRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.DB().ExecContext(ctx, "DELETE FROM regions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete region: %w", err)
	}
	return mustAffect(res, "region", id)
}

func scanRegion(row rowScanner) (*entities.Region, error) {
	var (
		reg          entities.Region
		desc         sql.NullString
		created, upd string
	)
	if err := row.Scan(&reg.ID, &reg.GoalID, &reg.Title, &desc, &reg.Position, &created, &upd); err != nil {
		return nil, err
	}
	reg.Description = stringPtr(desc)
	var err error
	reg.CreatedAt, reg.UpdatedAt, err = parseTimes(created, upd)
	return &reg, err
}
