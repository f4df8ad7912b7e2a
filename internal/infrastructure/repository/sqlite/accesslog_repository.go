package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	dbpkg "goal-tracker/internal/database"
	"goal-tracker/internal/domain/entities"
	"goal-tracker/internal/domain/repositories"
)

type AccessLogRepo struct {
	db *dbpkg.Database
}

var _ repositories.AccessLogRepository = (*AccessLogRepo)(nil)

func NewAccessLogRepo(db *dbpkg.Database) *AccessLogRepo { return &AccessLogRepo{db: db} }

// ListByActor returns the actor's most recent log entries, newest first.
func (r *AccessLogRepo) ListByActor(ctx context.Context, actor string, limit int) ([]entities.ActivityEntry, error) {
	rows, err := r.db.DB().QueryContext(ctx, `
	SELECT timestamp, level, event_code, message, details
	FROM access_logs
	WHERE actor = ?
	ORDER BY id DESC
	LIMIT ?`, actor, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list access logs: %w", err)
	}
	defer rows.Close()

	entries := []entities.ActivityEntry{}
	for rows.Next() {
		var (
			e       entities.ActivityEntry
			details sql.NullString
		)
		if err := rows.Scan(&e.Timestamp, &e.Level, &e.EventCode, &e.Message, &details); err != nil {
			return nil, err
		}
		if details.Valid && details.String != "" {
			// Entries with unreadable details are still listed.
			_ = json.Unmarshal([]byte(details.String), &e.Details)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
