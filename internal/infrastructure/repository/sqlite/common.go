package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	dbpkg "goal-tracker/internal/database"
	domainerrors "goal-tracker/internal/domain/errors"
)

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// notFound maps sql.ErrNoRows onto the domain sentinel.
func notFound(err error, kind, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, domainerrors.ErrNotFound)
	}
	return fmt.Errorf("failed to load %s %s: %w", kind, id, err)
}

// mustAffect reports ErrNotFound when an update or delete touched no rows.
func mustAffect(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, domainerrors.ErrNotFound)
	}
	return nil
}

func ownerOf(ctx context.Context, q queryer, query, kind, id string) (string, error) {
	var owner string
	if err := q.QueryRowContext(ctx, query, id).Scan(&owner); err != nil {
		return "", notFound(err, kind, id)
	}
	return owner, nil
}

func parseTimes(created, updated string) (c, u time.Time, err error) {
	if c, err = dbpkg.ParseTime(created); err != nil {
		return
	}
	u, err = dbpkg.ParseTime(updated)
	return
}
