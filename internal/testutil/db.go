// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"goal-tracker/internal/database"
	"goal-tracker/internal/migration"
)

// NewDB opens a migrated sqlite database in a temp dir, closed on cleanup.
func NewDB(t testing.TB) *database.Database {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "goals.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = migration.Up(context.Background(), db.DB())
	require.NoError(t, err)
	return db
}

// InsertUser adds a bare user row and returns its id.
func InsertUser(t testing.TB, db *database.Database, email string) string {
	t.Helper()
	id := uuid.NewString()
	now := database.FormatTime(time.Now())
	_, err := db.DB().Exec(
		"INSERT INTO users (id, email, theme, created_at, updated_at) VALUES (?, ?, 'system', ?, ?)",
		id, email, now, now)
	require.NoError(t, err)
	return id
}
