package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	dbpkg "goal-tracker/internal/database"
	"goal-tracker/internal/domain/entities"
	domainerrors "goal-tracker/internal/domain/errors"
	"goal-tracker/internal/domain/repositories"
)

type UserRepo struct {
	db *dbpkg.Database
}

var _ repositories.UserRepository = (*UserRepo)(nil)

func NewUserRepo(db *dbpkg.Database) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, email, name, theme, email_verified_at, totp_secret, totp_enabled,
	recovery_codes, created_at, updated_at, last_login_at`

func (r *UserRepo) GetByID(ctx context.Context, id string) (*entities.User, error) {
	row := r.db.DB().QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	return u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	row := r.db.DB().QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(err, "user", email)
	}
	return u, nil
}

func (r *UserRepo) Create(ctx context.Context, u *entities.User) error {
	codes, err := encodeCodes(u.RecoveryCodes)
	if err != nil {
		return err
	}
	_, err = r.db.DB().ExecContext(ctx, `
	INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, nullString(u.Name), string(u.Theme), dbpkg.NullableTime(u.EmailVerifiedAt),
		sql.NullString{String: u.TOTPSecret, Valid: u.TOTPSecret != ""}, u.TwoFactorEnabled, codes,
		dbpkg.FormatTime(u.CreatedAt), dbpkg.FormatTime(u.UpdatedAt), dbpkg.NullableTime(u.LastLoginAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("user %s: %w", u.Email, domainerrors.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (r *UserRepo) Update(ctx context.Context, u *entities.User) error {
	codes, err := encodeCodes(u.RecoveryCodes)
	if err != nil {
		return err
	}
	res, err := r.db.DB().ExecContext(ctx, `
	UPDATE users SET email = ?, name = ?, theme = ?, email_verified_at = ?, totp_secret = ?,
		totp_enabled = ?, recovery_codes = ?, updated_at = ?, last_login_at = ?
	WHERE id = ?`,
		u.Email, nullString(u.Name), string(u.Theme), dbpkg.NullableTime(u.EmailVerifiedAt),
		sql.NullString{String: u.TOTPSecret, Valid: u.TOTPSecret != ""}, u.TwoFactorEnabled, codes,
		dbpkg.FormatTime(u.UpdatedAt), dbpkg.NullableTime(u.LastLoginAt), u.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return mustAffect(res, "user", u.ID)
}

func (r *UserRepo) TouchLogin(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.DB().ExecContext(ctx,
		"UPDATE users SET last_login_at = ? WHERE id = ?", dbpkg.FormatTime(at), id)
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return mustAffect(res, "user", id)
}

func scanUser(row *sql.Row) (*entities.User, error) {
	var (
		u                       entities.User
		name, verified, secret  sql.NullString
		codes, lastLogin        sql.NullString
		theme, created, updated string
	)
	if err := row.Scan(&u.ID, &u.Email, &name, &theme, &verified, &secret, &u.TwoFactorEnabled,
		&codes, &created, &updated, &lastLogin); err != nil {
		return nil, err
	}
	u.Name = stringPtr(name)
	u.Theme = entities.Theme(theme)
	u.TOTPSecret = secret.String

	var err error
	if u.CreatedAt, u.UpdatedAt, err = parseTimes(created, updated); err != nil {
		return nil, err
	}
	if u.EmailVerifiedAt, err = dbpkg.ScanTime(verified); err != nil {
		return nil, err
	}
	if u.LastLoginAt, err = dbpkg.ScanTime(lastLogin); err != nil {
		return nil, err
	}
	if codes.Valid && codes.String != "" {
		if err := json.Unmarshal([]byte(codes.String), &u.RecoveryCodes); err != nil {
			return nil, fmt.Errorf("decoding recovery codes: %w", err)
		}
	}
	return &u, nil
}

func encodeCodes(codes []string) (sql.NullString, error) {
	if len(codes) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(codes)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encoding recovery codes: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

// isUniqueViolation matches both the primary and extended constraint codes.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}
