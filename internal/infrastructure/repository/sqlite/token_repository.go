package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	dbpkg "goal-tracker/internal/database"
	"goal-tracker/internal/domain/entities"
	domainerrors "goal-tracker/internal/domain/errors"
	"goal-tracker/internal/domain/repositories"
)

type VerificationTokenRepo struct {
	db *dbpkg.Database
}

var _ repositories.VerificationTokenRepository = (*VerificationTokenRepo)(nil)

func NewVerificationTokenRepo(db *dbpkg.Database) *VerificationTokenRepo {
	return &VerificationTokenRepo{db: db}
}

func (r *VerificationTokenRepo) Create(ctx context.Context, t *entities.VerificationToken) error {
	_, err := r.db.DB().ExecContext(ctx,
		"INSERT INTO verification_tokens (token_hash, identifier, expires_at) VALUES (?, ?, ?)",
		t.TokenHash, t.Identifier, dbpkg.FormatTime(t.ExpiresAt))
	if err != nil {
		return fmt.Errorf("failed to store verification token: %w", err)
	}
	return nil
}

// Consume deletes the token inside one transaction so a link can be
// redeemed at most once, even under concurrent clicks.
func (r *VerificationTokenRepo) Consume(ctx context.Context, identifier, tokenHash string, now time.Time) (*entities.VerificationToken, error) {
	var tok *entities.VerificationToken
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var expires string
		err := tx.QueryRowContext(ctx,
			"SELECT expires_at FROM verification_tokens WHERE token_hash = ? AND identifier = ?",
			tokenHash, identifier).Scan(&expires)
		if errors.Is(err, sql.ErrNoRows) {
			return domainerrors.ErrTokenInvalid
		}
		if err != nil {
			return fmt.Errorf("failed to load verification token: %w", err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM verification_tokens WHERE token_hash = ?", tokenHash); err != nil {
			return fmt.Errorf("failed to delete verification token: %w", err)
		}

		exp, err := dbpkg.ParseTime(expires)
		if err != nil {
			return err
		}
		t := entities.VerificationToken{Identifier: identifier, TokenHash: tokenHash, ExpiresAt: exp}
		if t.Expired(now) {
			return nil
		}
		tok = &t
		return nil
	})
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, domainerrors.ErrTokenInvalid
	}
	return tok, nil
}

func (r *VerificationTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.DB().ExecContext(ctx,
		"DELETE FROM verification_tokens WHERE expires_at <= ?", dbpkg.FormatTime(now))
	if err != nil {
		return 0, fmt.Errorf("failed to purge verification tokens: %w", err)
	}
	return res.RowsAffected()
}
