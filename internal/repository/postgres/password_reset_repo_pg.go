package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/njprem/ems_auth_backend/internal/domain"
)

type PasswordResetRepository struct {
	db *sqlx.DB
}

func NewPasswordResetRepo(db *sqlx.DB) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

// Issue relies on the unique account_id constraint: the upsert replaces the
// previous token in place, so two active tokens can never coexist.
func (r *PasswordResetRepository) Issue(ctx context.Context, accountID int64, tokenHash []byte, expiresAt time.Time) (*domain.PasswordReset, error) {
	const query = `
        INSERT INTO password_reset (account_id, token_hash, expires_at, used, used_at)
        VALUES ($1, $2, $3, FALSE, NULL)
        ON CONFLICT (account_id) DO UPDATE
        SET token_hash = EXCLUDED.token_hash,
            expires_at = EXCLUDED.expires_at,
            used = FALSE,
            used_at = NULL,
            created_at = NOW()
        RETURNING id, account_id, token_hash, expires_at, used, used_at, created_at
    `
	row := r.db.QueryRowxContext(ctx, query, accountID, tokenHash, expiresAt)
	var reset domain.PasswordReset
	if err := row.StructScan(&reset); err != nil {
		return nil, err
	}
	return &reset, nil
}

func (r *PasswordResetRepository) FindByTokenHash(ctx context.Context, tokenHash []byte) (*domain.PasswordReset, error) {
	const query = `
        SELECT id, account_id, token_hash, expires_at, used, used_at, created_at
        FROM password_reset
        WHERE token_hash = $1
    `
	var reset domain.PasswordReset
	if err := r.db.GetContext(ctx, &reset, query, tokenHash); err != nil {
		return nil, translateNoRows(err)
	}
	return &reset, nil
}

func (r *PasswordResetRepository) Consume(ctx context.Context, tokenHash []byte, now time.Time) (*domain.PasswordReset, error) {
	const query = `
        UPDATE password_reset
        SET used = TRUE,
            used_at = $2
        WHERE token_hash = $1 AND used = FALSE AND expires_at > $2
        RETURNING id, account_id, token_hash, expires_at, used, used_at, created_at
    `
	var reset domain.PasswordReset
	err := r.db.GetContext(ctx, &reset, query, tokenHash, now)
	if err == nil {
		return &reset, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	// Nothing changed: report why.
	current, err := r.FindByTokenHash(ctx, tokenHash)
	if err != nil {
		return nil, err
	}
	if current.Used {
		return nil, domain.ErrResetTokenUsed
	}
	return nil, domain.ErrResetTokenExpired
}

func (r *PasswordResetRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `
        DELETE FROM password_reset
        WHERE expires_at < $1
    `
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
