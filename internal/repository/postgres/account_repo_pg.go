package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/njprem/ems_auth_backend/internal/domain"
)

const accountColumns = `
        u.id, u.username, u.password_hash, u.password_salt, u.enabled, u.employee_id,
        e.email, e.role_id, r.role_name, u.created_at, u.updated_at`

type AccountRepository struct {
	db *sqlx.DB
}

func NewAccountRepo(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts the account and returns it joined with its employee's email
// and role. Constraint violations are returned as *pgconn.PgError.
func (r *AccountRepository) Create(ctx context.Context, username string, passwordHash, passwordSalt []byte, employeeID int64) (*domain.Account, error) {
	const query = `
        WITH u AS (
            INSERT INTO user_account (username, password_hash, password_salt, employee_id, enabled)
            VALUES ($1, $2, $3, $4, TRUE)
            RETURNING id, username, password_hash, password_salt, enabled, employee_id, created_at, updated_at
        )
        SELECT` + accountColumns + `
        FROM u
        JOIN employee e ON e.id = u.employee_id
        LEFT JOIN role r ON r.id = e.role_id
    `
	var account domain.Account
	if err := r.db.GetContext(ctx, &account, query, username, passwordHash, passwordSalt, employeeID); err != nil {
		return nil, translateNoRows(err)
	}
	return &account, nil
}

func (r *AccountRepository) FindByUsername(ctx context.Context, username string) (*domain.Account, error) {
	const query = `
        SELECT` + accountColumns + `
        FROM user_account u
        JOIN employee e ON e.id = u.employee_id
        LEFT JOIN role r ON r.id = e.role_id
        WHERE u.username = $1
    `
	return r.get(ctx, query, username)
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	const query = `
        SELECT` + accountColumns + `
        FROM user_account u
        JOIN employee e ON e.id = u.employee_id
        LEFT JOIN role r ON r.id = e.role_id
        WHERE LOWER(e.email) = LOWER($1)
    `
	return r.get(ctx, query, email)
}

func (r *AccountRepository) FindByID(ctx context.Context, id int64) (*domain.Account, error) {
	const query = `
        SELECT` + accountColumns + `
        FROM user_account u
        JOIN employee e ON e.id = u.employee_id
        LEFT JOIN role r ON r.id = e.role_id
        WHERE u.id = $1
    `
	return r.get(ctx, query, id)
}

func (r *AccountRepository) UpdatePassword(ctx context.Context, id int64, passwordHash, passwordSalt []byte) error {
	const query = `
        UPDATE user_account
        SET password_hash = $2,
            password_salt = $3,
            updated_at = NOW()
        WHERE id = $1
    `
	res, err := r.db.ExecContext(ctx, query, id, passwordHash, passwordSalt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) SetEnabled(ctx context.Context, id int64, enabled bool) (*domain.Account, error) {
	const query = `
        WITH u AS (
            UPDATE user_account
            SET enabled = $2,
                updated_at = NOW()
            WHERE id = $1
            RETURNING id, username, password_hash, password_salt, enabled, employee_id, created_at, updated_at
        )
        SELECT` + accountColumns + `
        FROM u
        JOIN employee e ON e.id = u.employee_id
        LEFT JOIN role r ON r.id = e.role_id
    `
	return r.get(ctx, query, id, enabled)
}

func (r *AccountRepository) get(ctx context.Context, query string, args ...any) (*domain.Account, error) {
	var account domain.Account
	if err := r.db.GetContext(ctx, &account, query, args...); err != nil {
		return nil, translateNoRows(err)
	}
	return &account, nil
}
