package ports

import (
	"context"

	"github.com/njprem/ems_auth_backend/internal/domain"
)

// AccountRepository is the credential store. Finders return domain.ErrNotFound
// when no account matches.
type AccountRepository interface {
	Create(ctx context.Context, username string, passwordHash, passwordSalt []byte, employeeID int64) (*domain.Account, error)
	FindByUsername(ctx context.Context, username string) (*domain.Account, error)
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByID(ctx context.Context, id int64) (*domain.Account, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash, passwordSalt []byte) error
	SetEnabled(ctx context.Context, id int64, enabled bool) (*domain.Account, error)
}
