package ports

import (
	"context"
	"time"

	"github.com/njprem/ems_auth_backend/internal/domain"
)

// PasswordResetRepository stores recovery tokens keyed by the sha256 of the
// token value, with at most one token per account.
type PasswordResetRepository interface {
	// Issue stores a fresh unused token for the account, superseding any
	// previous one in the same atomic step.
	Issue(ctx context.Context, accountID int64, tokenHash []byte, expiresAt time.Time) (*domain.PasswordReset, error)
	FindByTokenHash(ctx context.Context, tokenHash []byte) (*domain.PasswordReset, error)
	// Consume flips used=false to used=true only while the token is unexpired.
	// It fails with domain.ErrNotFound, domain.ErrResetTokenExpired or
	// domain.ErrResetTokenUsed; at most one concurrent caller succeeds.
	Consume(ctx context.Context, tokenHash []byte, now time.Time) (*domain.PasswordReset, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
