package domain

import "time"

// PasswordReset is a single-use recovery token record. Only the sha256 of the
// token is stored; the plaintext goes to the account holder once.
type PasswordReset struct {
	ID        int64      `db:"id" json:"id"`
	AccountID int64      `db:"account_id" json:"account_id"`
	TokenHash []byte     `db:"token_hash" json:"-"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	Used      bool       `db:"used" json:"used"`
	UsedAt    *time.Time `db:"used_at" json:"used_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

func (r *PasswordReset) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

func (r *PasswordReset) Active(now time.Time) bool {
	return !r.Used && !r.Expired(now)
}
