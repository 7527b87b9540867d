package domain

import "time"

type Account struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash []byte    `db:"password_hash" json:"-"`
	PasswordSalt []byte    `db:"password_salt" json:"-"`
	Enabled      bool      `db:"enabled" json:"enabled"`
	EmployeeID   int64     `db:"employee_id" json:"employee_id"`
	Email        *string   `db:"email" json:"email,omitempty"`
	RoleID       *int64    `db:"role_id" json:"role_id,omitempty"`
	RoleName     *string   `db:"role_name" json:"role_name,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Role resolves the account's role from its employee record. Accounts whose
// employee has no role, or an unrecognised one, act as EMPLOYEE.
func (a *Account) Role() Role {
	if a.RoleName == nil {
		return RoleEmployee
	}
	role, err := ParseRole(*a.RoleName)
	if err != nil {
		return RoleEmployee
	}
	return role
}
