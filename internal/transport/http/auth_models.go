package http

// ErrorResponse represents a generic error payload.
type ErrorResponse struct {
	Error string `json:"error" example:"invalid credentials"`
}

// LoginRequest carries the username (identifier) and password (secret).
type LoginRequest struct {
	Identifier string `json:"identifier" example:"alice"`
	Secret     string `json:"secret" example:"secretpw"`
}

// RegisterRequest binds a new account to an existing employee record.
type RegisterRequest struct {
	Identifier string `json:"identifier" example:"alice"`
	Secret     string `json:"secret" example:"secretpw"`
	EmployeeID int64  `json:"employeeId" example:"12"`
}

type ForgotPasswordRequest struct {
	Identifier string `json:"identifier" example:"alice"`
}

type ResetPasswordRequest struct {
	Token     string `json:"token" example:"q5p1q0m1Wb0m3Jm0yQp2Z8Yt5tQ0r3c8r2l4b2n7x1s"`
	NewSecret string `json:"newSecret" example:"newsecretpw"`
}

// AuthTokenResponse is returned by login and register.
type AuthTokenResponse struct {
	Token      string `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	ExpiresAt  string `json:"expiresAt" example:"2024-01-02T09:30:00Z"`
	AccountID  int64  `json:"accountId" example:"7"`
	Identifier string `json:"identifier" example:"alice"`
	RoleName   string `json:"roleName" example:"EMPLOYEE"`
}

// OutcomeResponse is the body of forgot-password and reset-password.
type OutcomeResponse struct {
	Message string `json:"message" example:"Password has been reset successfully. You can now login with your new password."`
	Success bool   `json:"success" example:"true"`
}

// ValidityResponse is the body of validate-reset-token.
type ValidityResponse struct {
	Valid   bool   `json:"valid" example:"true"`
	Message string `json:"message" example:"Token is valid"`
}

// PrincipalResponse describes the caller resolved from the session token.
type PrincipalResponse struct {
	AccountID  int64  `json:"accountId" example:"7"`
	Identifier string `json:"identifier" example:"alice"`
	RoleName   string `json:"roleName" example:"EMPLOYEE"`
	ExpiresAt  string `json:"expiresAt" example:"2024-01-02T09:30:00Z"`
}

type AccountStatusResponse struct {
	AccountID int64 `json:"accountId" example:"7"`
	Enabled   bool  `json:"enabled" example:"false"`
}
