package domain

import "errors"

// Errors returned by repository implementations regardless of backend.
var (
	ErrNotFound          = errors.New("record not found")
	ErrResetTokenUsed    = errors.New("reset token already used")
	ErrResetTokenExpired = errors.New("reset token expired")
)
