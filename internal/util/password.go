package util

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/argon2"
)

const (
	saltLength   = 16
	hashLength   = 32
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4

	DefaultPasswordMinLength = 8
)

var ErrPasswordPolicy = errors.New("password does not meet policy")

// PasswordPolicy describes the minimum acceptable shape of a new password.
type PasswordPolicy struct {
	MinLength    int
	RequireMixed bool
}

func (p PasswordPolicy) Validate(password string) error {
	minLen := p.MinLength
	if minLen <= 0 {
		minLen = DefaultPasswordMinLength
	}
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("%w: password cannot be blank", ErrPasswordPolicy)
	}
	if len([]rune(password)) < minLen {
		return fmt.Errorf("%w: password must be at least %d characters long", ErrPasswordPolicy, minLen)
	}
	if !p.RequireMixed {
		return nil
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSpecial = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit || !hasSpecial {
		return fmt.Errorf("%w: password must include uppercase, lowercase, number, and special character", ErrPasswordPolicy)
	}
	return nil
}

func GenerateSalt() ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

func HashPassword(password string, salt []byte) ([]byte, error) {
	if len(password) == 0 {
		return nil, errors.New("password cannot be empty")
	}
	if len(salt) == 0 {
		return nil, errors.New("salt cannot be empty")
	}
	return argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, hashLength), nil
}

func DerivePassword(password string) (hash, salt []byte, err error) {
	salt, err = GenerateSalt()
	if err != nil {
		return nil, nil, err
	}
	hash, err = HashPassword(password, salt)
	if err != nil {
		return nil, nil, err
	}
	return hash, salt, nil
}

func VerifyPassword(password string, salt, expectedHash []byte) bool {
	if len(password) == 0 || len(salt) == 0 || len(expectedHash) == 0 {
		return false
	}
	candidate, err := HashPassword(password, salt)
	if err != nil {
		return false
	}
	if len(candidate) != len(expectedHash) {
		return false
	}
	return subtle.ConstantTimeCompare(candidate, expectedHash) == 1
}

var dummySalt = make([]byte, saltLength)

// BurnPasswordCheck spends the same argon2 work as VerifyPassword without a
// stored hash. Login calls it for unknown accounts.
func BurnPasswordCheck(password string) {
	if password == "" {
		password = " "
	}
	_, _ = HashPassword(password, dummySalt)
}
