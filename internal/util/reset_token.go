package util

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

const resetTokenBytes = 32

// GenerateResetToken returns a URL-safe recovery token and the sha256 digest
// that gets persisted in its place.
func GenerateResetToken() (token string, hash []byte, err error) {
	raw := make([]byte, resetTokenBytes)
	if _, err = rand.Read(raw); err != nil {
		return "", nil, err
	}
	token = base64.RawURLEncoding.EncodeToString(raw)
	return token, HashResetToken(token), nil
}

func HashResetToken(token string) []byte {
	sum := sha256.Sum256([]byte(strings.TrimSpace(token)))
	return sum[:]
}
