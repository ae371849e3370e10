package auth

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/example/eventshop/internal/apperr"
)

const (
	bcryptCost        = 12
	minPasswordLength = 8
)

// HashPassword validates length and hashes with bcrypt.
func HashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", apperr.Newf(apperr.CodeInvalidPassword, "password must be at least %d characters", minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
