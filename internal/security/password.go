package security

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is deliberately above the library default to slow down offline
// guessing.
const bcryptCost = 12

// HashPassword hashes a plaintext password with the default cost.
func HashPassword(password string) (string, error) {
	return hashPasswordWithCost(password, bcryptCost)
}

func hashPasswordWithCost(password string, cost int) (string, error) {
	hash, errHash := bcrypt.GenerateFromPassword([]byte(password), cost)
	if errHash != nil {
		return "", fmt.Errorf("hash password: %w", errHash)
	}
	return string(hash), nil
}

// VerifyPassword reports whether the plaintext matches the stored hash.
// A malformed hash fails closed: the result is false, never an error that
// could abort the caller's auth flow.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
