// Package auth provides credential hashing helpers shared by the storage
// backends and the migration tool. Credentials are stored only as salted
// bcrypt hashes; plaintext is never persisted or compared directly.
package auth

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword derives a salted bcrypt hash from a plaintext credential.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// CheckPassword reports whether the plaintext credential matches the hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// IsHash reports whether s already looks like a bcrypt hash. Used by the
// migration tool to carry hashed credentials over verbatim while re-hashing
// legacy plaintext ones.
func IsHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") ||
		strings.HasPrefix(s, "$2b$") ||
		strings.HasPrefix(s, "$2y$")
}
