package utils

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// CheckPassword compares a presented password against the stored one.
// Stored values are verbatim unless hashed is set, in which case they are
// bcrypt hashes; a stored value bcrypt cannot parse is still compared
// verbatim, so accounts created before hashing was enabled keep working.
func CheckPassword(stored, presented string, hashed bool) bool {
	if hashed {
		err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(presented))
		if err == nil {
			return true
		}
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false
		}
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}
