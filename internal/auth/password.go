package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// hashCost is the bcrypt work factor used for new password digests.
const hashCost = 12

// ErrPasswordTooLong is returned for passwords over bcrypt's 72-byte input
// limit; bcrypt would otherwise silently truncate them.
var ErrPasswordTooLong = errors.New("auth: password longer than 72 bytes")

// Hasher hashes and verifies passwords. The cost is injectable so tests can
// use the bcrypt minimum instead of paying ~250ms per hash.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher with the production cost factor.
func NewHasher() Hasher {
	return Hasher{cost: hashCost}
}

// NewHasherWithCost returns a Hasher with a custom cost. Used by tests.
func NewHasherWithCost(cost int) Hasher {
	return Hasher{cost: cost}
}

// Hash derives a salted digest from the plaintext password.
func (h Hasher) Hash(password string) (string, error) {
	if len(password) > 72 {
		return "", ErrPasswordTooLong
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether the plaintext password matches the stored digest.
// The comparison is constant-time within bcrypt.
func (h Hasher) Verify(digest, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}
