// Password hashing for local accounts.
//
// WHY BCRYPT?
// bcrypt is a password hashing function specifically designed to be slow —
// that slowness makes brute-force attacks expensive. It also generates and
// embeds a random salt in the output, so two users with the same password
// get different hashes and no separate salt column is needed.
//
// NEVER store passwords in plain text or with fast hashes (MD5, SHA-256);
// those fall to GPU rigs in minutes. bcrypt with cost 12 takes ~250ms —
// negligible for a login, brutal for an attacker.
//
// OAuth-registered accounts have no password at all: their PasswordHash is
// "", and Verify against an empty hash always fails.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor. Cost 12 is the recommended
// minimum for new applications; tune so hashing takes ~200-300ms on your
// production hardware.
const defaultCost = 12

// PasswordService provides bcrypt hashing and verification.
//
// It's a struct (not free functions) so the cost can be lowered in tests —
// cost 4 makes test suites fast without changing the logic under test.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the default cost.
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest creates a PasswordService with a custom
// (usually minimum) cost. Do NOT use in production.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash hashes the given plaintext password with bcrypt. The output is a
// self-contained string (version, cost, salt, hash) that goes straight
// into the users table.
//
// Returns an error for plaintexts over 72 bytes — bcrypt silently
// truncates beyond that, and we'd rather reject than surprise.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		return "", fmt.Errorf("auth: password must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify checks whether a plaintext password matches a stored bcrypt hash.
// Returns nil on match. bcrypt compares in constant time internally, so
// this is safe against timing attacks.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("auth: invalid password")
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
