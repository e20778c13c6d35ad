// Package auth holds the single shared password, the login session cookie
// and flash messages.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrNoPassword is returned when neither a hash nor a password is configured.
var ErrNoPassword = errors.New("no password configured")

// Password verifies login attempts against one bcrypt hash.
type Password struct {
	hash []byte
}

// NewPassword prefers a precomputed bcrypt hash and otherwise hashes plain
// once at startup.
func NewPassword(hash, plain string) (*Password, error) {
	switch {
	case hash != "":
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("invalid password hash: %w", err)
		}
		return &Password{hash: []byte(hash)}, nil
	case plain != "":
		h, err := Hash(plain)
		if err != nil {
			return nil, err
		}
		return &Password{hash: []byte(h)}, nil
	default:
		return nil, ErrNoPassword
	}
}

// Hash returns the bcrypt hash of plain.
func Hash(plain string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// Verify reports whether candidate matches.
func (p *Password) Verify(candidate string) bool {
	if candidate == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(p.hash, []byte(candidate)) == nil
}
