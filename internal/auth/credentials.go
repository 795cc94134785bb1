package auth

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials indicates username or password did not match.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Credentials holds the single configured admin login.
type Credentials struct {
	Username     string
	PasswordHash string
}

// Verify compares a login attempt against the configured bcrypt hash.
func (c Credentials) Verify(username, password string) error {
	if strings.TrimSpace(username) != c.Username {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// HashPassword produces a bcrypt hash for provisioning the admin account.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
