package participants

import (
	"crypto/rand"
	"fmt"
)

const (
	tokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	tokenLength   = 8
)

// newToken returns a URL-safe public token with 62^8 address space.
func newToken() (string, error) {
	raw := make([]byte, tokenLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("participants: token generation failed: %w", err)
	}
	token := make([]byte, tokenLength)
	for i, b := range raw {
		token[i] = tokenAlphabet[int(b)%len(tokenAlphabet)]
	}
	return string(token), nil
}
