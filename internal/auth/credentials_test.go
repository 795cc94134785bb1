package auth

import (
	"errors"
	"testing"
)

func TestCredentialsVerify(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	credentials := Credentials{Username: "admin", PasswordHash: hash}

	if err := credentials.Verify("admin", "correct horse"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := credentials.Verify(" admin ", "correct horse"); err != nil {
		t.Fatalf("username should be compared trimmed: %v", err)
	}
	if err := credentials.Verify("admin", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := credentials.Verify("intruder", "correct horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}
