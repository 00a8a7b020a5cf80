package auth

import (
	"errors"
	"time"
)

var (
	ErrEmailTaken         = errors.New("auth: email already registered")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrTokenInvalid       = errors.New("auth: token invalid or expired")
	ErrWeakPassword       = errors.New("auth: password must be at least 12 characters with upper, lower, digit and symbol")
)

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Token is an opaque bearer credential. Only its SHA-256 digest is stored;
// the plaintext is returned once at issuance.
type Token struct {
	ID        string
	UserID    string
	Digest    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
