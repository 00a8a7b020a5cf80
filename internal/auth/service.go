package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Store is what the service needs from persistence; PgStore implements it.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	InsertToken(ctx context.Context, t *Token) error
	UserByTokenDigest(ctx context.Context, digest string, now time.Time) (*User, error)
	DeleteToken(ctx context.Context, digest string) error
	DeleteUserTokens(ctx context.Context, userID string) error
}

type Service struct {
	store    Store
	tokenTTL time.Duration
}

func NewService(store Store, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Service{store: store, tokenTTL: tokenTTL}
}

type Credentials struct {
	Token     string    `json:"access_token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

func (s *Service) Register(ctx context.Context, name, email, password string) (*Credentials, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &User{ID: uuid.NewString(), Name: name, Email: email, PasswordHash: string(hash)}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return s.issueToken(ctx, u)
}

func (s *Service) Login(ctx context.Context, email, password string) (*Credentials, error) {
	u, err := s.store.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issueToken(ctx, u)
}

// Authenticate resolves a bearer token to its user.
func (s *Service) Authenticate(ctx context.Context, token string) (*User, error) {
	return s.store.UserByTokenDigest(ctx, digest(token), time.Now().UTC())
}

// Logout revokes the presented token only.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.store.DeleteToken(ctx, digest(token))
}

// LogoutAll revokes every token of the user.
func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	return s.store.DeleteUserTokens(ctx, userID)
}

func (s *Service) issueToken(ctx context.Context, u *User) (*Credentials, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}
	plain := hex.EncodeToString(raw)
	t := &Token{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		Digest:    digest(plain),
		ExpiresAt: time.Now().UTC().Add(s.tokenTTL),
	}
	if err := s.store.InsertToken(ctx, t); err != nil {
		return nil, err
	}
	return &Credentials{Token: plain, TokenType: "Bearer", ExpiresAt: t.ExpiresAt, User: u}, nil
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// validatePassword enforces the registration policy: minimum 12 characters
// with at least one upper, one lower, one digit and one symbol.
func validatePassword(pw string) error {
	if len(pw) < 12 {
		return ErrWeakPassword
	}
	var upper, lower, num, sym bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			num = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			sym = true
		}
	}
	if !upper || !lower || !num || !sym {
		return ErrWeakPassword
	}
	return nil
}
