package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hendraw/partshub/internal/postgres"
)

type PgStore struct{ DB *pgxpool.Pool }

func (s *PgStore) CreateUser(ctx context.Context, u *User) error {
	err := s.DB.QueryRow(ctx, `
		INSERT INTO users(id, name, email, password_hash)
		VALUES ($1,$2,$3,$4) RETURNING created_at`,
		u.ID, u.Name, u.Email, u.PasswordHash,
	).Scan(&u.CreatedAt)
	if postgres.IsUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (s *PgStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.DB.QueryRow(ctx,
		`SELECT id, name, email, password_hash, created_at FROM users WHERE email=$1`, email,
	).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PgStore) InsertToken(ctx context.Context, t *Token) error {
	return s.DB.QueryRow(ctx, `
		INSERT INTO api_tokens(id, user_id, digest, expires_at)
		VALUES ($1,$2,$3,$4) RETURNING created_at`,
		t.ID, t.UserID, t.Digest, t.ExpiresAt,
	).Scan(&t.CreatedAt)
}

// UserByTokenDigest resolves an unexpired token to its user.
func (s *PgStore) UserByTokenDigest(ctx context.Context, digest string, now time.Time) (*User, error) {
	var u User
	err := s.DB.QueryRow(ctx, `
		SELECT u.id, u.name, u.email, u.password_hash, u.created_at
		FROM api_tokens t JOIN users u ON u.id = t.user_id
		WHERE t.digest=$1 AND t.expires_at > $2`,
		digest, now,
	).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTokenInvalid
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PgStore) DeleteToken(ctx context.Context, digest string) error {
	_, err := s.DB.Exec(ctx, `DELETE FROM api_tokens WHERE digest=$1`, digest)
	return err
}

func (s *PgStore) DeleteUserTokens(ctx context.Context, userID string) error {
	_, err := s.DB.Exec(ctx, `DELETE FROM api_tokens WHERE user_id=$1`, userID)
	return err
}
