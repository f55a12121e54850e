package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/adventuretrack/atsite/internal/auth"
	"github.com/adventuretrack/atsite/internal/models"
)

const userSchemaSQL = `
CREATE TABLE IF NOT EXISTS users (
	id             BIGSERIAL PRIMARY KEY,
	-- Friendly public identifier, used in tracking URLs and beacon auth
	user_hash      VARCHAR(16) UNIQUE NOT NULL,
	auth_code_hash TEXT NOT NULL,
	first_name     TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// UserStore is the minimal user directory behind the beacon
// credential check.
type UserStore struct {
	q Querier
}

func NewUserStore(q Querier) *UserStore {
	return &UserStore{q: q}
}

func (s *UserStore) CreateSchema(ctx context.Context) error {
	if _, err := s.q.Exec(ctx, userSchemaSQL); err != nil {
		return fmt.Errorf("create users schema: %w", err)
	}
	return nil
}

// Create inserts a user with a freshly generated hash and auth code.
// The plaintext auth code is returned exactly once; only its bcrypt
// hash is stored.
func (s *UserStore) Create(ctx context.Context, firstName *string) (*models.User, string, error) {
	userHash, err := auth.FriendlyHash()
	if err != nil {
		return nil, "", fmt.Errorf("generate user hash: %w", err)
	}
	authCode, err := auth.FriendlyAuthCode()
	if err != nil {
		return nil, "", fmt.Errorf("generate auth code: %w", err)
	}
	codeHash, err := bcrypt.GenerateFromPassword([]byte(authCode), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash auth code: %w", err)
	}

	query := `
		INSERT INTO users (user_hash, auth_code_hash, first_name)
		VALUES ($1, $2, $3)
		RETURNING id, user_hash, auth_code_hash, first_name, created_at`

	var u models.User
	err = s.q.QueryRow(ctx, query, userHash, string(codeHash), firstName).Scan(
		&u.ID,
		&u.UserHash,
		&u.AuthCodeHash,
		&u.FirstName,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, "", fmt.Errorf("insert user: %w", err)
	}
	return &u, authCode, nil
}

// GetByHash returns a user by their public hash. Returns nil, nil if
// not found.
func (s *UserStore) GetByHash(ctx context.Context, userHash string) (*models.User, error) {
	query := `
		SELECT id, user_hash, auth_code_hash, first_name, created_at
		FROM users
		WHERE user_hash = $1`

	var u models.User
	err := s.q.QueryRow(ctx, query, userHash).Scan(
		&u.ID,
		&u.UserHash,
		&u.AuthCodeHash,
		&u.FirstName,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by hash: %w", err)
	}
	return &u, nil
}

// CheckAuthCode resolves a hash/auth-code pair to a numeric user id.
// Unknown hashes and wrong codes both return 0, nil — the beacon
// surface treats them identically.
func (s *UserStore) CheckAuthCode(ctx context.Context, userHash, authCode string) (int64, error) {
	u, err := s.GetByHash(ctx, userHash)
	if err != nil {
		return 0, err
	}
	if u == nil {
		return 0, nil
	}
	if bcrypt.CompareHashAndPassword([]byte(u.AuthCodeHash), []byte(authCode)) != nil {
		return 0, nil
	}
	return u.ID, nil
}
