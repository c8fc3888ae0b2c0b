package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"triage/internal/assessment"
	"triage/internal/services"
)

// CreateUser registers a local identity.
func (s *Store) CreateUser(ctx context.Context, email string, role assessment.Role) (assessment.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return assessment.User{}, services.Wrap(services.ErrValidation, "store", "create user", "email is required", nil)
	}
	if !role.Valid() {
		return assessment.User{}, services.Wrap(services.ErrValidation, "store", "create user", fmt.Sprintf("unknown role %q", role), nil)
	}
	user := assessment.User{ID: uuid.NewString(), Email: email, Role: role}
	if _, err := s.execWithRetry(ctx,
		"INSERT INTO users (id, email, role, created_at) VALUES (?, ?, ?, ?)",
		user.ID, user.Email, string(user.Role), s.timestamp(),
	); err != nil {
		return assessment.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// IssueToken creates a bearer token for userID. A ttl <= 0 never expires.
func (s *Store) IssueToken(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	token := strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	var expires any
	if ttl > 0 {
		expires = formatTime(s.now().Add(ttl))
	}
	if _, err := s.execWithRetry(ctx,
		"INSERT INTO sessions (token_hash, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)",
		hashToken(token), userID, s.timestamp(), expires,
	); err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return token, nil
}

// RevokeToken deletes a bearer token.
func (s *Store) RevokeToken(ctx context.Context, token string) error {
	if _, err := s.execWithRetry(ctx, "DELETE FROM sessions WHERE token_hash = ?", hashToken(token)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Lookup resolves a bearer token to its user.
func (s *Store) Lookup(ctx context.Context, token string) (*assessment.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, services.Wrap(services.ErrUnauthorized, "store", "lookup", "missing token", nil)
	}
	var (
		user       assessment.User
		role       string
		expiresRaw sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `SELECT u.id, u.email, u.role, s.expires_at
        FROM sessions s JOIN users u ON u.id = s.user_id
        WHERE s.token_hash = ?`, hashToken(token)).Scan(&user.ID, &user.Email, &role, &expiresRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrUnauthorized, "store", "lookup", "unknown token", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if expires := parseNullTime(expiresRaw); !expires.IsZero() && !s.now().Before(expires) {
		return nil, services.Wrap(services.ErrUnauthorized, "store", "lookup", "token expired", nil)
	}
	user.Role = assessment.Role(role)
	return &user, nil
}

// PurgeExpiredTokens removes sessions past their expiry.
func (s *Store) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx,
		"DELETE FROM sessions WHERE expires_at IS NOT NULL AND expires_at <= ?", s.timestamp())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return res.RowsAffected()
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
