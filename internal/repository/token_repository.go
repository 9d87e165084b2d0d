package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/authflow/internal/model"
)

// TokenRepo persists bearer tokens.  Only the SHA-256 hash of the secret is
// stored; revoking a token deletes its row.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Create inserts a token row and returns its id.
func (r *TokenRepo) Create(ctx context.Context, t model.AccessToken) (uint64, error) {
	abilities, err := json.Marshal(t.Abilities)
	if err != nil {
		return 0, fmt.Errorf("encode abilities: %w", err)
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO access_tokens (user_id, name, token_hash, abilities, expires_at) VALUES (?,?,?,?,?)",
		t.UserID, t.Name, t.TokenHash, string(abilities), t.ExpiresAt)
	if err != nil {
		return 0, fmt.Errorf("insert token: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert token: %w", err)
	}
	return uint64(id), nil
}

// GetByID loads a token row regardless of its expiry; callers decide what
// an expired token means.
func (r *TokenRepo) GetByID(ctx context.Context, id uint64) (model.AccessToken, error) {
	var (
		t         model.AccessToken
		abilities string
		lastUsed  sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,user_id,name,token_hash,abilities,expires_at,last_used_at,created_at FROM access_tokens WHERE id=? LIMIT 1",
		id).Scan(&t.ID, &t.UserID, &t.Name, &t.TokenHash, &abilities, &t.ExpiresAt, &lastUsed, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.AccessToken{}, ErrNotFound
		}
		return model.AccessToken{}, fmt.Errorf("select token: %w", err)
	}
	if err := json.Unmarshal([]byte(abilities), &t.Abilities); err != nil {
		return model.AccessToken{}, fmt.Errorf("decode abilities: %w", err)
	}
	if lastUsed.Valid {
		lu := lastUsed.Time
		t.LastUsedAt = &lu
	}
	return t, nil
}

// Delete removes a single token.
func (r *TokenRepo) Delete(ctx context.Context, id uint64) error {
	if _, err := r.DB.ExecContext(ctx, "DELETE FROM access_tokens WHERE id=?", id); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// DeleteAllForUser removes every token owned by the user and reports how
// many were removed.
func (r *TokenRepo) DeleteAllForUser(ctx context.Context, userID uint64) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM access_tokens WHERE user_id=?", userID)
	if err != nil {
		return 0, fmt.Errorf("delete user tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete user tokens: %w", err)
	}
	return n, nil
}

// Touch records the last time a token authenticated a request.
func (r *TokenRepo) Touch(ctx context.Context, id uint64, at time.Time) error {
	if _, err := r.DB.ExecContext(ctx, "UPDATE access_tokens SET last_used_at=? WHERE id=?", at, id); err != nil {
		return fmt.Errorf("touch token: %w", err)
	}
	return nil
}
