package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/authflow/internal/model"
	"github.com/iliyamo/authflow/internal/repository"
	"github.com/iliyamo/authflow/internal/utils"
)

// tokenName labels every token issued by the login and refresh flows.
const tokenName = "api-token"

// IssuedToken is the one-time view of a freshly issued bearer token.  The
// PlainText value is never recoverable afterwards.
type IssuedToken struct {
	ID        uint64    `json:"-"`
	PlainText string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Principal is the authenticated caller of a request: the resolved user
// and the token that was presented.
type Principal struct {
	User  model.User
	Token model.AccessToken
}

// TokenIssuer creates, resolves and revokes opaque bearer tokens.
type TokenIssuer struct {
	Tokens TokenStore
	Users  UserStore
	Now    func() time.Time
}

func NewTokenIssuer(tokens TokenStore, users UserStore) *TokenIssuer {
	return &TokenIssuer{Tokens: tokens, Users: users, Now: func() time.Time { return time.Now().UTC() }}
}

// Issue creates a token for userID that expires ttl from now.
func (i *TokenIssuer) Issue(ctx context.Context, userID uint64, abilities []string, ttl time.Duration) (IssuedToken, error) {
	secret, err := utils.NewTokenSecret()
	if err != nil {
		return IssuedToken{}, fmt.Errorf("generate token secret: %w", err)
	}
	if len(abilities) == 0 {
		abilities = []string{model.AbilityAll}
	}
	now := i.Now()
	row := model.AccessToken{
		UserID:    userID,
		Name:      tokenName,
		TokenHash: utils.HashTokenSecret(secret),
		Abilities: abilities,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	id, err := i.Tokens.Create(ctx, row)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("store token: %w", err)
	}
	return IssuedToken{ID: id, PlainText: utils.FormatPlainToken(id, secret), ExpiresAt: row.ExpiresAt}, nil
}

// RevokeAll destroys every token held by the user.
func (i *TokenIssuer) RevokeAll(ctx context.Context, userID uint64) error {
	if _, err := i.Tokens.DeleteAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("revoke user tokens: %w", err)
	}
	return nil
}

// RevokeCurrent destroys only the given token.
func (i *TokenIssuer) RevokeCurrent(ctx context.Context, tok model.AccessToken) error {
	if err := i.Tokens.Delete(ctx, tok.ID); err != nil {
		return fmt.Errorf("revoke token %d: %w", tok.ID, err)
	}
	return nil
}

// Resolve maps a presented plain token to its owner.  Expired tokens still
// resolve; rejecting them is the job of the calling guard.
func (i *TokenIssuer) Resolve(ctx context.Context, plain string) (model.User, model.AccessToken, error) {
	id, secret, err := utils.ParsePlainToken(plain)
	if err != nil {
		return model.User{}, model.AccessToken{}, ErrInvalidToken
	}
	tok, err := i.Tokens.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, model.AccessToken{}, ErrInvalidToken
		}
		return model.User{}, model.AccessToken{}, fmt.Errorf("load token: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(tok.TokenHash), []byte(utils.HashTokenSecret(secret))) != 1 {
		return model.User{}, model.AccessToken{}, ErrInvalidToken
	}
	user, err := i.Users.GetByID(ctx, tok.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, model.AccessToken{}, ErrInvalidToken
		}
		return model.User{}, model.AccessToken{}, fmt.Errorf("load token owner: %w", err)
	}
	// last_used_at is informational only.
	now := i.Now()
	if err := i.Tokens.Touch(ctx, tok.ID, now); err == nil {
		tok.LastUsedAt = &now
	}
	return user, tok, nil
}

// IsExpired reports whether now is past the token's expiry.
func (i *TokenIssuer) IsExpired(tok model.AccessToken) bool {
	return tok.ExpiredAt(i.Now())
}
