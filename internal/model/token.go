package model

import "time"

// AbilityAll grants every action.  It is the only ability issued today.
const AbilityAll = "*"

// AccessToken models a row in the `access_tokens` table.  The plain secret
// is handed to the client once; only its SHA-256 hex digest is kept.
// Revoking a token deletes its row.
type AccessToken struct {
	ID         uint64     // access_tokens.id
	UserID     uint64     // access_tokens.user_id
	Name       string     // access_tokens.name
	TokenHash  string     // access_tokens.token_hash
	Abilities  []string   // access_tokens.abilities (JSON array)
	ExpiresAt  time.Time  // access_tokens.expires_at
	LastUsedAt *time.Time // access_tokens.last_used_at (nullable)
	CreatedAt  time.Time  // access_tokens.created_at
}

// ExpiredAt reports whether the token is past its expiry at the given instant.
func (t AccessToken) ExpiredAt(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Can reports whether the token grants the given ability.
func (t AccessToken) Can(ability string) bool {
	for _, a := range t.Abilities {
		if a == AbilityAll || a == ability {
			return true
		}
	}
	return false
}
