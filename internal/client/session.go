package client

import (
	"encoding/json"
	"time"
)

// Keys under which the session is kept.
const (
	TokenKey = "token"
	UserKey  = "user"
)

// User is the account as the API returns it.
type User struct {
	ID              uint64     `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
}

// Session is a restored login: the bearer token and the cached user.
type Session struct {
	Token string
	User  User
}

func SaveSession(s Store, token string, u User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return err
	}
	if err := s.Set(TokenKey, token); err != nil {
		return err
	}
	return s.Set(UserKey, string(raw))
}

// LoadSession returns the stored session.  A missing key or an unreadable
// user means logged out and yields ok == false without an error.
func LoadSession(s Store) (Session, bool, error) {
	token, ok, err := s.Get(TokenKey)
	if err != nil || !ok || token == "" {
		return Session{}, false, err
	}
	raw, ok, err := s.Get(UserKey)
	if err != nil || !ok {
		return Session{}, false, err
	}
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return Session{}, false, nil
	}
	return Session{Token: token, User: u}, true, nil
}

// ClearSession removes both session keys.
func ClearSession(s Store) error {
	errTok := s.Remove(TokenKey)
	errUser := s.Remove(UserKey)
	if errTok != nil {
		return errTok
	}
	return errUser
}
