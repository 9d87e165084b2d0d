package service

import (
	"time"

	"github.com/iliyamo/authflow/internal/model"
)

// SessionState is where a user stands in the authentication lifecycle.
type SessionState int

const (
	StateAnonymous SessionState = iota
	StatePendingVerification
	StateAuthenticatable
	StateAuthenticated
)

func (s SessionState) String() string {
	switch s {
	case StatePendingVerification:
		return "pending_verification"
	case StateAuthenticatable:
		return "authenticatable"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// StateOf derives the session state from a user and the token they hold,
// if any.  A nil user is anonymous; an expired token does not count.
func StateOf(user *model.User, tok *model.AccessToken, now time.Time) SessionState {
	switch {
	case user == nil:
		return StateAnonymous
	case !user.IsVerified():
		return StatePendingVerification
	case tok == nil || tok.UserID != user.ID || tok.ExpiredAt(now):
		return StateAuthenticatable
	default:
		return StateAuthenticated
	}
}
