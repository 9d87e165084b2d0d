package middleware

import (
	"net/http"
	"time"

	"github.com/iliyamo/authflow/internal/service"
)

// Guard is one step of the bearer pipeline.  It inspects the request and
// the resolved principal (nil when no valid token was presented) and
// returns nil to let the request through.
type Guard func(r *http.Request, p *service.Principal) error

// RequireToken rejects requests that carry no resolvable token.
func RequireToken(_ *http.Request, p *service.Principal) error {
	if p == nil {
		return service.ErrUnauthenticated
	}
	return nil
}

// NotExpired rejects a principal whose token is past its expiry.  It
// passes anonymous requests through; pair it with RequireToken.
func NotExpired(now func() time.Time) Guard {
	return func(_ *http.Request, p *service.Principal) error {
		if p != nil && p.Token.ExpiredAt(now()) {
			return service.ErrTokenExpired
		}
		return nil
	}
}

// RequireAbility rejects a principal whose token does not grant ability.
// It passes anonymous requests through; pair it with RequireToken.
func RequireAbility(ability string) Guard {
	return func(_ *http.Request, p *service.Principal) error {
		if p != nil && !p.Token.Can(ability) {
			return service.ErrMissingAbility
		}
		return nil
	}
}

// RunGuards applies guards in order and stops at the first rejection.
func RunGuards(r *http.Request, p *service.Principal, guards ...Guard) error {
	for _, g := range guards {
		if err := g(r, p); err != nil {
			return err
		}
	}
	return nil
}
