package middleware

// identity.go holds the helpers that move the authenticated principal in
// and out of the Echo context.  Handlers read it once and pass it on
// explicitly; nothing below the handler layer looks it up.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/authflow/internal/service"
)

const principalKey = "principal"

func setPrincipal(c echo.Context, p *service.Principal) {
	c.Set(principalKey, p)
}

// CurrentPrincipal returns the principal stored by Bearer, if any.
func CurrentPrincipal(c echo.Context) (*service.Principal, bool) {
	p, ok := c.Get(principalKey).(*service.Principal)
	return p, ok && p != nil
}
