package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/authflow/internal/model"
	"github.com/iliyamo/authflow/internal/service"
)

// Resolver maps a presented bearer value to its owner and token row.
// *service.TokenIssuer satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, plain string) (model.User, model.AccessToken, error)
}

// Bearer resolves the Authorization header, runs the guards and stores the
// principal for the handler.  Rejections are answered with 401, except a
// missing ability which is 403; an expired token gets its own message.
func Bearer(res Resolver, guards ...Guard) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var p *service.Principal
			if raw, ok := bearerToken(c.Request()); ok {
				user, tok, err := res.Resolve(c.Request().Context(), raw)
				switch {
				case err == nil:
					p = &service.Principal{User: user, Token: tok}
				case !errors.Is(err, service.ErrInvalidToken):
					return err
				}
			}
			if err := RunGuards(c.Request(), p, guards...); err != nil {
				return rejected(c, err)
			}
			setPrincipal(c, p)
			return next(c)
		}
	}
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if len(auth) < 7 || !strings.EqualFold(auth[:7], "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(auth[7:])
	return raw, raw != ""
}

func rejected(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrTokenExpired):
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Token expired."})
	case errors.Is(err, service.ErrMissingAbility):
		return c.JSON(http.StatusForbidden, echo.Map{"message": "Invalid ability provided."})
	}
	return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Unauthenticated."})
}
