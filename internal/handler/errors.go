package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/authflow/internal/logging"
	"github.com/iliyamo/authflow/internal/service"
)

// Response messages shared by the auth endpoints.
const (
	msgInvalidCredentials = "The provided credentials are incorrect."
	msgEmailNotVerified   = "Email not verified. Please check your email for the verification link."
	msgInvalidLink        = "Invalid or expired verification link."
	msgUnauthenticated    = "Unauthenticated."
	msgTokenExpired       = "Token expired."
	msgMissingAbility     = "Invalid ability provided."
	msgInvalidBody        = "Invalid request body."
	msgServerError        = "Server Error"
)

// writeError is the single place where service failures become HTTP
// responses.  Unknown errors are logged and reported as 500.
func writeError(c echo.Context, log logging.Logger, err error) error {
	if ve, ok := service.IsValidation(err); ok {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"message": ve.FirstMessage(),
			"errors":  ve.Fields,
		})
	}
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"message": msgInvalidCredentials,
			"errors":  map[string][]string{"email": {msgInvalidCredentials}},
		})
	case errors.Is(err, service.ErrEmailNotVerified):
		return c.JSON(http.StatusForbidden, echo.Map{"message": msgEmailNotVerified})
	case errors.Is(err, service.ErrInvalidLink):
		return c.JSON(http.StatusBadRequest, echo.Map{"message": msgInvalidLink})
	case errors.Is(err, service.ErrTokenExpired):
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": msgTokenExpired})
	case errors.Is(err, service.ErrMissingAbility):
		return c.JSON(http.StatusForbidden, echo.Map{"message": msgMissingAbility})
	case errors.Is(err, service.ErrUnauthenticated), errors.Is(err, service.ErrInvalidToken):
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": msgUnauthenticated})
	}
	log.Error(c.Request().Context(), "request failed",
		"method", c.Request().Method, "path", c.Path(), "error", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"message": msgServerError})
}
