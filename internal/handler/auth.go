package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/authflow/internal/logging"
	"github.com/iliyamo/authflow/internal/middleware"
	"github.com/iliyamo/authflow/internal/model"
	"github.com/iliyamo/authflow/internal/service"
)

// requestTimeout bounds the store work done by a single request.
const requestTimeout = 5 * time.Second

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Auth *service.AuthService
	Log  logging.Logger
}

func NewAuthHandler(a *service.AuthService, log logging.Logger) *AuthHandler {
	return &AuthHandler{Auth: a, Log: log}
}

// ----- DTOs -----

type loginResp struct {
	User  model.User `json:"user"`
	Token string     `json:"token"`
}

type tokenResp struct {
	Token string `json:"token"`
}

// Register creates an unverified account.  No token is returned; the user
// must follow the emailed link before logging in.
func (h *AuthHandler) Register(c echo.Context) error {
	var in service.RegisterInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": msgInvalidBody})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if _, err := h.Auth.Register(ctx, in); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Registration successful. Please check your email to verify your account.",
	})
}

// Login exchanges credentials for the user's single active token.
func (h *AuthHandler) Login(c echo.Context) error {
	var in service.LoginInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": msgInvalidBody})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	user, tok, err := h.Auth.Login(ctx, in)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, loginResp{User: user, Token: tok.PlainText})
}

// Refresh revokes the presented token and returns a new one.
func (h *AuthHandler) Refresh(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return writeError(c, h.Log, service.ErrUnauthenticated)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	tok, err := h.Auth.Refresh(ctx, *p)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, tokenResp{Token: tok.PlainText})
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return writeError(c, h.Log, service.ErrUnauthenticated)
	}
	return c.JSON(http.StatusOK, p.User)
}

// Logout revokes only the token used for this request.
func (h *AuthHandler) Logout(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return writeError(c, h.Log, service.ErrUnauthenticated)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Auth.Logout(ctx, *p); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Logged out"})
}

func Dashboard(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"message": "Welcome to the protected dashboard!"})
}
