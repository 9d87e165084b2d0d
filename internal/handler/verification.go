package handler

import (
	"context"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/authflow/internal/logging"
	"github.com/iliyamo/authflow/internal/service"
)

// VerificationHandler serves the signed verification link and the resend
// endpoint.
type VerificationHandler struct {
	Verify *service.VerificationService
	Log    logging.Logger
}

func NewVerificationHandler(v *service.VerificationService, log logging.Logger) *VerificationHandler {
	return &VerificationHandler{Verify: v, Log: log}
}

type resendReq struct {
	Email string `json:"email"`
}

func (r resendReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email,
			validation.Required.Error("The email field is required."),
			is.Email.Error("The email must be a valid email address."),
		),
	)
}

// VerifyEmail handles GET /email/verify/:id/:hash?signature=...
func (h *VerificationHandler) VerifyEmail(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	out, err := h.Verify.Verify(ctx, c.Param("id"), c.Param("hash"), c.QueryParam("signature"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if out == service.VerifyOutcomeAlreadyVerified {
		return c.JSON(http.StatusOK, echo.Map{"message": "Email already verified."})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Email verified successfully."})
}

// Resend re-sends the verification mail.  Unknown addresses get the same
// answer as unverified ones.
func (h *VerificationHandler) Resend(c echo.Context) error {
	var req resendReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": msgInvalidBody})
	}
	if err := req.Validate(); err != nil {
		return writeError(c, h.Log, service.FromValidation(err))
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	out, err := h.Verify.Resend(ctx, req.Email)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if out == service.ResendOutcomeAlreadyVerified {
		return c.JSON(http.StatusOK, echo.Map{"message": "Email already verified."})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "If your account exists, a new verification link has been sent."})
}
