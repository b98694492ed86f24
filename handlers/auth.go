package handlers

import (
	"center/helpers"
	"center/interfaces"
	"center/service"

	"github.com/labstack/echo/v4"
)

// SubjectKey is the echo context key under which BearerAuth stores the token subject.
const SubjectKey = "subject"

// BearerAuth returns a middleware that requires "Authorization: Bearer <token>" accepted by validator.
//
// Errors: unauthenticated when the header is missing or the token is rejected; internal when the
// validator fails.
func BearerAuth(validator interfaces.TokenValidator) echo.MiddlewareFunc {
	helpers.NilPanic(validator, "handlers.auth.go: validator is required")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := helpers.GetBearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return service.NewUnauthenticatedError("missing bearer token", nil)
			}
			subject, valid, err := validator.ValidateToken(token)
			if err != nil {
				return service.NewInternalServerError("token validation failed", err)
			}
			if !valid {
				return service.NewUnauthenticatedError("invalid or expired token", nil)
			}
			c.Set(SubjectKey, subject)
			return next(c)
		}
	}
}
