package service

import (
	"errors"

	"center/helpers"
	"center/interfaces"

	"github.com/golang-jwt/jwt/v5"
)

// jwtValidator implements interfaces.TokenValidator. It accepts HS256 tokens signed with the shared secret
// that carry an exp claim in the future relative to the injected TimeProvider. Used by the HTTP gateway.
type jwtValidator struct {
	secret       []byte
	timeProvider interfaces.TimeProvider
	parser       *jwt.Parser
}

// NewJWTValidator creates a TokenValidator for HMAC-SHA256 tokens. Panics on nil secret or timeProvider.
//
// Parameters: secret: shared HMAC key (config jwt_secret); timeProvider: source of current time for exp/nbf checks.
//
// Called from cmd/main when jwt_secret is configured.
func NewJWTValidator(secret []byte, timeProvider interfaces.TimeProvider) interfaces.TokenValidator {
	v := &jwtValidator{
		secret:       helpers.NilPanic(secret, "service.validator.go: secret is required"),
		timeProvider: helpers.NilPanic(timeProvider, "service.validator.go: time provider is required"),
	}
	v.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.timeProvider.Now),
	)
	return v
}

// ValidateToken verifies signature and expiry.
//
// Returns: (subject, true, nil) for a valid token; ("", false, nil) for a malformed, forged or expired one;
// ("", false, err) only when the claims cannot be read after a successful parse.
//
// Called from handlers.BearerAuth.
func (v *jwtValidator) ValidateToken(token string) (string, bool, error) {
	if token == "" {
		return "", false, nil
	}
	var claims jwt.RegisteredClaims
	parsed, err := v.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", false, nil
	}
	subject, err := claims.GetSubject()
	if err != nil {
		return "", false, errors.Join(errors.New("read subject claim"), err)
	}
	return subject, true, nil
}
