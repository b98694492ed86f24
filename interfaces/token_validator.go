package interfaces

// TokenValidator validates bearer tokens presented to the HTTP gateway.
//
// Implemented by service.jwtValidator. Called from handlers.BearerAuth for every /v1 request when a
// secret is configured.
//
//go:generate moq -stub -out mock/token_validator.go -pkg mock . TokenValidator
type TokenValidator interface {
	// ValidateToken verifies the token signature and expiry.
	// Returns: (subject, true, nil) for a valid token; ("", false, nil) for an invalid or expired one;
	// ("", false, err) only on internal failure.
	ValidateToken(token string) (subject string, ok bool, err error)
}
