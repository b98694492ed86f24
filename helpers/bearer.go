package helpers

import "strings"

// bearerPrefix is matched case-insensitively, as RFC 6750 allows.
const bearerPrefix = "bearer "

// GetBearerToken extracts the token from an Authorization header value.
//
// Returns: (token, true) for "Bearer <token>"; ("", false) when the value is empty, uses another scheme
// or carries an empty token.
//
// Called from handlers.BearerAuth.
func GetBearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", false
	}
	return token, true
}
