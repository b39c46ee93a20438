package integration

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthenticationResult is the payload returned by the login endpoint.
type AuthenticationResult struct {
	Authenticated bool       `json:"authenticated"`
	Token         string     `json:"token,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	Message       string     `json:"message,omitempty"`
	// StatusCode is the HTTP status the result arrived with (200 or 401).
	StatusCode int `json:"-"`
}

// OK reports an authenticated result carrying a token.
func (r AuthenticationResult) OK() bool {
	return r.Authenticated && strings.TrimSpace(r.Token) != ""
}

// Expiry returns when the session ends: ExpiresAt when the server sent one,
// otherwise the exp claim of a JWT token. The zero time means unknown.
func (r AuthenticationResult) Expiry() time.Time {
	if r.ExpiresAt != nil && !r.ExpiresAt.IsZero() {
		return r.ExpiresAt.UTC()
	}
	exp, err := SessionExpiry(r.Token)
	if err != nil {
		return time.Time{}
	}
	return exp
}

// SessionExpiry reads the exp claim of a JWT session token without verifying
// its signature. Opaque tokens and tokens without exp return an error.
func SessionExpiry(token string) (time.Time, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return time.Time{}, fmt.Errorf("%w: session token must not be empty", ErrInvalidArgument)
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, fmt.Errorf("parse session token: %w", err)
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("read session token expiry: %w", err)
	}
	if exp == nil {
		return time.Time{}, fmt.Errorf("session token has no exp claim")
	}
	return exp.Time.UTC(), nil
}
