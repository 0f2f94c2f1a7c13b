// Package auth signs the session token carried in the browser cookie.
//
// The cookie holds an HS256 JWT whose only custom claim is the opaque
// session token; the session itself lives server-side.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for cookies that fail signature, expiry or shape checks.
var ErrInvalidToken = errors.New("invalid session cookie")

// Claims wraps the registered claims with the server-side session token.
type Claims struct {
	jwt.RegisteredClaims
	SessionToken string `json:"sid"`
}

// GenerateToken signs sessionToken into a cookie value valid for ttl.
func GenerateToken(sessionToken string, secret []byte, ttl time.Duration) (string, error) {
	if sessionToken == "" {
		return "", fmt.Errorf("session token is required")
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		SessionToken: sessionToken,
	})

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign session cookie: %w", err)
	}
	return signed, nil
}

// SessionTokenFromCookie verifies the cookie value and returns the session token inside.
func SessionTokenFromCookie(value string, secret []byte) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(value, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.SessionToken == "" {
		return "", ErrInvalidToken
	}
	return claims.SessionToken, nil
}
