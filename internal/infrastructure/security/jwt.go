// Package security provides JWT token utilities
package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const (
	RoleSession = "session"
	RoleSysop   = "sysop"
)

var ErrInvalidToken = errors.New("invalid token")

// SessionClaims bind a bearer token to one filter session.
type SessionClaims struct {
	SessionID string `json:"sid,omitempty"`
	Dashboard string `json:"dashboard,omitempty"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateSessionToken signs a token for a filter session.
func GenerateSessionToken(sessionID, dashboard, secret string, ttl time.Duration) (string, error) {
	return sign(SessionClaims{SessionID: sessionID, Dashboard: dashboard, Role: RoleSession}, secret, ttl)
}

// GenerateSysopToken signs an admin token.
func GenerateSysopToken(secret string, ttl time.Duration) (string, error) {
	return sign(SessionClaims{Role: RoleSysop}, secret, ttl)
}

func sign(claims SessionClaims, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("empty jwt secret")
	}
	now := time.Now().UTC()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        GenerateULID(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign jwt: %w", err)
	}
	return signed, nil
}

// ValidateJWT parses an HS256 token and returns its claims.
func ValidateJWT(tokenString, secret string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
