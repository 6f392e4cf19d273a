// Package auth issues and validates the HMAC-signed JWTs agents use on the
// live-support REST and websocket surfaces.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken covers every verification failure; callers do not
// distinguish expired from malformed.
var ErrInvalidToken = errors.New("auth: invalid token")

// AgentClaims identifies an authenticated support agent.
type AgentClaims struct {
	AgentID  string `json:"agent_id"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// AgentUUID parses the agent id claim.
func (c *AgentClaims) AgentUUID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.AgentID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad agent id", ErrInvalidToken)
	}
	return id, nil
}

// Sign creates a token for an agent, valid for ttl.
func Sign(secret string, agentID uuid.UUID, fullName, role string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("auth: signing secret not configured")
	}
	now := time.Now()
	claims := AgentClaims{
		AgentID:  agentID.String(),
		FullName: fullName,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   agentID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("auth: signing failed: %w", err)
	}
	return signed, nil
}

// Parse verifies a token and returns the agent claims.
func Parse(secret, tokenString string) (*AgentClaims, error) {
	if secret == "" {
		return nil, ErrInvalidToken
	}
	claims := &AgentClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
