package api

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoPrincipal = errors.New("api: token carries no principal")

// TokenClaims is what the client reads from its own bearer token. The signature is not
// checked here; the services that issued the token verify it.
type TokenClaims struct {
	PrincipalID string
	BusinessID  string
	Role        string
	ExpiresAt   time.Time
}

// Expired reports whether the token is past its exp claim at now.
func (c TokenClaims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// ParseTokenClaims extracts the principal from a JWT bearer token. The principal is the
// user_id claim, falling back to sub.
func ParseTokenClaims(token string) (TokenClaims, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return TokenClaims{}, fmt.Errorf("parse token: %w", err)
	}

	out := TokenClaims{
		PrincipalID: claimString(claims, "user_id"),
		BusinessID:  claimString(claims, "business_id"),
		Role:        claimString(claims, "role"),
	}
	if out.PrincipalID == "" {
		out.PrincipalID, _ = claims.GetSubject()
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	if out.PrincipalID == "" {
		return out, ErrNoPrincipal
	}
	return out, nil
}

// claimString reads a string or numeric claim as text.
func claimString(claims jwt.MapClaims, key string) string {
	switch v := claims[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
