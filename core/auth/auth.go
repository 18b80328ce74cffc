package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

var (
	// ErrForbidden is returned when the token lacks the role a feed requires.
	ErrForbidden = errors.New("token lacks required role")
	// ErrExpired is returned when the token's exp claim is in the past.
	ErrExpired = errors.New("token expired")
)

// Credentials is the explicit session context handed to the loader and the push channel.
type Credentials struct {
	// Token is the bearer token issued by the backend.
	Token string `mapstructure:"token" default:""`
}

// Header returns the Authorization header value, or "" when no token is set.
func (c Credentials) Header() string {
	if c.Token == "" {
		return ""
	}
	return "Bearer " + c.Token
}

// Claims holds the fields the client reads from a token.
type Claims struct {
	Subject   string
	Roles     []string
	ExpiresAt time.Time
}

// ParseClaims reads claims without verifying the signature. Verification is the
// backend's job; the client only needs roles and expiry to decide what to open.
func ParseClaims(token string) (*Claims, error) {
	parser := gojwt.NewParser()
	parsed, _, err := parser.ParseUnverified(token, gojwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	mc := parsed.Claims.(gojwt.MapClaims)
	claims := &Claims{}

	if sub, err := mc.GetSubject(); err == nil {
		claims.Subject = sub
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	for _, key := range []string{"roles", "role", "authorities"} {
		if raw, ok := mc[key]; ok {
			claims.Roles = append(claims.Roles, rolesFrom(raw)...)
		}
	}

	return claims, nil
}

// HasRole reports whether the claims carry role.
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Expired reports whether the token is past its exp claim. Tokens without exp never expire.
func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// Authorize checks that creds may open a feed requiring requiredRole.
// An empty requiredRole allows any caller, including one without a token.
func Authorize(creds Credentials, requiredRole string, now time.Time) (*Claims, error) {
	if requiredRole == "" {
		return nil, nil
	}
	if creds.Token == "" {
		return nil, fmt.Errorf("%w: %s (no token)", ErrForbidden, requiredRole)
	}

	claims, err := ParseClaims(creds.Token)
	if err != nil {
		return nil, err
	}
	if claims.Expired(now) {
		return claims, ErrExpired
	}
	if !claims.HasRole(requiredRole) {
		return claims, fmt.Errorf("%w: %s", ErrForbidden, requiredRole)
	}
	return claims, nil
}

// rolesFrom accepts "A", "A,B", ["A","B"] and [{"name":"A"}].
func rolesFrom(raw any) []string {
	var out []string
	switch v := raw.(type) {
	case string:
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	case []any:
		for _, item := range v {
			switch r := item.(type) {
			case string:
				out = append(out, r)
			case map[string]any:
				for _, key := range []string{"name", "authority"} {
					if name, ok := r[key].(string); ok && name != "" {
						out = append(out, name)
						break
					}
				}
			}
		}
	}
	return out
}
