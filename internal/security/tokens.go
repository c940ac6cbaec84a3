// Package security validates the bearer tokens issued by the identity
// collaborator. The core trusts the id and role claims without re-validating
// credentials; token validation here is transport hygiene, not authentication.
package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"indicator-reporting/backend/internal/identity"
)

// ErrInvalidToken is returned when a token is malformed, expired, or signed
// with the wrong key.
var ErrInvalidToken = errors.New("invalid token")

// AccessClaims holds the JWT claims carried on access tokens. Subject is the
// principal id; Role is its asserted role.
type AccessClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// TokenProvider validates (and, for development tooling, issues) HS256 access
// tokens shared with the identity collaborator.
type TokenProvider struct {
	secret   []byte
	issuer   string
	audience string
}

// NewTokenProvider returns a TokenProvider using the shared HMAC secret.
func NewTokenProvider(secret []byte, issuer, audience string) *TokenProvider {
	return &TokenProvider{secret: secret, issuer: issuer, audience: audience}
}

// ValidateAccess parses and verifies the token and returns the principal it
// asserts. Returns ErrInvalidToken for any parse, signature, claim, or role
// failure.
func (p *TokenProvider) ValidateAccess(token string) (identity.Principal, error) {
	claims := &AccessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return p.secret, nil
	},
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return identity.Principal{}, ErrInvalidToken
	}
	role := identity.Role(claims.Role)
	if role != identity.RoleAdministrator && role != identity.RoleSteward {
		return identity.Principal{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return identity.Principal{}, ErrInvalidToken
	}
	return identity.Principal{ID: claims.Subject, Role: role}, nil
}

// IssueAccess issues a token for the principal, valid for ttl. Used by the
// seed command and tests; production tokens come from the identity
// collaborator.
func (p *TokenProvider) IssueAccess(principal identity.Principal, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.ID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: string(principal.Role),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}
