// Package auth resolves bearer credentials into user identities.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid bearer token")

// Identity is an authenticated user and the tier they subscribe to.
type Identity struct {
	UserID string
	Tier   string
}

type claims struct {
	Tier string `json:"tier"`
	jwt.RegisteredClaims
}

// Authenticator validates HS256 tokens carrying "sub" and "tier" claims.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator returns an authenticator for secret. An empty secret disables authentication.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Resolve returns the identity carried by an Authorization header value. A missing
// credential resolves to nil (anonymous) without error.
func (a *Authenticator) Resolve(bearer string) (*Identity, error) {
	raw := strings.TrimSpace(bearer)
	if raw == "" {
		return nil, nil
	}
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		raw = strings.TrimSpace(raw[7:])
	}
	if len(a.secret) == 0 {
		return nil, fmt.Errorf("%w: authentication disabled", ErrInvalidToken)
	}

	var c claims
	token, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || c.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return &Identity{UserID: c.Subject, Tier: c.Tier}, nil
}

// IssueToken signs a token for userID and tier valid for ttl.
func (a *Authenticator) IssueToken(userID, tier string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Tier: tier,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(a.secret)
}
