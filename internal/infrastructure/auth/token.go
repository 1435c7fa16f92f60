// Package auth issues and verifies the HS256 bearer tokens that carry the user principal.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/shared"
)

// ErrInvalidToken is returned for any token that fails parsing or validation.
var ErrInvalidToken = shared.NewDomainError("auth", "Verify", shared.ErrUnauthorized, "invalid or expired token")

// Claims are the JWT claims; Subject holds the user id.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenManager signs and verifies tokens with a shared secret.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates a manager. The secret must not be empty.
func NewTokenManager(secret, issuer string, ttl time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("auth: empty jwt secret")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// Issue creates a token for user.
func (m *TokenManager) Issue(user shared.UserID) (string, error) {
	if !user.IsValid() {
		return "", shared.ErrInvalidUserID
	}
	now := m.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(user),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Verify parses token and returns its subject.
func (m *TokenManager) Verify(token string) (shared.UserID, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return "", shared.WrapError("auth", "Verify", shared.ErrUnauthorized, "invalid or expired token", err)
	}

	user := shared.UserID(claims.Subject)
	if !user.IsValid() {
		return "", ErrInvalidToken
	}
	return user, nil
}
