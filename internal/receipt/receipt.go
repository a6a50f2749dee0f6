// Package receipt signs the links that let a customer view one order
// without logging in.
package receipt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultTTL  = 30 * 24 * time.Hour
	tokenIssuer = "kuma-montessori"
	audience    = "order-receipt"
)

var ErrInvalidToken = errors.New("invalid receipt token")

type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string) (*Issuer, error) {
	if len(secret) < 32 {
		return nil, errors.New("receipt secret must be at least 32 characters")
	}
	return &Issuer{secret: []byte(secret), ttl: DefaultTTL, now: time.Now}, nil
}

// Issue returns an HS256 token whose subject is the order ID.
func (i *Issuer) Issue(orderID uuid.UUID) (string, error) {
	now := i.now()
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   orderID.String(),
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign receipt token: %w", err)
	}
	return signed, nil
}

// Verify returns the order ID carried by a valid, unexpired token.
func (i *Issuer) Verify(token string) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !parsed.Valid {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	orderID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return orderID, nil
}
