// internal/state/state.go
package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

/*
Anti-forgery state for the login dialog.

The state parameter is an HS256 JWT keyed by the app secret that carries
the canvas return path. When Facebook sends the user back, the token is
verified and its jti is consumed in a NonceStore so each token works once.
*/

const issuerName = "fbcanvas"

var (
	ErrInvalidState  = errors.New("state: invalid token")
	ErrStateReplayed = errors.New("state: token already used")
)

type Claims struct {
	ReturnPath string `json:"rp,omitempty"`
	jwt.RegisteredClaims
}

// NonceStore records single-use token ids.
type NonceStore interface {
	// Use marks id as consumed until expiresAt and returns true the first
	// time it is seen.
	Use(ctx context.Context, id string, expiresAt time.Time) (bool, error)
}

type Issuer struct {
	key   []byte
	ttl   time.Duration
	store NonceStore

	Now func() time.Time
}

// NewIssuer returns an Issuer. ttl <= 0 defaults to 10 minutes.
func NewIssuer(secret string, ttl time.Duration, store NonceStore) (*Issuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("state: secret is required")
	}
	if store == nil {
		return nil, errors.New("state: nonce store is required")
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Issuer{key: []byte(secret), ttl: ttl, store: store}, nil
}

func (i *Issuer) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}

// Issue mints a state token bound to returnPath.
func (i *Issuer) Issue(returnPath string) (string, error) {
	now := i.now()
	claims := &Claims{
		ReturnPath: returnPath,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuerName,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
}

// Consume verifies token and burns its jti. It returns the return path
// the token was issued for.
func (i *Issuer) Consume(ctx context.Context, token string) (string, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return i.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuerName),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if claims.ID == "" {
		return "", fmt.Errorf("%w: missing jti", ErrInvalidState)
	}
	first, err := i.store.Use(ctx, claims.ID, claims.ExpiresAt.Time)
	if err != nil {
		return "", err
	}
	if !first {
		return "", ErrStateReplayed
	}
	return claims.ReturnPath, nil
}
