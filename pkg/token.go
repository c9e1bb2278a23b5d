package pkg

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingSecret = errors.New("missing JWT secret")
	ErrInvalidToken  = errors.New("invalid or expired token")
)

// SessionClaims identifies a wallet that proved key ownership at login.
type SessionClaims struct {
	Address string `json:"address"`
	jwt.RegisteredClaims
}

// CreateToken signs an HS256 session token for address valid for ttl.
func CreateToken(secret []byte, address string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", ErrMissingSecret
	}

	now := time.Now()
	claims := SessionClaims{
		Address: strings.ToLower(address),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strings.ToLower(address),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken verifies tokenStr and returns its claims. Anything other than
// an unexpired HMAC-signed token with an address is ErrInvalidToken.
func ParseToken(secret []byte, tokenStr string) (*SessionClaims, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}

	parsed, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || claims.Address == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
