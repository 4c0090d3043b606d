package web

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

var (
	ErrTokenExpired = errors.New("return token expired")
	ErrInvalidToken = errors.New("invalid return token")
)

// ReturnTokens signs the attempt id carried by 3ds return urls so the
// return endpoint cannot be pointed at someone else's attempt.
type ReturnTokens struct {
	secretKey []byte
	issuer    string
	ttl       time.Duration
}

func NewReturnTokens(secretKey, issuer string, ttl time.Duration) *ReturnTokens {
	return &ReturnTokens{
		secretKey: []byte(secretKey),
		issuer:    issuer,
		ttl:       ttl,
	}
}

func (t *ReturnTokens) Issue(attemptID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		ID:        attemptID,
		Issuer:    t.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		NotBefore: jwt.NewNumericDate(now),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secretKey)
}

// Verify returns the attempt id named by a token.
func (t *ReturnTokens) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secretKey, nil
	}, jwt.WithIssuer(t.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid || claims.ID == "" {
		return "", ErrInvalidToken
	}
	return claims.ID, nil
}
