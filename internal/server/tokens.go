package server

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"scc-link-go/internal/contracts/qrlink"
	"scc-link-go/internal/platform/errors"
)

// TokenService signs and verifies the bearer tokens handed out on login.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService builds a token service using the provided secret.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New(errors.KindConfig, "tokens", "token secret must not be empty")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// Issue creates a signed token for the given user.
func (ts *TokenService) Issue(user qrlink.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":     fmt.Sprintf("%d", user.ID),
		"email":   user.Email,
		"profile": user.Profile,
		"iat":     now.Unix(),
		"exp":     now.Add(ts.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.secret)
	if err != nil {
		return "", errors.Wrap(errors.KindAuth, "issue", "failed to sign token", err)
	}
	return signed, nil
}

// Verify validates a token and extracts the subject email.
func (ts *TokenService) Verify(tokenString string) (string, error) {
	const op = "verify"

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ts.secret, nil
	})
	if err != nil {
		return "", errors.Wrap(errors.KindAuth, op, "failed to parse token", err)
	}
	if !token.Valid {
		return "", errors.New(errors.KindAuth, op, "invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New(errors.KindAuth, op, "invalid claims")
	}
	email, ok := claims["email"].(string)
	if !ok || email == "" {
		return "", errors.New(errors.KindAuth, op, "invalid email claim")
	}
	return email, nil
}
