package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aipropiq/provisioning-service/internal/domain"
)

// ServiceTokenVerifier validates HS256 bearer tokens minted for the
// internal callers of this service (the login frontend and operator
// tooling). The shared secret is held at adapter level so the
// application layer stays crypto-library agnostic.
type ServiceTokenVerifier struct {
	secret []byte
}

func NewServiceTokenVerifier(secret string) (*ServiceTokenVerifier, error) {
	if secret == "" {
		return nil, errors.New("service token secret is required")
	}
	return &ServiceTokenVerifier{secret: []byte(secret)}, nil
}

// Verify parses and validates the token and returns its subject, which
// identifies the calling system in audit logs.
func (v *ServiceTokenVerifier) Verify(raw string) (string, error) {
	parsed, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(30*time.Second))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return "", domain.ErrUnauthorized
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token without subject", domain.ErrUnauthorized)
	}
	return claims.Subject, nil
}
