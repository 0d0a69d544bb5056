package auth

import (
	"context"
	"fmt"

	"follicle-match/internal/common/errors"

	"github.com/golang-jwt/jwt/v5"
)

// JWTVerifier validates HS256 tokens signed with a shared secret.
type JWTVerifier struct {
	secret []byte
	issuer string
}

func NewJWTVerifier(secret, issuer string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), issuer: issuer}
}

func (v *JWTVerifier) VerifyToken(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", errors.NewUnauthorizedError("empty bearer token")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return "", errors.NewUnauthorizedError(fmt.Sprintf("invalid token: %v", err))
	}
	if claims.Subject == "" {
		return "", errors.NewUnauthorizedError("token has no subject")
	}
	return claims.Subject, nil
}

// Sign issues a token for userID. Used by tests and local tooling.
func (v *JWTVerifier) Sign(userID string) (string, error) {
	claims := jwt.RegisteredClaims{Subject: userID, Issuer: v.issuer}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
