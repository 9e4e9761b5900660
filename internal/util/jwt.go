package util

import (
	"errors"
	"fmt"

	"github.com/dgrijalva/jwt-go"
)

// SupabaseClaims are the claims carried by a Supabase access token.
type SupabaseClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.StandardClaims
}

// ValidateJWT parses an HS256 token signed with secret and returns its claims.
func ValidateJWT(tokenString, secret string) (*SupabaseClaims, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is not configured")
	}
	claims := &SupabaseClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token is not valid")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// SignJWT issues an HS256 token for subject. Used by local tooling and tests.
func SignJWT(subject, secret string, expiresAt int64) (string, error) {
	claims := &SupabaseClaims{
		Role: "authenticated",
		StandardClaims: jwt.StandardClaims{
			Subject:   subject,
			ExpiresAt: expiresAt,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
