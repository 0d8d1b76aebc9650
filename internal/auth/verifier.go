// Package auth defines the identity-provider boundary consumed by the
// relay: an opaque credential goes in, a verified identity comes out.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any credential the provider rejects,
// including expired or malformed tokens.
var ErrInvalidToken = errors.New("invalid or expired token")

// Identity is the verified subject bound to a connection after
// successful authentication.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// TokenVerifier validates an opaque credential string. Implementations
// must honor the context deadline; verification against a remote
// provider is the one latency-bearing step in the relay.
type TokenVerifier interface {
	Verify(ctx context.Context, idToken string) (Identity, error)
}

// JWTVerifier validates HMAC-signed bearer tokens carrying uid, email
// and name claims.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(ctx context.Context, idToken string) (Identity, error) {
	if err := ctx.Err(); err != nil {
		return Identity{}, fmt.Errorf("token verification: %w", err)
	}

	token, err := jwt.Parse(idToken, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidToken
	}

	identity := Identity{
		UID:   stringClaim(claims, "uid"),
		Email: stringClaim(claims, "email"),
		Name:  stringClaim(claims, "name"),
	}
	if identity.UID == "" {
		// Fall back to the registered subject claim.
		identity.UID = stringClaim(claims, "sub")
	}
	if identity.UID == "" {
		return Identity{}, ErrInvalidToken
	}
	if identity.Name == "" {
		identity.Name = identity.Email
	}
	return identity, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if value, ok := claims[key].(string); ok {
		return value
	}
	return ""
}
