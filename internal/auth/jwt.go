// Package auth is the messaging core's view of the external identity
// collaborator: a bearer credential resolves to a stable user id, or
// fails. Session issuance lives elsewhere; only HS256 validation (and
// a mint used by dev tooling and tests) is implemented here.
package auth

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrUnauthenticated = errors.New("unauthenticated")

type CustomClaims struct {
	UserID uuid.UUID `json:"user_id"`
	jwt.RegisteredClaims
}

// Resolver validates bearer credentials against the shared signing key.
type Resolver struct {
	key []byte
}

func NewResolver(authKey string) *Resolver {
	if authKey == "" {
		log.Printf("[AUTH] WARNING: AuthKey is empty!")
	}
	return &Resolver{key: []byte(authKey)}
}

// Resolve yields the user id bound to the credential, or
// ErrUnauthenticated.
func (r *Resolver) Resolve(credential string) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(credential, &CustomClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			errDetail := fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			log.Printf("[AUTH] VALIDATION FAILED: %v", errDetail)
			return nil, errDetail
		}
		return r.key, nil
	})

	if err != nil {
		log.Printf("[AUTH] JWT Parse Error: %v", err)
		return uuid.Nil, ErrUnauthenticated
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid || claims.UserID == uuid.Nil {
		log.Printf("[AUTH] VALIDATION FAILED: Token claims invalid or token not valid")
		return uuid.Nil, ErrUnauthenticated
	}

	return claims.UserID, nil
}

// GenerateToken mints a credential for the given user id. Used by the
// dev token endpoint and tests; production credentials come from the
// external session issuer.
func (r *Resolver) GenerateToken(userID uuid.UUID) (string, error) {
	expiresAt := time.Now().Add(24 * time.Hour)

	claims := &CustomClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "panello",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(r.key)
	if err != nil {
		log.Printf("[AUTH] ERROR: Failed to sign token for user %s: %v", userID, err)
		return "", err
	}

	return tokenString, nil
}
