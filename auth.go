package main

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const scopeRefresh = "refresh_token"

// Token verification failures, classified so callers can tell tampering,
// expiry, and garbage apart. All of them deny access.
var (
	errTokenExpired   = errors.New("token expired")
	errTokenSignature = errors.New("token signature invalid")
	errTokenMalformed = errors.New("token malformed")
)

// authClaims is the claim set carried by both access and refresh tokens.
// Roles is a snapshot taken at issuance; authorization decisions read the
// live roles from the store instead of trusting it.
type authClaims struct {
	Roles []string `json:"roles,omitempty"`
	Scope string   `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

func hashPassword(p string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(p), bcrypt.DefaultCost)
	return string(b), err
}

// comparePassword fails closed: a corrupt or unparseable hash yields false.
func comparePassword(hash, p string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(p)) == nil
}

func createAccessToken(secret []byte, userID string, roles []string, ttl time.Duration) (string, error) {
	claims := authClaims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func createRefreshToken(secret []byte, userID string, ttl time.Duration) (string, error) {
	claims := authClaims{
		Scope: scopeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// parseToken verifies signature and expiry and returns the claims.
// Only HS256 is accepted; a token signed any other way is rejected before
// the key is even consulted.
func parseToken(secret []byte, tokenString string) (*authClaims, error) {
	claims := &authClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, errTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, errTokenSignature
		default:
			return nil, errTokenMalformed
		}
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errTokenMalformed
	}
	return claims, nil
}
