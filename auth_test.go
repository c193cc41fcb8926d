package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHashPasswordRoundTrip(t *testing.T) {
	hash, err := hashPassword("s3cret")
	require.NoError(t, err)
	require.NotEqual(t, "s3cret", hash)

	require.True(t, comparePassword(hash, "s3cret"))
	require.False(t, comparePassword(hash, "wrong"))
}

func TestHashPasswordFreshSalt(t *testing.T) {
	h1, err := hashPassword("same-password")
	require.NoError(t, err)
	h2, err := hashPassword("same-password")
	require.NoError(t, err)

	// bcrypt embeds a fresh salt, so two hashes of the same input differ
	require.NotEqual(t, h1, h2)
	require.True(t, comparePassword(h1, "same-password"))
	require.True(t, comparePassword(h2, "same-password"))
}

func TestComparePasswordMalformedHash(t *testing.T) {
	// a corrupt stored hash must fail closed, never match
	require.False(t, comparePassword("not-a-bcrypt-hash", "anything"))
	require.False(t, comparePassword("", ""))
}

func TestAccessTokenRoundTrip(t *testing.T) {
	secret := []byte("unit-test-secret")
	token, err := createAccessToken(secret, "user-123", []string{"admin", "member"}, time.Hour)
	require.NoError(t, err)

	claims, err := parseToken(secret, token)
	require.NoError(t, err)
	require.Equal(t, "user-123", claims.Subject)
	require.Equal(t, []string{"admin", "member"}, claims.Roles)
	require.Empty(t, claims.Scope)
}

func TestTokenExpired(t *testing.T) {
	secret := []byte("unit-test-secret")
	token, err := createAccessToken(secret, "user-123", nil, -time.Minute)
	require.NoError(t, err)

	_, err = parseToken(secret, token)
	require.ErrorIs(t, err, errTokenExpired)
}

func TestTokenWrongKey(t *testing.T) {
	token, err := createAccessToken([]byte("key-one"), "user-123", nil, time.Hour)
	require.NoError(t, err)

	_, err = parseToken([]byte("key-two"), token)
	require.ErrorIs(t, err, errTokenSignature)
}

func TestTokenMalformed(t *testing.T) {
	_, err := parseToken([]byte("unit-test-secret"), "definitely.not.a-token")
	require.ErrorIs(t, err, errTokenMalformed)

	_, err = parseToken([]byte("unit-test-secret"), "")
	require.ErrorIs(t, err, errTokenMalformed)
}

func TestRefreshTokenScope(t *testing.T) {
	secret := []byte("unit-test-secret")
	token, err := createRefreshToken(secret, "user-123", 7*24*time.Hour)
	require.NoError(t, err)

	claims, err := parseToken(secret, token)
	require.NoError(t, err)
	require.Equal(t, "user-123", claims.Subject)
	require.Equal(t, scopeRefresh, claims.Scope)
}

func TestHasAnyRole(t *testing.T) {
	u := &User{Roles: []string{"project_manager"}}
	require.True(t, u.HasAnyRole("admin", "project_manager"))
	require.False(t, u.HasAnyRole("admin"))

	empty := &User{}
	require.False(t, empty.HasAnyRole("admin", "project_manager"))
}
