package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestIdentifyEmptyTokenIsAnonymous(t *testing.T) {
	v := NewVerifier(testSecret)

	identity, err := v.Identify("   ")
	require.NoError(t, err)
	require.True(t, identity.Anonymous)
	require.Nil(t, identity.Requester())
}

func TestIdentifyValidToken(t *testing.T) {
	v := NewVerifier(testSecret)
	userID := uuid.New()

	token := signToken(t, testSecret, jwt.RegisteredClaims{
		Subject:   userID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	identity, err := v.Identify(token)
	require.NoError(t, err)
	require.False(t, identity.Anonymous)
	require.Equal(t, userID, identity.UserID)
	require.NotNil(t, identity.Requester())
	require.Equal(t, userID, *identity.Requester())
}

func TestIdentifyRejectsBadSignature(t *testing.T) {
	v := NewVerifier(testSecret)

	token := signToken(t, "other-secret", jwt.RegisteredClaims{
		Subject:   uuid.New().String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	_, err := v.Identify(token)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestIdentifyRejectsExpiredToken(t *testing.T) {
	v := NewVerifier(testSecret)

	token := signToken(t, testSecret, jwt.RegisteredClaims{
		Subject:   uuid.New().String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})

	_, err := v.Identify(token)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestIdentifyRejectsNonUUIDSubject(t *testing.T) {
	v := NewVerifier(testSecret)

	token := signToken(t, testSecret, jwt.RegisteredClaims{
		Subject:   "user-42",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	_, err := v.Identify(token)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestIdentifyRejectsGarbage(t *testing.T) {
	v := NewVerifier(testSecret)

	_, err := v.Identify("not-a-jwt")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestIdentifyWithoutSecretRejectsTokens(t *testing.T) {
	v := NewVerifier("")

	identity, err := v.Identify("")
	require.NoError(t, err)
	require.True(t, identity.Anonymous)

	_, err = v.Identify("anything")
	require.ErrorIs(t, err, ErrUnauthorized)
}
