package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret-key-for-testing")

func TestGenerateAdminJWT(t *testing.T) {
	token, expiresAt, err := GenerateAdminJWT(testSecret)
	require.NoError(t, err)

	assert.NotEmpty(t, token)
	assert.Greater(t, expiresAt, time.Now().Unix())
	assert.LessOrEqual(t, expiresAt, time.Now().Add(adminTokenTTL).Unix())
}

func TestValidateAdminJWT(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		token, _, err := GenerateAdminJWT(testSecret)
		require.NoError(t, err)

		assert.NoError(t, ValidateAdminJWT(token, testSecret))
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, _, err := GenerateAdminJWT(testSecret)
		require.NoError(t, err)

		assert.Error(t, ValidateAdminJWT(token, []byte("different-secret")))
	})

	t.Run("garbage token", func(t *testing.T) {
		assert.Error(t, ValidateAdminJWT("not.a.token", testSecret))
	})

	t.Run("expired token", func(t *testing.T) {
		claims := jwt.MapClaims{
			"sub": "admin",
			"exp": time.Now().Add(-time.Minute).Unix(),
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
		require.NoError(t, err)

		assert.Error(t, ValidateAdminJWT(token, testSecret))
	})

	t.Run("wrong subject", func(t *testing.T) {
		claims := jwt.MapClaims{
			"sub": "somebody-else",
			"exp": time.Now().Add(time.Minute).Unix(),
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
		require.NoError(t, err)

		assert.Error(t, ValidateAdminJWT(token, testSecret))
	})

	t.Run("rejects non-HMAC signing method", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "admin"})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		assert.Error(t, ValidateAdminJWT(signed, testSecret))
	})
}
