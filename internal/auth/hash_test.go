package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAdminKey(t *testing.T) {
	hash, err := HashAdminKey("my-admin-key")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(hash, "$2a$"), "expected bcrypt hash, got %s", hash)

	// Hashing is salted: two hashes of the same key differ.
	hash2, err := HashAdminKey("my-admin-key")
	require.NoError(t, err)
	assert.NotEqual(t, hash, hash2)
}

func TestVerifyAdminKey(t *testing.T) {
	hash, err := HashAdminKey("my-admin-key")
	require.NoError(t, err)

	assert.True(t, VerifyAdminKey(hash, "my-admin-key"))
	assert.False(t, VerifyAdminKey(hash, "wrong-key"))
	assert.False(t, VerifyAdminKey(hash, ""))
	assert.False(t, VerifyAdminKey("not-a-hash", "my-admin-key"))
}
