package auth_test

import (
	"testing"

	auth "github.com/goliatone/go-authgate"
	"github.com/stretchr/testify/assert"
)

func TestHashPassword(t *testing.T) {
	t.Run("hashes a password", func(t *testing.T) {
		hash, err := auth.HashPassword("secret-password")

		assert.NoError(t, err)
		assert.NotEmpty(t, hash)
		assert.NotEqual(t, "secret-password", hash)
	})

	t.Run("rejects the empty string", func(t *testing.T) {
		_, err := auth.HashPassword("")
		assert.ErrorIs(t, err, auth.ErrNoEmptyString)
	})
}

func TestComparePasswordAndHash(t *testing.T) {
	hash, err := auth.HashPassword("secret-password")
	assert.NoError(t, err)

	t.Run("matches the original password", func(t *testing.T) {
		assert.NoError(t, auth.ComparePasswordAndHash("secret-password", hash))
	})

	t.Run("rejects a different password", func(t *testing.T) {
		err := auth.ComparePasswordAndHash("wrong-password", hash)
		assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)
	})

	t.Run("rejects garbage hashes", func(t *testing.T) {
		err := auth.ComparePasswordAndHash("secret-password", "not-a-bcrypt-hash")
		assert.Error(t, err)
	})
}

func TestRandomPasswordHash(t *testing.T) {
	h1 := auth.RandomPasswordHash()
	h2 := auth.RandomPasswordHash()

	assert.NotEmpty(t, h1)
	assert.NotEqual(t, h1, h2)
}
