package sec

import (
	"strings"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	t.Parallel()

	t.Run("string password", func(t *testing.T) {
		t.Parallel()
		hash, err := HashPassword("mypassword")
		require.NoError(t, err)
		assert.NotEmpty(t, hash)
		assert.NotContains(t, string(hash), "mypassword")

		cost, err := bcrypt.Cost(hash)
		require.NoError(t, err)
		assert.Equal(t, PasswordCost, cost)
	})

	t.Run("byte slice password", func(t *testing.T) {
		t.Parallel()
		hash, err := HashPassword([]byte("mypassword"))
		require.NoError(t, err)
		assert.NotEmpty(t, hash)
	})

	t.Run("salted", func(t *testing.T) {
		t.Parallel()
		first, err := HashPassword("mypassword")
		require.NoError(t, err)
		second, err := HashPassword("mypassword")
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("too long", func(t *testing.T) {
		t.Parallel()
		_, err := HashPassword(strings.Repeat("x", 73))
		require.Error(t, err)
		assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	})
}

func TestComparePassword(t *testing.T) {
	t.Parallel()

	// Pre-generate a hash for testing
	password := "correctpassword"
	hash, err := HashPassword(password)
	require.NoError(t, err)

	t.Run("correct password string", func(t *testing.T) {
		t.Parallel()
		err := ComparePassword(password, hash)
		assert.NoError(t, err)
	})

	t.Run("correct password bytes", func(t *testing.T) {
		t.Parallel()
		err := ComparePassword([]byte(password), hash)
		assert.NoError(t, err)
	})

	t.Run("incorrect password", func(t *testing.T) {
		t.Parallel()
		err := ComparePassword("wrongpassword", hash)
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("malformed hash", func(t *testing.T) {
		t.Parallel()
		err := ComparePassword(password, []byte("not a hash"))
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrUnauthorized)
		assert.Equal(t, connect.CodeInternal, connect.CodeOf(err))
	})
}

func TestUnusablePasswordHash(t *testing.T) {
	t.Parallel()

	hash, err := UnusablePasswordHash()
	require.NoError(t, err)

	for _, candidate := range []string{"", "password", string(hash)} {
		require.ErrorIs(t, ComparePassword(candidate, hash), ErrUnauthorized)
	}
}
