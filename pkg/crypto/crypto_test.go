package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret-password")
	require.NoError(t, err)

	require.True(t, VerifyPassword(hash, "secret-password"))
	require.False(t, VerifyPassword(hash, "incorrect"))
}

func TestHashPasswordRejectsShortPasswords(t *testing.T) {
	_, err := HashPassword("short")
	require.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken(32)
	require.NoError(t, err)
	require.Len(t, token, 43)

	other, err := GenerateToken(32)
	require.NoError(t, err)
	require.NotEqual(t, token, other)

	_, err = GenerateToken(0)
	require.Error(t, err)
}

func TestHashTokenIsDeterministic(t *testing.T) {
	require.Equal(t, HashToken("abc"), HashToken("abc"))
	require.NotEqual(t, HashToken("abc"), HashToken("abd"))
	require.Len(t, HashToken("abc"), 64)
}
