package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("telegrambot", false, "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "telegrambot", claims.Service)
	assert.False(t, claims.Internal)
}

func TestTokenInternalClaim(t *testing.T) {
	token, err := GenerateToken("transcoder", true, "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token, "secret")
	require.NoError(t, err)
	assert.True(t, claims.Internal)
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken("telegrambot", false, "secret", time.Hour)
	require.NoError(t, err)

	_, err = ParseToken(token, "other-secret")
	assert.Error(t, err)
}

func TestTokenExpired(t *testing.T) {
	token, err := GenerateToken("telegrambot", false, "secret", -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(token, "secret")
	assert.Error(t, err)
}

func TestFriendlyHash(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		h, err := FriendlyHash()
		require.NoError(t, err)
		assert.Len(t, h, 8)
		for _, r := range h {
			assert.True(t, strings.ContainsRune(hashAlphabet, r), "unexpected rune %q", r)
		}
		seen[h] = true
	}
	// 32 draws from a 36^8 space colliding would mean broken randomness.
	assert.Len(t, seen, 32)
}

func TestFriendlyAuthCode(t *testing.T) {
	code, err := FriendlyAuthCode()
	require.NoError(t, err)
	assert.Len(t, code, 5)
	for _, r := range code {
		assert.True(t, strings.ContainsRune(codeAlphabet, r), "unexpected rune %q", r)
	}
}
