package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Alphabets for the friendly identifiers. The user hash appears in
// tracking URLs, the auth code is typed by hand into tracker apps, so
// it sticks to unambiguous uppercase.
const (
	hashAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	hashLength = 8
	codeLength = 5
)

// FriendlyHash generates the 8-character public user hash.
func FriendlyHash() (string, error) {
	return randomString(hashAlphabet, hashLength)
}

// FriendlyAuthCode generates the 5-character uppercase auth code.
func FriendlyAuthCode() (string, error) {
	return randomString(codeAlphabet, codeLength)
}

func randomString(alphabet string, length int) (string, error) {
	out := make([]byte, length)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}
