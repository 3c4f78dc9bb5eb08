package token

import (
	"math/rand/v2"
	"strings"
)

const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

const prefix = "t-"

const RandomLength = 24

const Length = len(prefix) + RandomLength

// Generate returns a fresh opaque token.
// Tokens only need to avoid collisions, they are not secrets.
func Generate() string {
	var b strings.Builder
	b.Grow(Length)
	b.WriteString(prefix)
	for range RandomLength {
		b.WriteByte(alphabet[rand.IntN(len(alphabet))])
	}
	return b.String()
}

// Valid reports whether token has the shape of a generated token
func Valid(token string) bool {
	if len(token) != Length || !strings.HasPrefix(token, prefix) {
		return false
	}
	for _, char := range token[len(prefix):] {
		if !strings.ContainsRune(alphabet, char) {
			return false
		}
	}
	return true
}
