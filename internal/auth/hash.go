package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
)

// HashString returns a hex-encoded SHA-256 hash for token/code storage.
func HashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// hashMatches compares a stored hash against the hash of a presented value
// in constant time.
func hashMatches(stored *string, presented string) bool {
	if stored == nil || *stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*stored), []byte(HashString(presented))) == 1
}

// randomSixDigitCode returns a uniformly distributed 000000-999999 code.
func randomSixDigitCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
