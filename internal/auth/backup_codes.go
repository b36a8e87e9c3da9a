package auth

import (
	"crypto/rand"
	"fmt"
	"strings"
)

const (
	// BackupCodeCount is the size of every generated batch.
	BackupCodeCount = 10

	backupCodeHalf = 4
	// no 0/O, 1/I/L
	backupCodeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"
)

// GenerateBackupCodes returns count distinct codes formatted XXXX-XXXX.
func GenerateBackupCodes(count int) ([]string, error) {
	if count <= 0 {
		count = BackupCodeCount
	}

	seen := make(map[string]struct{}, count)
	codes := make([]string, 0, count)
	for len(codes) < count {
		raw, err := randomCode(2 * backupCodeHalf)
		if err != nil {
			return nil, fmt.Errorf("generate backup code: %w", err)
		}
		code := raw[:backupCodeHalf] + "-" + raw[backupCodeHalf:]
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

// NormalizeBackupCode canonicalizes human input (case, whitespace, missing
// dash) into XXXX-XXXX. It reports false for anything that cannot be a code.
func NormalizeBackupCode(input string) (string, bool) {
	s := strings.ToUpper(strings.Join(strings.Fields(input), ""))
	s = strings.ReplaceAll(s, "-", "")
	if len(s) != 2*backupCodeHalf {
		return "", false
	}
	for _, r := range s {
		if !strings.ContainsRune(backupCodeAlphabet, r) {
			return "", false
		}
	}
	return s[:backupCodeHalf] + "-" + s[backupCodeHalf:], true
}

// HashBackupCode hashes a normalized code salted with its owner's id, so equal
// codes of different users never share a stored hash.
func HashBackupCode(userID, code string) string {
	return HashString(userID + ":" + code)
}

func hashBackupCodes(userID string, codes []string) []string {
	hashes := make([]string, len(codes))
	for i, c := range codes {
		hashes[i] = HashBackupCode(userID, c)
	}
	return hashes
}

func randomCode(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	// 256 is not a multiple of the alphabet size; reject the biased tail.
	limit := byte(256 - 256%len(backupCodeAlphabet))
	out := make([]byte, 0, length)
	for len(out) < length {
		for _, b := range buf {
			if b >= limit || len(out) == length {
				continue
			}
			out = append(out, backupCodeAlphabet[int(b)%len(backupCodeAlphabet)])
		}
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
	}
	return string(out), nil
}
