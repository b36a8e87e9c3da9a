package auth

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var backupCodeFormat = regexp.MustCompile(`^[23456789ABCDEFGHJKMNPQRSTUVWXYZ]{4}-[23456789ABCDEFGHJKMNPQRSTUVWXYZ]{4}$`)

func TestGenerateBackupCodes(t *testing.T) {
	t.Parallel()

	codes, err := GenerateBackupCodes(BackupCodeCount)
	require.NoError(t, err)
	require.Len(t, codes, 10)

	seen := map[string]bool{}
	for _, c := range codes {
		assert.Regexp(t, backupCodeFormat, c)
		assert.False(t, seen[c], "duplicate code %s", c)
		seen[c] = true
	}
}

func TestNormalizeBackupCode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"ABCD-EFGH", "ABCD-EFGH", true},
		{"abcd-efgh", "ABCD-EFGH", true},
		{" abcd efgh ", "ABCD-EFGH", true},
		{"ABCDEFGH", "ABCD-EFGH", true},
		{"ABCD-EFG", "", false},
		{"ABCD-EFGHJ", "", false},
		{"ABC0-EFGH", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := NormalizeBackupCode(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestHashBackupCode_ScopedPerUser(t *testing.T) {
	t.Parallel()

	a := HashBackupCode("user-a", "ABCD-EFGH")
	b := HashBackupCode("user-b", "ABCD-EFGH")
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, HashBackupCode("user-a", "ABCD-EFGH"))
	assert.Len(t, a, 64)
}
