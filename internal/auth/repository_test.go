package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*UserRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewUserRepository(mock), mock
}

const (
	consumeCodeQuery   = `(?s)UPDATE two_fa_backup_codes.*WHERE user_id = \$1 AND code_hash = \$2 AND used = FALSE.*RETURNING id`
	promoteSecretQuery = `(?s)UPDATE users.*two_factor_secret = tmp_two_factor_secret.*WHERE id = \$1 AND tmp_two_factor_secret = \$2`
	deleteCodesQuery   = `DELETE FROM two_fa_backup_codes WHERE user_id = \$1`
	insertCodesQuery   = `(?s)INSERT INTO two_fa_backup_codes.*unnest\(\$2::text\[\]\)`
	rotateRefreshQuery = `(?s)UPDATE refresh_tokens.*WHERE jti = \$1 AND user_id = \$2`
	resetPasswordQuery = `(?s)UPDATE users.*SET password = \$1.*WHERE id = \$2 AND reset_password_token = \$3`
	deleteRefreshQuery = `DELETE FROM refresh_tokens WHERE user_id = \$1`
)

func TestUserRepository_CreateUserMapsUniqueViolation(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`(?s)INSERT INTO users.*RETURNING`).
		WithArgs(pgxmock.AnyArg(), "Alice", "alice@x.com", "hash", "code", pgxmock.AnyArg(), "TMP", pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})

	_, err := repo.CreateUser(context.Background(), NewUser{
		Name: "Alice", Email: "alice@x.com", PasswordHash: "hash", VerificationCode: "code", TmpTwoFactorSecret: "TMP",
	})
	assert.ErrorIs(t, err, ErrEmailTaken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_VerifyEmailIsConditional(t *testing.T) {
	repo, mock := newMockRepo(t)
	q := `(?s)UPDATE users.*is_active = TRUE.*WHERE id = \$1 AND verification_code = \$2`

	mock.ExpectExec(q).WithArgs("u1", "code-hash", pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(q).WithArgs("u1", "code-hash", pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := repo.VerifyEmail(context.Background(), "u1", "code-hash", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.VerifyEmail(context.Background(), "u1", "code-hash", time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "code already consumed")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_ConsumeBackupCodeOnlyUnused(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(consumeCodeQuery).WithArgs("u1", "h1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectQuery(consumeCodeQuery).WithArgs("u1", "h1").
		WillReturnError(pgx.ErrNoRows)

	ok, err := repo.ConsumeBackupCode(context.Background(), "u1", "h1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ConsumeBackupCode(context.Background(), "u1", "h1")
	require.NoError(t, err)
	assert.False(t, ok, "a used code is not consumed twice")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_ConsumeBackupCodeError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(consumeCodeQuery).WithArgs("u1", "h1").WillReturnError(errors.New("db down"))

	ok, err := repo.ConsumeBackupCode(context.Background(), "u1", "h1")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestUserRepository_EnableTwoFactorInOneTransaction(t *testing.T) {
	repo, mock := newMockRepo(t)
	codes := []string{"hash-a", "hash-b"}

	mock.ExpectBegin()
	mock.ExpectExec(promoteSecretQuery).WithArgs("u1", "SECRET").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(deleteCodesQuery).WithArgs("u1").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(insertCodesQuery).WithArgs("u1", codes).WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	ok, err := repo.EnableTwoFactor(context.Background(), "u1", "SECRET", codes)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_EnableTwoFactorStaleSecret(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(promoteSecretQuery).WithArgs("u1", "OLD").WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectCommit()

	ok, err := repo.EnableTwoFactor(context.Background(), "u1", "OLD", []string{"hash-a"})
	require.NoError(t, err)
	assert.False(t, ok, "no codes are written when the secret moved on")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_EnableTwoFactorRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)
	codes := []string{"hash-a"}

	mock.ExpectBegin()
	mock.ExpectExec(promoteSecretQuery).WithArgs("u1", "SECRET").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(deleteCodesQuery).WithArgs("u1").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(insertCodesQuery).WithArgs("u1", codes).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	ok, err := repo.EnableTwoFactor(context.Background(), "u1", "SECRET", codes)
	assert.Error(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_ReplaceBackupCodesRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)
	codes := []string{"hash-c", "hash-d"}

	mock.ExpectBegin()
	mock.ExpectExec(deleteCodesQuery).WithArgs("u1").WillReturnResult(pgxmock.NewResult("DELETE", 10))
	mock.ExpectExec(insertCodesQuery).WithArgs("u1", codes).WillReturnError(errors.New("conn reset"))
	mock.ExpectRollback()

	err := repo.ReplaceBackupCodes(context.Background(), "u1", codes)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert backup codes")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_ReplaceBackupCodesCommits(t *testing.T) {
	repo, mock := newMockRepo(t)
	codes := []string{"hash-c"}

	mock.ExpectBegin()
	mock.ExpectExec(deleteCodesQuery).WithArgs("u1").WillReturnResult(pgxmock.NewResult("DELETE", 10))
	mock.ExpectExec(insertCodesQuery).WithArgs("u1", codes).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`(?s)UPDATE users.*regenerate_2fa_otp = NULL`).WithArgs("u1").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.ReplaceBackupCodes(context.Background(), "u1", codes))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_RotateRefreshTokenRequiresCurrentJTI(t *testing.T) {
	repo, mock := newMockRepo(t)
	next := RefreshToken{UserID: "u1", TokenHash: "hash-2", JTI: "jti-2", ExpiresAt: time.Now().Add(time.Hour)}

	mock.ExpectExec(rotateRefreshQuery).WithArgs("jti-1", "u1", "hash-2", "jti-2", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(rotateRefreshQuery).WithArgs("jti-1", "u1", "hash-2", "jti-2", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := repo.RotateRefreshToken(context.Background(), "jti-1", next)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.RotateRefreshToken(context.Background(), "jti-1", next)
	require.NoError(t, err)
	assert.False(t, ok, "a rotated jti cannot rotate again")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_ResetPasswordRequiresToken(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(resetPasswordQuery).WithArgs("new-hash", "u1", "token-hash").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(deleteRefreshQuery).WithArgs("u1").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectExec(resetPasswordQuery).WithArgs("new-hash", "u1", "token-hash").WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectCommit()

	ok, err := repo.ResetPassword(context.Background(), "u1", "token-hash", "new-hash")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ResetPassword(context.Background(), "u1", "token-hash", "new-hash")
	require.NoError(t, err)
	assert.False(t, ok, "the token was already redeemed")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UpsertOAuthUserLooksUpSubjectAndEmail(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT id FROM users.*\(oauth_provider = \$1 AND oauth_id = \$2\) OR email = \$3.*FOR UPDATE`).
		WithArgs(ProviderGoogle, "g-7", "gina@new.example").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("user-1"))
	mock.ExpectQuery(`(?s)UPDATE users.*WHERE id = \$1.*RETURNING`).
		WithArgs("user-1", ProviderGoogle, "g-7", "ga-2", "", pgxmock.AnyArg()).
		WillReturnError(errors.New("conn reset"))
	mock.ExpectRollback()

	_, err := repo.UpsertOAuthUser(context.Background(), OAuthIdentity{
		Provider: ProviderGoogle, Subject: "g-7", Email: "gina@new.example", AccessToken: "ga-2",
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet(), "an existing subject is updated, never inserted")
}

func TestUserRepository_UpsertOAuthUserInsertsUnknownIdentity(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT id FROM users.*FOR UPDATE`).
		WithArgs(ProviderGoogle, "g-8", "hal@x.com").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`(?s)INSERT INTO users.*RETURNING`).
		WithArgs(pgxmock.AnyArg(), "Hal", "hal@x.com", ProviderGoogle, "g-8", "ga-1", "gr-1", pgxmock.AnyArg()).
		WillReturnError(errors.New("conn reset"))
	mock.ExpectRollback()

	_, err := repo.UpsertOAuthUser(context.Background(), OAuthIdentity{
		Provider: ProviderGoogle, Subject: "g-8", Email: "hal@x.com", Name: "Hal", AccessToken: "ga-1", RefreshToken: "gr-1",
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
