package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"authsystem/internal/database"
)

const pgUniqueViolation = "23505"

const userColumns = `id, name, email, password, is_active, is_super_user, registration_date,
	last_login, last_login_method, last_ip, last_browser,
	verification_code, verification_code_expiry_time, reset_password_token, reset_password_token_expiry_time,
	oauth_provider, oauth_id, oauth_access_token, oauth_refresh_token, oauth_token_expires_at,
	is_two_factor_enabled, two_factor_secret, tmp_two_factor_secret, tmp_two_factor_secret_expiry_time,
	disable_2fa_otp, disable_2fa_otp_expiry_time, regenerate_2fa_otp, regenerate_2fa_otp_expiry`

// UserRepository is the Postgres Store.
type UserRepository struct {
	DB database.DB
}

var _ Store = (*UserRepository)(nil)

func NewUserRepository(db database.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) CreateUser(ctx context.Context, u NewUser) (*User, error) {
	row := r.DB.QueryRow(ctx, `
		INSERT INTO users
		(id, name, email, password, is_active, verification_code, verification_code_expiry_time,
		 tmp_two_factor_secret, tmp_two_factor_secret_expiry_time)
		VALUES ($1, $2, $3, $4, FALSE, $5, $6, $7, $8)
		RETURNING `+userColumns,
		uuid.NewString(), u.Name, u.Email, u.PasswordHash, u.VerificationCode, u.VerificationCodeExpiry,
		u.TmpTwoFactorSecret, u.TmpTwoFactorExpiry)

	user, err := scanUser(row)
	if isUniqueViolation(err) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *UserRepository) FindUserByID(ctx context.Context, id string) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepository) FindUserByResetToken(ctx context.Context, tokenHash string) (*User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE reset_password_token = $1`, tokenHash)
}

func (r *UserRepository) findOne(ctx context.Context, query string, args ...any) (*User, error) {
	user, err := scanUser(r.DB.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

func (r *UserRepository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY registration_date DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *UserRepository) VerifyEmail(ctx context.Context, userID, codeHash string, at time.Time) (bool, error) {
	tag, err := r.DB.Exec(ctx, `
		UPDATE users
		SET is_active = TRUE,
		    verification_code = NULL,
		    verification_code_expiry_time = NULL,
		    last_login = $3
		WHERE id = $1 AND verification_code = $2
	`, userID, codeHash, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *UserRepository) RecordLogin(ctx context.Context, userID string, info LoginInfo) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE users
		SET last_login = $2, last_login_method = $3, last_ip = NULLIF($4, ''), last_browser = NULLIF($5, '')
		WHERE id = $1
	`, userID, info.At, info.Method, info.IP, info.UserAgent)
	return err
}

func (r *UserRepository) SetPasswordReset(ctx context.Context, userID, tokenHash string, expires time.Time) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE users
		SET reset_password_token = $1,
		    reset_password_token_expiry_time = $2
		WHERE id = $3
	`, tokenHash, expires, userID)
	return err
}

func (r *UserRepository) ResetPassword(ctx context.Context, userID, tokenHash, passwordHash string) (bool, error) {
	reset := false
	err := database.WithTx(ctx, r.DB, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE users
			SET password = $1,
			    reset_password_token = NULL,
			    reset_password_token_expiry_time = NULL
			WHERE id = $2 AND reset_password_token = $3
		`, passwordHash, userID, tokenHash)
		if err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		if tag.RowsAffected() != 1 {
			return nil
		}
		if _, err := tx.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("drop refresh session: %w", err)
		}
		reset = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return reset, nil
}

func (r *UserRepository) UpsertOAuthUser(ctx context.Context, id OAuthIdentity) (*User, error) {
	name := id.Name
	if name == "" {
		name = id.Email
	}

	var user *User
	err := database.WithTx(ctx, r.DB, func(tx pgx.Tx) error {
		var existing string
		err := tx.QueryRow(ctx, `
			SELECT id FROM users
			WHERE (oauth_provider = $1 AND oauth_id = $2) OR email = $3
			ORDER BY (oauth_provider = $1 AND oauth_id = $2) DESC NULLS LAST
			LIMIT 1
			FOR UPDATE
		`, id.Provider, id.Subject, id.Email).Scan(&existing)

		var row pgx.Row
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			row = tx.QueryRow(ctx, `
				INSERT INTO users
				(id, name, email, is_active, oauth_provider, oauth_id, oauth_access_token, oauth_refresh_token, oauth_token_expires_at)
				VALUES ($1, $2, $3, TRUE, $4, $5, $6, NULLIF($7, ''), $8)
				RETURNING `+userColumns,
				uuid.NewString(), name, id.Email, id.Provider, id.Subject, id.AccessToken, id.RefreshToken, nullTime(id.Expiry))
		case err != nil:
			return fmt.Errorf("find oauth user: %w", err)
		default:
			row = tx.QueryRow(ctx, `
				UPDATE users
				SET is_active = TRUE,
				    oauth_provider = $2,
				    oauth_id = $3,
				    oauth_access_token = $4,
				    oauth_refresh_token = COALESCE(NULLIF($5, ''), oauth_refresh_token),
				    oauth_token_expires_at = $6
				WHERE id = $1
				RETURNING `+userColumns,
				existing, id.Provider, id.Subject, id.AccessToken, id.RefreshToken, nullTime(id.Expiry))
		}

		user, err = scanUser(row)
		if err != nil {
			return fmt.Errorf("upsert oauth user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) UpdateOAuthTokens(ctx context.Context, userID string, id OAuthIdentity) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE users
		SET oauth_access_token = $2,
		    oauth_refresh_token = COALESCE(NULLIF($3, ''), oauth_refresh_token),
		    oauth_token_expires_at = $4
		WHERE id = $1
	`, userID, id.AccessToken, id.RefreshToken, nullTime(id.Expiry))
	return err
}

func (r *UserRepository) ClearOAuthSession(ctx context.Context, userID string) error {
	return database.WithTx(ctx, r.DB, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			UPDATE users
			SET oauth_access_token = NULL,
			    oauth_refresh_token = NULL,
			    oauth_token_expires_at = NULL
			WHERE id = $1
		`, userID); err != nil {
			return fmt.Errorf("clear oauth tokens: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("delete refresh tokens: %w", err)
		}
		return nil
	})
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		u                      User
		password               sql.NullString
		lastLogin              sql.NullTime
		lastLoginMethod        sql.NullString
		lastIP                 sql.NullString
		lastBrowser            sql.NullString
		verificationCode       sql.NullString
		verificationCodeExpiry sql.NullTime
		resetToken             sql.NullString
		resetExpiry            sql.NullTime
		oauthProvider          sql.NullString
		oauthID                sql.NullString
		oauthAccessToken       sql.NullString
		oauthRefreshToken      sql.NullString
		oauthExpiresAt         sql.NullTime
		twoFactorSecret        sql.NullString
		tmpSecret              sql.NullString
		tmpSecretExpiry        sql.NullTime
		disableOTP             sql.NullString
		disableOTPExpiry       sql.NullTime
		regenerateOTP          sql.NullString
		regenerateOTPExpiry    sql.NullTime
	)

	if err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&password,
		&u.IsActive,
		&u.IsSuperUser,
		&u.RegistrationDate,
		&lastLogin,
		&lastLoginMethod,
		&lastIP,
		&lastBrowser,
		&verificationCode,
		&verificationCodeExpiry,
		&resetToken,
		&resetExpiry,
		&oauthProvider,
		&oauthID,
		&oauthAccessToken,
		&oauthRefreshToken,
		&oauthExpiresAt,
		&u.TwoFactorEnabled,
		&twoFactorSecret,
		&tmpSecret,
		&tmpSecretExpiry,
		&disableOTP,
		&disableOTPExpiry,
		&regenerateOTP,
		&regenerateOTPExpiry,
	); err != nil {
		return nil, err
	}

	u.PasswordHash = nullStringPtr(password)
	u.LastLogin = nullTimePtr(lastLogin)
	u.LastLoginMethod = nullStringPtr(lastLoginMethod)
	u.LastIP = nullStringPtr(lastIP)
	u.LastBrowser = nullStringPtr(lastBrowser)
	u.VerificationCode = nullStringPtr(verificationCode)
	u.VerificationCodeExpiry = nullTimePtr(verificationCodeExpiry)
	u.ResetPasswordToken = nullStringPtr(resetToken)
	u.ResetPasswordExpiry = nullTimePtr(resetExpiry)
	u.OAuthProvider = nullStringPtr(oauthProvider)
	u.OAuthID = nullStringPtr(oauthID)
	u.OAuthAccessToken = nullStringPtr(oauthAccessToken)
	u.OAuthRefreshToken = nullStringPtr(oauthRefreshToken)
	u.OAuthTokenExpiresAt = nullTimePtr(oauthExpiresAt)
	u.TwoFactorSecret = nullStringPtr(twoFactorSecret)
	u.TmpTwoFactorSecret = nullStringPtr(tmpSecret)
	u.TmpTwoFactorExpiry = nullTimePtr(tmpSecretExpiry)
	u.DisableOTP = nullStringPtr(disableOTP)
	u.DisableOTPExpiry = nullTimePtr(disableOTPExpiry)
	u.RegenerateOTP = nullStringPtr(regenerateOTP)
	u.RegenerateOTPExpiry = nullTimePtr(regenerateOTPExpiry)
	return &u, nil
}

func nullStringPtr(ns sql.NullString) *string {
	if ns.Valid {
		return &ns.String
	}
	return nil
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
