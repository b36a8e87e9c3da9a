package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"authsystem/internal/database"
)

func (r *UserRepository) SetPendingTwoFactorSecret(ctx context.Context, userID, secret string, expires time.Time) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE users
		SET tmp_two_factor_secret = $2,
		    tmp_two_factor_secret_expiry_time = $3
		WHERE id = $1
	`, userID, secret, expires)
	return err
}

func (r *UserRepository) EnableTwoFactor(ctx context.Context, userID, secret string, codeHashes []string) (bool, error) {
	promoted := false
	err := database.WithTx(ctx, r.DB, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE users
			SET is_two_factor_enabled = TRUE,
			    two_factor_secret = tmp_two_factor_secret,
			    tmp_two_factor_secret = NULL,
			    tmp_two_factor_secret_expiry_time = NULL
			WHERE id = $1 AND tmp_two_factor_secret = $2
		`, userID, secret)
		if err != nil {
			return fmt.Errorf("promote secret: %w", err)
		}
		if tag.RowsAffected() != 1 {
			return nil
		}
		if err := replaceBackupCodes(ctx, tx, userID, codeHashes); err != nil {
			return err
		}
		promoted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return promoted, nil
}

func (r *UserRepository) DisableTwoFactor(ctx context.Context, userID string) error {
	return database.WithTx(ctx, r.DB, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			UPDATE users
			SET is_two_factor_enabled = FALSE,
			    two_factor_secret = NULL,
			    tmp_two_factor_secret = NULL,
			    tmp_two_factor_secret_expiry_time = NULL,
			    disable_2fa_otp = NULL,
			    disable_2fa_otp_expiry_time = NULL
			WHERE id = $1
		`, userID); err != nil {
			return fmt.Errorf("clear two-factor state: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM two_fa_backup_codes WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("delete backup codes: %w", err)
		}
		return nil
	})
}

func (r *UserRepository) SetDisableOTP(ctx context.Context, userID, otpHash string, expires time.Time) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE users
		SET disable_2fa_otp = $2,
		    disable_2fa_otp_expiry_time = $3
		WHERE id = $1
	`, userID, otpHash, expires)
	return err
}

func (r *UserRepository) SetRegenerateOTP(ctx context.Context, userID, otpHash string, expires time.Time) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE users
		SET regenerate_2fa_otp = $2,
		    regenerate_2fa_otp_expiry = $3
		WHERE id = $1
	`, userID, otpHash, expires)
	return err
}

func (r *UserRepository) ConsumeBackupCode(ctx context.Context, userID, codeHash string) (bool, error) {
	var id int64
	err := r.DB.QueryRow(ctx, `
		UPDATE two_fa_backup_codes
		SET used = TRUE, used_at = NOW()
		WHERE user_id = $1 AND code_hash = $2 AND used = FALSE
		RETURNING id
	`, userID, codeHash).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *UserRepository) ReplaceBackupCodes(ctx context.Context, userID string, codeHashes []string) error {
	return database.WithTx(ctx, r.DB, func(tx pgx.Tx) error {
		if err := replaceBackupCodes(ctx, tx, userID, codeHashes); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE users
			SET regenerate_2fa_otp = NULL,
			    regenerate_2fa_otp_expiry = NULL
			WHERE id = $1
		`, userID); err != nil {
			return fmt.Errorf("clear regenerate otp: %w", err)
		}
		return nil
	})
}

func replaceBackupCodes(ctx context.Context, tx pgx.Tx, userID string, codeHashes []string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM two_fa_backup_codes WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete backup codes: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO two_fa_backup_codes (user_id, code_hash)
		SELECT $1::uuid, unnest($2::text[])
	`, userID, codeHashes); err != nil {
		return fmt.Errorf("insert backup codes: %w", err)
	}
	return nil
}
