package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

func (r *UserRepository) UpsertRefreshToken(ctx context.Context, t RefreshToken) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at, jti)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET token_hash = EXCLUDED.token_hash,
		    expires_at = EXCLUDED.expires_at,
		    jti = EXCLUDED.jti,
		    created_at = NOW()
	`, t.UserID, t.TokenHash, t.ExpiresAt, t.JTI)
	return err
}

func (r *UserRepository) FindRefreshToken(ctx context.Context, jti string) (*RefreshToken, error) {
	var t RefreshToken
	err := r.DB.QueryRow(ctx, `
		SELECT id, user_id, token_hash, jti, expires_at, created_at
		FROM refresh_tokens
		WHERE jti = $1
	`, jti).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.JTI, &t.ExpiresAt, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *UserRepository) RotateRefreshToken(ctx context.Context, oldJTI string, next RefreshToken) (bool, error) {
	tag, err := r.DB.Exec(ctx, `
		UPDATE refresh_tokens
		SET token_hash = $3,
		    jti = $4,
		    expires_at = $5,
		    created_at = NOW()
		WHERE jti = $1 AND user_id = $2
	`, oldJTI, next.UserID, next.TokenHash, next.JTI, next.ExpiresAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *UserRepository) DeleteRefreshToken(ctx context.Context, jti string) (bool, error) {
	tag, err := r.DB.Exec(ctx, `DELETE FROM refresh_tokens WHERE jti = $1`, jti)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *UserRepository) RevokeRefreshSessions(ctx context.Context, userID string) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	return err
}
