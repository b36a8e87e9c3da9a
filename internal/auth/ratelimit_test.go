package auth

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLimiter(t *testing.T) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &RateLimiter{Redis: client}, mr
}

func TestRateLimiter_DisabledNeverLimits(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	for _, rl := range []*RateLimiter{nil, {}} {
		assert.False(t, rl.IsIPBanned(ctx, "10.0.0.1"))
		require.NoError(t, rl.RegisterLoginFailure(ctx, "10.0.0.1"))

		lim, err := rl.Register2FAFailure(ctx, "user-1")
		require.NoError(t, err)
		assert.False(t, lim.Locked)

		lim, err = rl.RegisterRegisterAttempt(ctx, "a@x.com", "10.0.0.1")
		require.NoError(t, err)
		assert.False(t, lim.Locked)

		assert.Zero(t, rl.CooldownTTL(ctx, "cooldown"))
		rl.SetCooldown(ctx, "cooldown", EmailCooldown)
		rl.Reset2FA(ctx, "user-1")
	}
}

func TestAuditLogger_NilDropsEvents(t *testing.T) {
	t.Parallel()

	var a *AuditLogger
	require.NoError(t, a.Log(context.Background(), AuditEvent{EventType: AuditLogin}))
	events, err := a.Recent(context.Background(), "user-1", 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestRateLimiter_LoginBanStartsAtMax(t *testing.T) {
	t.Parallel()
	rl, mr := newRedisLimiter(t)
	ctx := context.Background()
	ip := "198.51.100.4"

	for i := 1; i < loginMaxAttempts; i++ {
		require.NoError(t, rl.RegisterLoginFailure(ctx, ip))
		assert.False(t, rl.IsIPBanned(ctx, ip), "failure %d", i)
	}
	require.NoError(t, rl.RegisterLoginFailure(ctx, ip))
	assert.True(t, rl.IsIPBanned(ctx, ip))

	mr.FastForward(loginBanTTL)
	assert.False(t, rl.IsIPBanned(ctx, ip))
}

func TestRateLimiter_TwoFactorCountAndCheckAgree(t *testing.T) {
	t.Parallel()
	rl, _ := newRedisLimiter(t)
	ctx := context.Background()

	for i := int64(1); i <= twoFAMaxAttempts; i++ {
		hit, err := rl.Register2FAFailure(ctx, "user-1")
		require.NoError(t, err)
		check, err := rl.TwoFactorLocked(ctx, "user-1")
		require.NoError(t, err)

		assert.Equal(t, i >= twoFAMaxAttempts, hit.Locked, "failure %d", i)
		assert.Equal(t, hit.Locked, check.Locked, "failure %d", i)
		assert.True(t, hit.Retry > 0)
	}

	rl.Reset2FA(ctx, "user-1")
	check, err := rl.TwoFactorLocked(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, check.Locked)
}

func TestRateLimiter_Cooldown(t *testing.T) {
	t.Parallel()
	rl, mr := newRedisLimiter(t)
	ctx := context.Background()

	assert.Zero(t, rl.CooldownTTL(ctx, "otp_cooldown:disable_2fa:user-1"))
	rl.SetCooldown(ctx, "otp_cooldown:disable_2fa:user-1", EmailCooldown)
	assert.Equal(t, EmailCooldown, rl.CooldownTTL(ctx, "otp_cooldown:disable_2fa:user-1"))

	mr.FastForward(EmailCooldown)
	assert.Zero(t, rl.CooldownTTL(ctx, "otp_cooldown:disable_2fa:user-1"))
}
