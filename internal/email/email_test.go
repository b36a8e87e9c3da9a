package email

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authsystem/internal/auth"
	"authsystem/internal/config"
	"authsystem/internal/i18n"
)

type recordingTransport struct {
	mu      sync.Mutex
	sent    []string
	subject []string
	err     error
	block   chan struct{}
}

func (r *recordingTransport) Send(ctx context.Context, to, subject, _, _ string) error {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, to)
	r.subject = append(r.subject, subject)
	return r.err
}

func TestDispatcher_SendsInBackgroundAndDrains(t *testing.T) {
	t.Parallel()

	tr := &recordingTransport{block: make(chan struct{})}
	d := NewDispatcher(tr, nil)

	ctx, cancel := context.WithCancel(i18n.WithLocale(context.Background(), "de"))
	d.Enqueue(ctx, auth.Email{Kind: auth.EmailVerification, To: "alice@x.com", Code: "123456", TTL: time.Hour})
	cancel()

	tr.mu.Lock()
	assert.Empty(t, tr.sent, "enqueue must not wait for delivery")
	tr.mu.Unlock()

	close(tr.block)
	require.NoError(t, d.Close(context.Background()))

	tr.mu.Lock()
	defer tr.mu.Unlock()
	assert.Equal(t, []string{"alice@x.com"}, tr.sent)
	assert.Equal(t, []string{"E-Mail verifizieren"}, tr.subject, "locale survives the request context")
}

func TestDispatcher_SwallowsFailures(t *testing.T) {
	t.Parallel()

	tr := &recordingTransport{err: errors.New("smtp down")}
	d := NewDispatcher(tr, nil)
	d.Enqueue(context.Background(), auth.Email{Kind: auth.EmailPasswordReset, To: "a@x.com", Link: "http://x"})
	require.NoError(t, d.Close(context.Background()))

	d.Enqueue(context.Background(), auth.Email{Kind: auth.EmailVerification, To: "late@x.com"})
	tr.mu.Lock()
	defer tr.mu.Unlock()
	assert.Equal(t, []string{"a@x.com"}, tr.sent, "closed dispatcher drops new messages")
}

func TestDispatcher_CloseHonorsDeadline(t *testing.T) {
	t.Parallel()

	tr := &recordingTransport{block: make(chan struct{})}
	defer close(tr.block)
	d := NewDispatcher(tr, nil)
	d.Enqueue(context.Background(), auth.Email{Kind: auth.EmailVerification, To: "a@x.com"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded)
}

func TestRender(t *testing.T) {
	t.Parallel()

	cases := []struct {
		kind auth.EmailKind
		want string
	}{
		{auth.EmailVerification, "Verify your email"},
		{auth.EmailPasswordReset, "Reset your password"},
		{auth.EmailDisableTwoFactor, "Code to disable two-factor authentication"},
		{auth.EmailRegenerateBackupCodes, "Code to regenerate your backup codes"},
	}
	for _, tc := range cases {
		got := Render("en", auth.Email{Kind: tc.kind, Code: "123456", Link: "http://x", TTL: 10 * time.Minute})
		assert.Equal(t, tc.want, got.Subject)
		assert.NotContains(t, got.Text, "{minutes}")
	}
}

func TestSender_NotConfigured(t *testing.T) {
	t.Parallel()

	s := NewSender(config.EmailConfig{})
	assert.False(t, s.Enabled())
	assert.ErrorIs(t, s.Send(context.Background(), "a@x.com", "s", "t", ""), ErrNotConfigured)
}

func TestSender_BuildsMultipartMessage(t *testing.T) {
	t.Parallel()

	s := NewSender(config.EmailConfig{Host: "smtp.example.com", Port: 587, From: "noreply@example.com"})
	msg, err := s.message("alice@x.com", "Subject", "plain", "<p>html</p>")
	require.NoError(t, err)
	to := msg.GetToString()
	require.Len(t, to, 1)
	assert.Contains(t, to[0], "alice@x.com")

	_, err = s.message("not an address", "Subject", "plain", "")
	assert.Error(t, err)
}
