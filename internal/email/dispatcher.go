package email

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"authsystem/internal/auth"
	"authsystem/internal/i18n"
)

const sendTimeout = 30 * time.Second

// Transport delivers one rendered message.
type Transport interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

// Dispatcher renders auth emails in the caller's locale and sends them in the
// background. Failures are logged and never reach the caller.
type Dispatcher struct {
	transport Transport
	logger    *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

var _ auth.Mailer = (*Dispatcher)(nil)

func NewDispatcher(transport Transport, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{transport: transport, logger: logger}
}

func (d *Dispatcher) Enqueue(ctx context.Context, e auth.Email) {
	content := Render(i18n.FromContext(ctx), e)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warn("email: dispatcher closed, dropping message", "kind", e.Kind)
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	// The request context ends with the response; keep its values only.
	base := context.WithoutCancel(ctx)
	go func() {
		defer d.wg.Done()
		sendCtx, cancel := context.WithTimeout(base, sendTimeout)
		defer cancel()
		if err := d.transport.Send(sendCtx, e.To, content.Subject, content.Text, content.HTML); err != nil {
			d.logger.Error("email: send failed", "kind", e.Kind, "err", err)
			return
		}
		d.logger.Debug("email: sent", "kind", e.Kind)
	}()
}

// Close stops accepting messages and waits for in-flight sends or ctx.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Render picks the localized template for an auth email.
func Render(locale string, e auth.Email) i18n.EmailContent {
	minutes := int(e.TTL.Round(time.Minute) / time.Minute)
	switch e.Kind {
	case auth.EmailPasswordReset:
		return i18n.PasswordResetEmail(locale, e.Name, e.Link, minutes)
	case auth.EmailDisableTwoFactor:
		return i18n.DisableTwoFactorEmail(locale, e.Name, e.Code, minutes)
	case auth.EmailRegenerateBackupCodes:
		return i18n.RegenerateBackupCodesEmail(locale, e.Name, e.Code, minutes)
	default:
		return i18n.VerificationEmail(locale, e.Name, e.Code, minutes)
	}
}
