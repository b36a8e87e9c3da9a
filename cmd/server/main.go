package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"authsystem/internal/auth"
	"authsystem/internal/config"
	"authsystem/internal/database"
	"authsystem/internal/email"
	"authsystem/internal/logging"
	"authsystem/internal/oauth"
	redisx "authsystem/internal/redis"
	"authsystem/internal/server"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, logCloser, err := logging.Setup(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, err := redisx.New(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient == nil {
		logger.Warn("REDIS_URL not set: rate limiting and audit log are disabled")
	} else {
		defer redisClient.Close()
	}

	sender := email.NewSender(cfg.Email)
	if !sender.Enabled() {
		logger.Warn("email is not configured: messages will be dropped")
	}
	dispatcher := email.NewDispatcher(sender, logger)

	tokens := auth.NewTokenCodec(auth.TokenSettings{
		AccessSecret:  cfg.Tokens.AccessSecret,
		RefreshSecret: cfg.Tokens.RefreshSecret,
		AccessTTL:     cfg.Tokens.AccessTTL,
		RefreshTTL:    cfg.Tokens.RefreshTTL,
		PreAuthTTL:    cfg.Tokens.PreAuthTTL,
	})
	manager := auth.NewManager(
		auth.NewUserRepository(db),
		tokens,
		auth.NewBcryptHasher(),
		auth.NewTOTPService(cfg.TOTPIssuer),
		dispatcher,
		auth.Settings{
			VerificationCodeTTL: cfg.Expiry.VerificationCode,
			OTPTTL:              cfg.Expiry.OTP,
			ResetTokenTTL:       cfg.Expiry.ResetToken,
			PendingTOTPTTL:      cfg.Expiry.PendingTOTP,
			FrontendURL:         cfg.FrontendURL,
		},
	)
	manager.Audit = &auth.AuditLogger{Redis: redisClient, MaxLen: 1000}
	manager.Logger = logger

	deps := server.Deps{
		Auth:        manager,
		RateLimiter: &auth.RateLimiter{Redis: redisClient},
		DB:          db,
		Logger:      logger,
	}
	if cfg.Google.Enabled() {
		deps.Google = oauth.NewGoogle(cfg.Google)
	} else {
		logger.Warn("Google OAuth is not configured: /auth/google is disabled")
	}
	if redisClient != nil {
		deps.States = &oauth.RedisStateStore{Redis: redisClient}
	}
	api := server.NewServer(cfg, deps)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "err", err)
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Error("email dispatcher did not drain", "err", err)
	}
	return nil
}
