package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	adapthttp "weighttrack/internal/adapter/http"
	"weighttrack/internal/adapter/mail"
	"weighttrack/internal/app"
	"weighttrack/internal/domain"
	"weighttrack/internal/metrics"
)

const sessionPurgeInterval = time.Hour

func (c *cli) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.serve(cmd.Context())
		},
	}
}

func (c *cli) serve(ctx context.Context) error {
	cfg, log := c.cfg, c.log

	st, err := openStore(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	defer func() { _ = st.close() }()

	m, err := metrics.New()
	if err != nil {
		return err
	}

	resetSecret := cfg.ResetSecret
	if resetSecret == "" {
		if resetSecret, err = randomSecret(); err != nil {
			return err
		}
		log.Warn("RESET_SECRET not set; reset links will not survive a restart")
	}

	var mailer domain.Mailer = mail.NewLogMailer(log)
	if cfg.ResendAPIKey != "" {
		mailer = mail.NewResendMailer(cfg.ResendAPIKey, cfg.MailFrom, log)
	}

	oidcCfg, err := setupOIDC(ctx, c)
	if err != nil {
		return err
	}

	entries := app.NewEntryService(st.entries, m, log)
	svc := adapthttp.Services{
		Entries:  entries,
		Stats:    app.NewStatsService(st.entries, entries),
		Charts:   app.NewChartsService(st.entries, entries),
		Transfer: app.NewTransferService(st.entries, entries, m, log),
		Auth: app.NewAuthService(st.users, st.sessions,
			app.WithSessionTTL(cfg.SessionTTL),
			app.WithPasswordReset(mailer, resetSecret),
			app.WithAuthLogger(log),
		),
		Backup: st.backup,
	}

	h := adapthttp.New(svc, adapthttp.Options{
		WebDir:       cfg.WebDir,
		PublicURL:    cfg.PublicURL,
		BackupSecret: cfg.BackupSecret,
		SessionTTL:   cfg.SessionTTL,
		ForwardAuth:  cfg.ForwardAuth,
		OIDC:         oidcCfg,
		Metrics:      m,
		Log:          log,
	}).Handler()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctxShutdown, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go purgeSessions(ctxShutdown, c, svc.Auth)

	errChan := make(chan error, 1)
	go func() {
		log.Infow("listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctxShutdown.Done():
		log.Info("shutdown signal received")
	case err := <-errChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("http server shutdown", "error", err)
	}
	log.Info("http server stopped")
	return nil
}

func setupOIDC(ctx context.Context, c *cli) (adapthttp.OIDCConfig, error) {
	cfg := c.cfg
	if !cfg.OIDCEnabled() {
		return adapthttp.OIDCConfig{}, nil
	}
	provider, err := oidc.NewProvider(ctx, cfg.OIDCIssuer)
	if err != nil {
		return adapthttp.OIDCConfig{}, fmt.Errorf("oidc provider %s: %w", cfg.OIDCIssuer, err)
	}
	c.log.Infow("sso enabled", "issuer", cfg.OIDCIssuer)
	return adapthttp.OIDCConfig{
		Enabled:  true,
		Provider: provider,
		OAuth2Config: oauth2.Config{
			ClientID:     cfg.OIDCClientID,
			ClientSecret: cfg.OIDCClientSecret,
			RedirectURL:  cfg.OIDCRedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
	}, nil
}

// purgeSessions drops expired sessions until ctx is done.
func purgeSessions(ctx context.Context, c *cli, auth *app.AuthService) {
	t := time.NewTicker(sessionPurgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := auth.PurgeExpiredSessions(ctx); err != nil && ctx.Err() == nil {
				c.log.Warnw("purge expired sessions", "error", err)
			}
		}
	}
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
