// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memoteca Contributors

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/memoteca/identity/internal/config"
	"github.com/memoteca/identity/internal/files"
	filespg "github.com/memoteca/identity/internal/files/postgres"
	"github.com/memoteca/identity/internal/httpapi"
	"github.com/memoteca/identity/internal/identity"
	idpg "github.com/memoteca/identity/internal/identity/postgres"
	"github.com/memoteca/identity/internal/logging"
	"github.com/memoteca/identity/internal/mailer"
	"github.com/memoteca/identity/internal/observability"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the identity service",
		Long: `Start the identity HTTP API and the observability server, and
run until interrupted.`,
		RunE: runServe,
	}

	cmd.Flags().String("listen-addr", defaults.ListenAddr, "API listen address")
	cmd.Flags().String("metrics-addr", defaults.MetricsAddr, "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("database-url", "", "PostgreSQL connection URL")
	cmd.Flags().String("log-format", defaults.LogFormat, "log format (json or text)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.SetDefault("identityd", cfg.LogFormat)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	slog.Info("starting identity service",
		"listen_addr", cfg.ListenAddr,
		"log_format", cfg.LogFormat,
	)

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "ping").Wrap(err)
	}
	slog.Info("connected to database")

	users := idpg.NewUserRepository(pool)
	fileRepo := filespg.NewFileRepository(pool)
	resolver := files.NewResolver(fileRepo)

	hasher := identity.NewArgon2idHasherWithParams(identity.Argon2Params{
		Time:    cfg.Argon2.Time,
		Memory:  cfg.Argon2.Memory,
		Threads: cfg.Argon2.Threads,
	})

	var dispatcher identity.NotificationDispatcher
	if cfg.SMTP.Addr != "" {
		dispatcher, err = mailer.NewSMTPDispatcher(mailer.Config{
			Addr:     cfg.SMTP.Addr,
			From:     cfg.SMTP.From,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			BaseURL:  cfg.SMTP.BaseURL,
		})
		if err != nil {
			return err
		}
	} else {
		slog.Warn("smtp not configured, using log dispatcher")
		dispatcher = mailer.NewLogDispatcher(nil)
	}

	issuer, err := identity.NewTokenIssuer([]byte(cfg.Token.Secret), cfg.Token.TTL)
	if err != nil {
		return err
	}

	registrations, err := identity.NewRegistrationService(users, resolver, dispatcher, hasher)
	if err != nil {
		return err
	}
	verifications, err := identity.NewVerificationService(users)
	if err != nil {
		return err
	}
	resets, err := identity.NewPasswordResetService(users, dispatcher, hasher)
	if err != nil {
		return err
	}
	federation, err := identity.NewFederationService(users, issuer)
	if err != nil {
		return err
	}

	// Uploads need object storage; without a bucket the file endpoints are
	// disabled but attachment resolution keeps working.
	var fileSvc *files.Service
	if cfg.S3.Bucket != "" {
		store, storeErr := files.NewS3Store(ctx, files.S3Config{
			Region:    cfg.S3.Region,
			Bucket:    cfg.S3.Bucket,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		})
		if storeErr != nil {
			return storeErr
		}
		fileSvc, err = files.NewService(fileRepo, store)
		if err != nil {
			return err
		}
	} else {
		slog.Warn("object storage not configured, file endpoints disabled")
	}

	api, err := httpapi.NewServer(registrations, verifications, resets, federation, issuer, users, fileSvc, slog.Default())
	if err != nil {
		return err
	}

	// Start observability server if configured
	var obsServer *observability.Server
	if cfg.MetricsAddr != "" {
		obsServer = observability.NewServer(cfg.MetricsAddr, func() bool {
			pingCtx, pingCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer pingCancel()
			return pool.Ping(pingCtx) == nil
		})
		obsErrChan, obsErr := obsServer.Start()
		if obsErr != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(obsErr)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		slog.Info("observability server started", "addr", obsServer.Addr())
	}

	apiServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		if serveErr := apiServer.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			errChan <- serveErr
		}
	}()

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Identity service started")
	slog.Info("identity service ready", "listen_addr", cfg.ListenAddr)

	// Wait for shutdown signal or error
	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case err := <-errChan:
		return oops.Code("API_SERVER_FAILED").Wrap(err)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	// Graceful shutdown
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("error stopping API server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}

	slog.Info("shutdown complete")
	return nil
}

// monitorServerErrors monitors a server's error channel and cancels the
// context on error, so a failed server triggers a full graceful shutdown.
// It exits when an error is received, the channel is closed, or the context
// is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			// Channel closed, server stopped gracefully
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
		// Context cancelled, exit monitoring
	}
}
