package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/rlrepresentacoes/sigem/internal/api"
	"github.com/rlrepresentacoes/sigem/internal/api/metrics"
	"github.com/rlrepresentacoes/sigem/internal/api/middleware"
	"github.com/rlrepresentacoes/sigem/internal/core/navigation"
	"github.com/rlrepresentacoes/sigem/internal/core/service"
	mongodb "github.com/rlrepresentacoes/sigem/internal/infrastructure/db/mongo"
	"github.com/rlrepresentacoes/sigem/internal/infrastructure/db/postgres"
	redisdb "github.com/rlrepresentacoes/sigem/internal/infrastructure/db/redis"
	"github.com/rlrepresentacoes/sigem/internal/infrastructure/mail"
	"github.com/rlrepresentacoes/sigem/internal/infrastructure/queue"
)

const (
	sweepInterval   = time.Minute
	shutdownTimeout = 15 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	Long: `Run the SIGEM HTTP service.

Credentials live in MongoDB; profiles live in MongoDB or PostgreSQL depending on
PROFILE_STORE. Client-session tokens, revocations and the auth event channel
live in Redis. The service stops gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	cfg, log, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	in, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer in.close(ctx)

	if err := mongodb.EnsureIndexes(ctx, in.db); err != nil {
		return err
	}
	if in.pg != nil {
		if err := postgres.Migrate(ctx, in.pg); err != nil {
			return err
		}
	}

	catalog, err := navigation.Default()
	if err != nil {
		return fmt.Errorf("navigation catalog: %w", err)
	}

	bus := redisdb.NewAuthEventBus(in.redis, log)
	go func() {
		if err := bus.Run(ctx); err != nil {
			log.Error().Err(err).Msg("auth event bus stopped")
		}
	}()
	defer bus.Close()

	identity := service.NewIdentityService(
		mongodb.NewCredentialRepository(in.db),
		redisdb.NewRevocations(in.redis, cfg.Auth.TokenTTL),
		bus,
		mail.NewLogMailer(log, cfg.IsDevelopment()),
		service.IdentityOptions{
			JWTSecret:   cfg.JWTSecret,
			TokenTTL:    cfg.Auth.TokenTTL,
			RecoveryTTL: cfg.Auth.RecoveryTTL,
		},
		log,
	)
	resolver := metrics.InstrumentResolver(service.NewProfileResolver(in.profiles, log))

	registry := service.NewRegistry(
		identity,
		redisdb.NewSessionTokens(in.redis),
		resolver,
		in.profiles,
		service.RegistryOptions{
			Machine: service.MachineOptions{
				ResetRedirectURL: cfg.Auth.ResetRedirectURL,
				ResolveTimeout:   cfg.Auth.ResolveTimeout,
				OnStale:          metrics.StaleResolutionsTotal.Inc,
			},
			IdleTTL: cfg.Sessions.IdleTTL,
		},
		log,
	)
	defer registry.Close()

	dispatcher := queue.NewDispatcher(cfg.DispatcherWorkers, registry, log).WithDepth(metrics.ObserveQueueDepth)
	dispatcher.Start(ctx)
	registry.Start(dispatcher)
	go registry.RunSweeper(ctx, sweepInterval)
	metrics.RegisterActiveSessions(registry.Count)

	e := api.NewRouter(api.Deps{
		Sessions: registry,
		Catalog:  catalog,
		Cookie: middleware.SessionOptions{
			Cookie: cfg.Sessions.Cookie,
			Secure: !cfg.IsDevelopment(),
		},
		Health: in.dependencies(),
		Log:    log,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
