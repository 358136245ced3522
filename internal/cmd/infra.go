package cmd

import (
	"context"
	"database/sql"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/rlrepresentacoes/sigem/internal/api/handler"
	"github.com/rlrepresentacoes/sigem/internal/core/ports"
	mongodb "github.com/rlrepresentacoes/sigem/internal/infrastructure/db/mongo"
	"github.com/rlrepresentacoes/sigem/internal/infrastructure/db/postgres"
	redisdb "github.com/rlrepresentacoes/sigem/internal/infrastructure/db/redis"
	"github.com/rlrepresentacoes/sigem/internal/pkg/config"
	"github.com/rlrepresentacoes/sigem/pkg/logger"
)

// infra holds the open connections of one command run.
type infra struct {
	cfg      *config.Config
	log      zerolog.Logger
	mongo    *mongo.Client
	db       *mongo.Database
	redis    *redis.Client
	pg       *sql.DB
	profiles ports.ProfileRepository
}

func loadConfig(ctx context.Context) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.LoadWith(ctx, envconfig.OsLookuper())
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "sigem",
	})
	return cfg, log, nil
}

// connect opens MongoDB and Redis, plus PostgreSQL when it backs the
// profile store. On error everything opened so far is closed.
func connect(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*infra, error) {
	in := &infra{cfg: cfg, log: log}

	client, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		Timeout:  cfg.Mongo.ConnectTimeout,
	})
	if err != nil {
		return nil, err
	}
	in.mongo, in.db = client, db

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
		Timeout:  cfg.Redis.ConnectTimeout,
	})
	if err != nil {
		in.close(ctx)
		return nil, err
	}
	in.redis = rdb

	switch cfg.ProfileStore {
	case config.ProfileStorePostgres:
		pg, err := postgres.Open(ctx, postgres.Config{
			DSN:     cfg.Postgres.DSN,
			Timeout: cfg.Postgres.ConnectTimeout,
		})
		if err != nil {
			in.close(ctx)
			return nil, err
		}
		in.pg = pg
		in.profiles = postgres.NewProfileRepository(pg)
	default:
		in.profiles = mongodb.NewProfileRepository(db)
	}

	log.Info().Str("profile_store", cfg.ProfileStore).Msg("connected to dependencies")
	return in, nil
}

// dependencies lists the readiness checks of the open connections.
func (in *infra) dependencies() []handler.Dependency {
	deps := []handler.Dependency{
		{Name: "mongodb", Ping: func(ctx context.Context) error { return in.mongo.Ping(ctx, nil) }},
		{Name: "redis", Ping: func(ctx context.Context) error { return in.redis.Ping(ctx).Err() }},
	}
	if in.pg != nil {
		deps = append(deps, handler.Dependency{Name: "postgres", Ping: in.pg.PingContext})
	}
	return deps
}

func (in *infra) close(ctx context.Context) {
	var errs []error
	if in.pg != nil {
		errs = append(errs, in.pg.Close())
	}
	if in.redis != nil {
		errs = append(errs, in.redis.Close())
	}
	if in.mongo != nil {
		errs = append(errs, in.mongo.Disconnect(context.WithoutCancel(ctx)))
	}
	if err := errors.Join(errs...); err != nil {
		in.log.Warn().Err(err).Msg("closing dependencies")
	}
}
