package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Profile store backends.
const (
	ProfileStoreMongo    = "mongo"
	ProfileStorePostgres = "postgres"
)

type Config struct {
	Port      string `env:"PORT,      default=8080"`
	Env       string `env:"ENV,       default=development"`
	JWTSecret string `env:"JWT_SECRET, required"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`

	Auth     AuthConfig
	Sessions SessionConfig

	ProfileStore      string `env:"PROFILE_STORE,      default=mongo"`
	DispatcherWorkers int    `env:"DISPATCHER_WORKERS, default=8"`

	Mongo    MongoConfig
	Redis    RedisConfig
	Postgres PostgresConfig
}

type AuthConfig struct {
	TokenTTL         time.Duration `env:"TOKEN_TTL,          default=24h"`
	RecoveryTTL      time.Duration `env:"RECOVERY_TTL,       default=1h"`
	ResolveTimeout   time.Duration `env:"RESOLVE_TIMEOUT,    default=10s"`
	ResetRedirectURL string        `env:"RESET_REDIRECT_URL, default=http://localhost:8080/reset-password"`
}

type SessionConfig struct {
	Cookie  string        `env:"SESSION_COOKIE,   default=sigem_session"`
	IdleTTL time.Duration `env:"SESSION_IDLE_TTL, default=30m"`
}

type MongoConfig struct {
	URI            string        `env:"MONGO_URI,             default=mongodb://localhost:27017"`
	Database       string        `env:"MONGO_DB,              default=sigem"`
	ConnectTimeout time.Duration `env:"MONGO_CONNECT_TIMEOUT, default=10s"`
}

type RedisConfig struct {
	Addr           string        `env:"REDIS_ADDR,            default=localhost:6379"`
	Password       string        `env:"REDIS_PASSWORD"`
	DB             int           `env:"REDIS_DB,              default=0"`
	PoolSize       int           `env:"REDIS_POOL_SIZE,       default=20"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT, default=5s"`
}

type PostgresConfig struct {
	DSN            string        `env:"POSTGRES_DSN"`
	ConnectTimeout time.Duration `env:"POSTGRES_CONNECT_TIMEOUT, default=5s"`
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

// Load reads configuration from environment variables. It panics on an
// invalid configuration.
func Load() *Config {
	cfg, err := LoadWith(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// LoadWith reads configuration through lookuper and validates it.
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error

	switch c.ProfileStore {
	case ProfileStoreMongo:
	case ProfileStorePostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required when PROFILE_STORE=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("PROFILE_STORE must be %q or %q, got %q", ProfileStoreMongo, ProfileStorePostgres, c.ProfileStore))
	}

	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.Auth.RecoveryTTL <= 0 {
		errs = append(errs, errors.New("RECOVERY_TTL must be positive"))
	}
	if c.Auth.ResolveTimeout <= 0 {
		errs = append(errs, errors.New("RESOLVE_TIMEOUT must be positive"))
	}
	if c.Sessions.Cookie == "" {
		errs = append(errs, errors.New("SESSION_COOKIE must not be empty"))
	}
	if c.Sessions.IdleTTL <= 0 {
		errs = append(errs, errors.New("SESSION_IDLE_TTL must be positive"))
	}
	if c.Redis.PoolSize <= 0 {
		errs = append(errs, errors.New("REDIS_POOL_SIZE must be positive"))
	}
	return errors.Join(errs...)
}
