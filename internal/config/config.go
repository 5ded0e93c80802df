// Package config loads the sweeper host configuration from defaults, an
// optional YAML file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ovaphlow/pitchfork/service-token-sweeper/internal/oidc/repo"
	"github.com/ovaphlow/pitchfork/service-token-sweeper/internal/sweeper"
	"github.com/ovaphlow/pitchfork/service-token-sweeper/pkg/database"
	"github.com/ovaphlow/pitchfork/service-token-sweeper/pkg/utilities"
)

// Store backends.
const (
	BackendPostgres = database.DriverPostgres
	BackendPgx      = database.DriverPgx
	BackendSQLite   = database.DriverSQLite
	BackendMongoDB  = "mongodb"
	BackendRedis    = "redis"
)

var (
	tableRe  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	prefixRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_:.-]*$`)
)

type Config struct {
	Sweep SweepConfig      `yaml:"sweep"`
	Store StoreConfig      `yaml:"store"`
	Log   utilities.Config `yaml:"log"`
	HTTP  HTTPConfig       `yaml:"http"`
}

type SweepConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
}

// StoreConfig is passed through to build the three record stores.
type StoreConfig struct {
	Backend string          `yaml:"backend"`
	SQL     database.Config `yaml:"sql"`
	MongoDB MongoDBConfig   `yaml:"mongodb"`
	Redis   RedisConfig     `yaml:"redis"`
	// Names are table names for SQL, collection names for MongoDB and key
	// prefixes for Redis.
	Names NamesConfig `yaml:"names"`
}

type MongoDBConfig struct {
	URL      string `yaml:"url"`
	Database string `yaml:"database"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type NamesConfig struct {
	RefreshTokens      string `yaml:"refresh_tokens"`
	AuthorizationCodes string `yaml:"authorization_codes"`
	TokenHandles       string `yaml:"token_handles"`
}

type HTTPConfig struct {
	// Addr is where /health and /metrics are served; empty disables the server.
	Addr           string `yaml:"addr"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
}

// Interval returns the sweep interval as a duration.
func (c SweepConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		Sweep: SweepConfig{IntervalSeconds: sweeper.DefaultIntervalSeconds},
		Store: StoreConfig{
			Backend: BackendPostgres,
			SQL:     database.DefaultConfig(),
			MongoDB: MongoDBConfig{URL: "mongodb://localhost:27017", Database: "pitchfork"},
			Redis:   RedisConfig{Addr: "localhost:6379"},
			Names: NamesConfig{
				RefreshTokens:      repo.DefaultRefreshTable,
				AuthorizationCodes: repo.DefaultCodeTable,
				TokenHandles:       repo.DefaultHandleTable,
			},
		},
		HTTP: HTTPConfig{Addr: "0.0.0.0:8431", MetricsEnabled: true},
	}
}

// Load reads path (if it exists) over the defaults, then applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Store.IsSQL() {
		cfg.Store.SQL.Driver = cfg.Store.Backend
	}
	return cfg, nil
}

// Validate checks the settings the sweeper cannot start without.
func (c *Config) Validate() error {
	if c.Sweep.IntervalSeconds < 1 {
		return fmt.Errorf("sweep.interval_seconds must be at least 1, got %d", c.Sweep.IntervalSeconds)
	}
	nameRe := prefixRe
	switch c.Store.Backend {
	case BackendPostgres, BackendPgx, BackendSQLite:
		nameRe = tableRe
	case BackendMongoDB:
		if c.Store.MongoDB.URL == "" {
			return errors.New("store.mongodb.url is required")
		}
	case BackendRedis:
		if c.Store.Redis.Addr == "" {
			return errors.New("store.redis.addr is required")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	for key, name := range map[string]string{
		"refresh_tokens":      c.Store.Names.RefreshTokens,
		"authorization_codes": c.Store.Names.AuthorizationCodes,
		"token_handles":       c.Store.Names.TokenHandles,
	} {
		if !nameRe.MatchString(name) {
			return fmt.Errorf("store.names.%s %q is not a valid name", key, name)
		}
	}
	return nil
}

// IsSQL reports whether the backend is served by pkg/database.
func (s StoreConfig) IsSQL() bool {
	return s.Backend == BackendPostgres || s.Backend == BackendPgx || s.Backend == BackendSQLite
}

func applyEnv(cfg *Config) error {
	if err := envInt("SWEEP_INTERVAL_SECONDS", &cfg.Sweep.IntervalSeconds); err != nil {
		return err
	}
	envString("STORE_BACKEND", &cfg.Store.Backend)
	envString("DATABASE_URL", &cfg.Store.SQL.DSN)
	envString("DATABASE_TIMEZONE", &cfg.Store.SQL.TimeZone)
	envString("DATABASE_CLIENT_ENCODING", &cfg.Store.SQL.ClientEncoding)
	if err := envInt("DATABASE_MAX_CONNS", &cfg.Store.SQL.MaxConns); err != nil {
		return err
	}
	envString("MONGODB_URL", &cfg.Store.MongoDB.URL)
	envString("MONGODB_DATABASE", &cfg.Store.MongoDB.Database)
	envString("REDIS_ADDR", &cfg.Store.Redis.Addr)
	envString("REDIS_PASSWORD", &cfg.Store.Redis.Password)
	if err := envInt("REDIS_DB", &cfg.Store.Redis.DB); err != nil {
		return err
	}
	envString("REFRESH_TOKENS_NAME", &cfg.Store.Names.RefreshTokens)
	envString("AUTHORIZATION_CODES_NAME", &cfg.Store.Names.AuthorizationCodes)
	envString("TOKEN_HANDLES_NAME", &cfg.Store.Names.TokenHandles)

	envString("LOG_LEVEL", &cfg.Log.Level)
	envString("LOG_FILE", &cfg.Log.File)
	if v := os.Getenv("LOG_DEV"); v != "" {
		cfg.Log.Dev = v == "1" || v == "true"
	}
	if err := envInt("LOG_MAX_AGE_DAYS", &cfg.Log.MaxAgeDays); err != nil {
		return err
	}

	envString("HTTP_ADDR", &cfg.HTTP.Addr)
	if v := os.Getenv("METRICS_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("METRICS_ENABLED: %w", err)
		}
		cfg.HTTP.MetricsEnabled = b
	}
	return nil
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
