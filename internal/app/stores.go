package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/ovaphlow/pitchfork/service-token-sweeper/internal/config"
	"github.com/ovaphlow/pitchfork/service-token-sweeper/internal/oidc/entity"
	"github.com/ovaphlow/pitchfork/service-token-sweeper/internal/oidc/repo"
	"github.com/ovaphlow/pitchfork/service-token-sweeper/internal/sweeper"
	"github.com/ovaphlow/pitchfork/service-token-sweeper/pkg/database"
)

// Store names used in logs and metric labels.
const (
	NameTokenHandles       = "token_handles"
	NameRefreshTokens      = "refresh_tokens"
	NameAuthorizationCodes = "authorization_codes"
)

// backend is an opened store backend: the sweeper's collaborators plus what
// is needed to migrate and close it.
type backend struct {
	stores  *sweeper.Stores
	migrate []func(context.Context) error
	close   func() error
}

func openBackend(ctx context.Context, cfg config.StoreConfig) (*backend, error) {
	switch {
	case cfg.IsSQL():
		return openSQL(cfg)
	case cfg.Backend == config.BackendMongoDB:
		return openMongo(ctx, cfg)
	case cfg.Backend == config.BackendRedis:
		return openRedis(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func openSQL(cfg config.StoreConfig) (*backend, error) {
	sqlCfg := cfg.SQL
	sqlCfg.Driver = cfg.Backend
	db, err := database.Connect(sqlCfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	handles := repo.NewHandleRepo(db, cfg.Names.TokenHandles)
	refresh := repo.NewRefreshRepo(db, cfg.Names.RefreshTokens)
	codes := repo.NewCodeRepo(db, cfg.Names.AuthorizationCodes)
	return &backend{
		stores: &sweeper.Stores{
			TokenHandles:       sweeper.NewStore[entity.TokenHandle](NameTokenHandles, handles),
			RefreshTokens:      sweeper.NewStore[entity.RefreshSession](NameRefreshTokens, refresh),
			AuthorizationCodes: sweeper.NewStore[entity.AuthorizationCode](NameAuthorizationCodes, codes),
		},
		migrate: []func(context.Context) error{handles.EnsureTable, refresh.EnsureTable, codes.EnsureTable},
		close:   db.Close,
	}, nil
}

func openMongo(ctx context.Context, cfg config.StoreConfig) (*backend, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoDB.URL))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	db := client.Database(cfg.MongoDB.Database)
	handles := repo.NewMongoRepo[entity.TokenHandle](db, cfg.Names.TokenHandles)
	refresh := repo.NewMongoRepo[entity.RefreshSession](db, cfg.Names.RefreshTokens)
	codes := repo.NewMongoRepo[entity.AuthorizationCode](db, cfg.Names.AuthorizationCodes)
	return &backend{
		stores: &sweeper.Stores{
			TokenHandles:       sweeper.NewStore[entity.TokenHandle](NameTokenHandles, handles),
			RefreshTokens:      sweeper.NewStore[entity.RefreshSession](NameRefreshTokens, refresh),
			AuthorizationCodes: sweeper.NewStore[entity.AuthorizationCode](NameAuthorizationCodes, codes),
		},
		migrate: []func(context.Context) error{handles.EnsureIndexes, refresh.EnsureIndexes, codes.EnsureIndexes},
		close: func() error {
			return client.Disconnect(context.Background())
		},
	}, nil
}

func openRedis(ctx context.Context, cfg config.StoreConfig) (*backend, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &backend{
		stores: &sweeper.Stores{
			TokenHandles:       sweeper.NewStore[entity.Ref](NameTokenHandles, repo.NewRedisRepo(rdb, cfg.Names.TokenHandles)),
			RefreshTokens:      sweeper.NewStore[entity.Ref](NameRefreshTokens, repo.NewRedisRepo(rdb, cfg.Names.RefreshTokens)),
			AuthorizationCodes: sweeper.NewStore[entity.Ref](NameAuthorizationCodes, repo.NewRedisRepo(rdb, cfg.Names.AuthorizationCodes)),
		},
		// sorted-set indexes need no setup
		close: rdb.Close,
	}, nil
}
