package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ovaphlow/pitchfork/service-token-sweeper/internal/oidc/entity"
)

// RedisRepo keeps record bodies under "<prefix>:<id>" and a sorted set
// "<prefix>:expiry" scored by expiry in unix milliseconds.
type RedisRepo struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisRepo(rdb redis.UniversalClient, prefix string) *RedisRepo {
	return &RedisRepo{rdb: rdb, prefix: prefix}
}

func (r *RedisRepo) indexKey() string         { return r.prefix + ":expiry" }
func (r *RedisRepo) bodyKey(id string) string { return r.prefix + ":" + id }

// Save writes the record body and indexes its expiry in one transaction.
func (r *RedisRepo) Save(ctx context.Context, rec entity.Expiring) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", r.prefix, err)
	}
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.bodyKey(rec.Identifier()), body, 0)
		pipe.ZAdd(ctx, r.indexKey(), redis.Z{
			Score:  float64(rec.Expiry().UnixMilli()),
			Member: rec.Identifier(),
		})
		return nil
	})
	return err
}

// ListExpired reads the expiry index only, so members whose body is already
// gone are still returned and cleaned up.
func (r *RedisRepo) ListExpired(ctx context.Context, cutoff time.Time) ([]entity.Ref, error) {
	zs, err := r.rdb.ZRangeByScoreWithScores(ctx, r.indexKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]entity.Ref, 0, len(zs))
	for _, z := range zs {
		id, ok := z.Member.(string)
		if !ok {
			continue
		}
		out = append(out, entity.Ref{ID: id, ExpiresAt: time.UnixMilli(int64(z.Score))})
	}
	return out, nil
}

func (r *RedisRepo) Delete(ctx context.Context, id string) error {
	var removed *redis.IntCmd
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.ZRem(ctx, r.indexKey(), id)
		pipe.Del(ctx, r.bodyKey(id))
		return nil
	})
	if err != nil {
		return err
	}
	if removed.Val() == 0 {
		return ErrNotFound
	}
	return nil
}
