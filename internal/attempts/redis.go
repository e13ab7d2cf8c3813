package attempts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "adboard:login_failures:"

// RedisStore はRedisのINCRとEXPIREで失敗回数を共有する。
// 複数のAPIインスタンスで同じカウンタを参照できる。
type RedisStore struct {
	rdb    *redis.Client
	window time.Duration
}

// NewRedisStore はURLからRedisクライアントを生成し、接続を確認する。
func NewRedisStore(ctx context.Context, url string, windowSize time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStoreFromClient(rdb, windowSize), nil
}

// NewRedisStoreFromClient は既存のクライアントからRedisStoreを生成する。
func NewRedisStoreFromClient(rdb *redis.Client, windowSize time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, window: windowSize}
}

// Failures は現在のウィンドウ内の失敗回数を返す。
func (s *RedisStore) Failures(ctx context.Context, key string) (int, error) {
	n, err := s.rdb.Get(ctx, keyPrefix+key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read login failures: %w", err)
	}
	return n, nil
}

// Hit は試行を1回記録し、加算後のウィンドウ内の回数を返す。
// EXPIRE NXにより、TTLは最初の試行時にのみ設定される。
func (s *RedisStore) Hit(ctx context.Context, key string) (int, error) {
	k := keyPrefix + key
	var incr *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, s.window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to record login attempt: %w", err)
	}
	return int(incr.Val()), nil
}

// Reset は失敗回数を消去する。
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to reset login failures: %w", err)
	}
	return nil
}

// Ping は接続を確認する。
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close はRedis接続を閉じる。
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
