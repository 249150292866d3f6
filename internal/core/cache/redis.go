package cache

import (
	"context"
	"errors"
	"time"

	"github.com/karlseguin/ccache/v3"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Cache 两级读穿缓存：进程内 ccache(L1) + Redis(L2)，回源用 singleflight 合并
type Cache struct {
	RDB      *redis.Client // 可为 nil，只用本地
	local    *ccache.Cache[[]byte]
	localTTL time.Duration
	loadTO   time.Duration
	sf       singleflight.Group
	log      *zap.Logger
}

type Options struct {
	LocalSize int64
	LocalTTL  time.Duration // L1 TTL，默认 30s
	// LoadTimeout 回源超时，与调用方 ctx 的取消解耦，默认 5s
	LoadTimeout time.Duration
	Logger      *zap.Logger
}

func NewClient(addr, pass string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})
}

func New(rdb *redis.Client, o Options) *Cache {
	if o.LocalSize <= 0 {
		o.LocalSize = 1000
	}
	if o.LocalTTL <= 0 {
		o.LocalTTL = 30 * time.Second
	}
	if o.LoadTimeout <= 0 {
		o.LoadTimeout = 5 * time.Second
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return &Cache{
		RDB:      rdb,
		local:    ccache.New(ccache.Configure[[]byte]().MaxSize(o.LocalSize)),
		localTTL: o.LocalTTL,
		loadTO:   o.LoadTimeout,
		log:      o.Logger,
	}
}

func (c *Cache) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error) {
	if it := c.local.Get(key); it != nil && !it.Expired() {
		return it.Value(), nil
	}
	if c.RDB != nil {
		b, err := c.RDB.Get(ctx, key).Bytes()
		if err == nil {
			c.local.Set(key, b, min(ttl, c.localTTL))
			return b, nil
		}
		if !errors.Is(err, redis.Nil) {
			// Redis 不可用时直接回源
			c.log.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
	}

	// 合并后的回源不跟随某个调用方取消；调用方自己的 ctx 只决定它等不等
	ch := c.sf.DoChan(key, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTO)
		defer cancel()
		b, e := load(lctx)
		if e != nil {
			return nil, e
		}
		c.local.Set(key, b, min(ttl, c.localTTL))
		if c.RDB != nil {
			if e := c.RDB.Set(lctx, key, b, ttl).Err(); e != nil {
				c.log.Warn("cache set failed", zap.String("key", key), zap.Error(e))
			}
		}
		return b, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.([]byte), nil
	}
}

// Delete 两级同时失效
func (c *Cache) Delete(ctx context.Context, keys ...string) {
	for _, k := range keys {
		c.local.Delete(k)
	}
	if c.RDB != nil && len(keys) > 0 {
		if err := c.RDB.Del(ctx, keys...).Err(); err != nil {
			c.log.Warn("cache delete failed", zap.Strings("keys", keys), zap.Error(err))
		}
	}
}

func (c *Cache) Close() {
	c.local.Stop()
}
