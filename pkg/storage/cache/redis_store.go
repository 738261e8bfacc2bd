package cache

import (
	"context"
	"fmt"
	"io"
	"time"

	"arcvault/pkg/logging"
	"arcvault/pkg/storage"

	"github.com/redis/go-redis/v9"
)

// CachedStore 是一个装饰器，它为底层的 storage.Store 添加 Redis 存在性缓存
type CachedStore struct {
	backend storage.Store // 被装饰的底层存储 (如 S3)
	client  *redis.Client // Redis 客户端
	ttl     time.Duration // 缓存过期时间 (例如 24h)
	log     logging.Logger
}

type Config struct {
	RedisURL string        // 标准连接字符串: redis://<user>:<password>@<host>:<port>/<db>
	TTL      time.Duration // 过期时间
	Logger   logging.Logger
}

func NewCachedStore(backend storage.Store, cfg Config) (*CachedStore, error) {
	// 解析 URL
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Fail-fast 连接检查
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}
	return &CachedStore{
		backend: backend,
		client:  client,
		ttl:     cfg.TTL,
		log:     log,
	}, nil
}

// cacheKey 生成 Redis Key，添加前缀防止冲突
func (s *CachedStore) cacheKey(key string) string {
	return "av:arc:" + key
}

// Has 优先查 Redis
func (s *CachedStore) Has(ctx context.Context, key string) (bool, error) {
	cleaned, err := storage.CleanKey(key)
	if err != nil {
		return false, err
	}
	ck := s.cacheKey(cleaned)

	// 1. 查 Redis，出错时退化为无缓存模式
	val, err := s.client.Exists(ctx, ck).Result()
	if err != nil {
		s.log.Warn("redis unavailable, falling back to backend", "err", err)
	} else if val > 0 {
		return true, nil
	}

	// 2. 缓存未命中，查底层存储
	found, err := s.backend.Has(ctx, cleaned)
	if err != nil {
		return false, err
	}

	// 3. 缓存回填，不阻塞主流程
	if found {
		go func() {
			fillCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			s.client.Set(fillCtx, ck, "1", s.ttl)
		}()
	}

	return found, nil
}

// Put 写入底层存储成功后再写缓存
func (s *CachedStore) Put(ctx context.Context, key string, r io.Reader) error {
	cleaned, err := storage.CleanKey(key)
	if err != nil {
		return err
	}
	if err := s.backend.Put(ctx, cleaned, r); err != nil {
		return err
	}
	// Set 失败不影响主流程
	if err := s.client.Set(ctx, s.cacheKey(cleaned), "1", s.ttl).Err(); err != nil {
		s.log.Warn("redis set failed", "key", cleaned, "err", err)
	}
	return nil
}

// Get 直接透传 (归档体积大，不进缓存)
func (s *CachedStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.backend.Get(ctx, key)
}

func (s *CachedStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.backend.List(ctx, prefix)
}

func (s *CachedStore) Close() error { return s.client.Close() }
