package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"arcvault/pkg/arc"
	"arcvault/pkg/catalog"
	"arcvault/pkg/compress"
	"arcvault/pkg/hasher"
	"arcvault/pkg/hierarchy"
	"arcvault/pkg/loader"
	"arcvault/pkg/logging"
	"arcvault/pkg/storage"
	"arcvault/pkg/storage/cache"
	"arcvault/pkg/storage/disk"
	"arcvault/pkg/storage/s3"

	"github.com/spf13/viper"
)

// App 是整个应用程序的依赖容器 (Dependency Container)
// 便宜的依赖在 NewApp 中创建；需要网络或数据库的依赖在第一次使用时创建
type App struct {
	Log            logging.Logger
	Hasher         hasher.Hasher
	Codec          compress.Codec
	KeepDuplicates bool
	Compress       []string
	RootName       string
}

// NewApp 是工厂函数，负责组装这一台机器
// 它遵循 Viper 的配置，但不知道具体的 CLI 命令
func NewApp() (*App, error) {
	// 1. 日志
	log, err := logging.New(logging.Config{
		Level:   viper.GetString("log.level"),
		Backend: viper.GetString("log.backend"),
		Format:  viper.GetString("log.format"),
		Output:  os.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	// 2. 名字哈希与压缩
	h, err := hasher.ByName(viper.GetString("archive.hasher"))
	if err != nil {
		return nil, err
	}
	codec, err := compress.ByName(viper.GetString("archive.codec"))
	if err != nil {
		return nil, err
	}

	return &App{
		Log:            log,
		Hasher:         h,
		Codec:          codec,
		KeepDuplicates: viper.GetBool("archive.keep_duplicates"),
		Compress:       viper.GetStringSlice("archive.compress"),
		RootName:       viper.GetString("archive.name"),
	}, nil
}

// NewFileSystem 按配置创建文件系统；name 为空时沿用 archive.name
func (a *App) NewFileSystem(name string, opts ...arc.Option) *arc.FileSystem {
	if name == "" {
		name = a.RootName
	}
	base := []arc.Option{
		arc.WithKeepDuplicates(a.KeepDuplicates),
		arc.WithCompressPatterns(a.Compress...),
		arc.WithHasher(a.Hasher),
		arc.WithCodec(a.Codec),
		arc.WithLogger(a.Log),
	}
	return arc.New(name, append(base, opts...)...)
}

// NewLoader 按配置创建多归档加载器
func (a *App) NewLoader(ctx context.Context, sources [][]string, hierarchyOnly bool) (*loader.Loader, error) {
	method, err := loader.ParseMethod(viper.GetString("loader.method"))
	if err != nil {
		return nil, err
	}
	cacheStore, err := initHierarchy(ctx, a.Log)
	if err != nil {
		return nil, err
	}
	return loader.New(loader.Options{
		Sources:        sources,
		Workers:        viper.GetInt("loader.workers"),
		Method:         method,
		KeepDuplicates: a.KeepDuplicates,
		Exclude:        exclusions(viper.GetStringSlice("loader.exclude")),
		Cache:          cacheStore,
		HierarchyOnly:  hierarchyOnly,
		NewFileSystem:  func() *arc.FileSystem { return a.NewFileSystem("root") },
		Logger:         a.Log,
	}), nil
}

// exclusions 展开 loader.exclude，其中的 "default" 代表内置的全部类别
func exclusions(list []string) []string {
	var out []string
	for _, e := range list {
		if strings.EqualFold(strings.TrimSpace(e), "default") {
			out = append(out, loader.DefaultExclusions...)
			continue
		}
		out = append(out, e)
	}
	return out
}

// Store 初始化归档仓库
func (a *App) Store(ctx context.Context) (storage.Store, error) {
	return initStore(ctx, a.Log)
}

// Catalog 打开目录索引
func (a *App) Catalog(ctx context.Context) (*catalog.Repository, *catalog.DB, error) {
	db, err := catalog.NewDB(ctx, catalog.Config{
		Driver:   viper.GetString("catalog.driver"),
		DSN:      viper.GetString("catalog.dsn"),
		Host:     viper.GetString("database.host"),
		Port:     viper.GetInt("database.port"),
		User:     viper.GetString("database.user"),
		Password: viper.GetString("database.password"),
		DBName:   viper.GetString("database.dbname"),
		SSLMode:  viper.GetString("database.sslmode"),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	return catalog.NewRepository(db), db, nil
}

// initStore 根据 storage.type 创建仓库；storage.redis_url 不为空时加一层 Redis 缓存
func initStore(ctx context.Context, log logging.Logger) (storage.Store, error) {
	var store storage.Store

	switch storageType := strings.ToLower(viper.GetString("storage.type")); storageType {
	case "", "disk":
		path := viper.GetString("storage.path")
		if path == "" {
			return nil, fmt.Errorf("storage path not set")
		}
		adapter, err := disk.NewAdapter(path)
		if err != nil {
			return nil, fmt.Errorf("failed to init storage: %w", err)
		}
		store = adapter
	case "s3":
		bucket := viper.GetString("storage.s3.bucket")
		if bucket == "" {
			return nil, fmt.Errorf("s3 bucket is required")
		}
		adapter, err := s3.NewAdapter(ctx, s3.Config{
			Endpoint:        viper.GetString("storage.s3.endpoint"),
			Region:          viper.GetString("storage.s3.region"),
			Bucket:          bucket,
			AccessKeyID:     viper.GetString("storage.s3.access_key"),
			SecretAccessKey: viper.GetString("storage.s3.secret_key"),
			Prefix:          viper.GetString("storage.s3.prefix"),
			Logger:          log,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to init s3 storage: %w", err)
		}
		store = adapter
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}

	if url := viper.GetString("storage.redis_url"); url != "" {
		cached, err := cache.NewCachedStore(store, cache.Config{
			RedisURL: url,
			TTL:      viper.GetDuration("cache.ttl"),
			Logger:   log,
		})
		if err != nil {
			return nil, err
		}
		return cached, nil
	}
	return store, nil
}

// initHierarchy 根据 cache.backend 创建目录骨架缓存；cache.path 为空且不是 redis 时不使用缓存
func initHierarchy(ctx context.Context, log logging.Logger) (hierarchy.Store, error) {
	switch backend := strings.ToLower(viper.GetString("cache.backend")); backend {
	case "", "file":
		path := viper.GetString("cache.path")
		if path == "" {
			return nil, nil
		}
		return hierarchy.NewFileStore(path), nil
	case "redis":
		store, err := hierarchy.NewRedisStore(hierarchy.RedisConfig{
			RedisURL: viper.GetString("cache.redis_url"),
			TTL:      viper.GetDuration("cache.ttl"),
		})
		if err != nil {
			return nil, err
		}
		log.Debug("hierarchy cache on redis", "url", viper.GetString("cache.redis_url"))
		return store, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", backend)
	}
}
