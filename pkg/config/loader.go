package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load 初始化 Viper 配置
// cfgFile: 可选，用户显式指定的配置文件路径
func Load(cfgFile string) error {
	// 1. 设置默认值 (Defaults)
	setDefaults()

	// 2. 配置搜索路径
	if cfgFile != "" {
		// 如果用户指定了文件，直接使用
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		// 搜索顺序：当前目录 -> ./.av -> ~/.av
		viper.AddConfigPath(".")
		viper.AddConfigPath(".av")
		viper.AddConfigPath(filepath.Join(home, ".av"))

		viper.SetConfigType("yaml")
		viper.SetConfigName("config") // 找 config.yaml
	}

	// 3. 读取环境变量 (AV_LOADER_WORKERS 等)
	viper.SetEnvPrefix("AV")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 4. 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		// 没找到配置文件不算错，格式错才是错
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("fatal error config file: %w", err)
		}
	}

	return nil
}

// Used 返回实际使用的配置文件，没有时为空
func Used() string {
	return viper.ConfigFileUsed()
}

func setDefaults() {
	// 归档
	viper.SetDefault("archive.name", "")
	viper.SetDefault("archive.keep_duplicates", false)
	viper.SetDefault("archive.compress", []string{})
	viper.SetDefault("archive.hasher", "xxhash")
	viper.SetDefault("archive.codec", "deflate")

	// 多归档加载
	viper.SetDefault("loader.workers", 0)
	viper.SetDefault("loader.method", "single")
	viper.SetDefault("loader.exclude", []string{})

	// 目录骨架缓存
	viper.SetDefault("cache.backend", "file")
	viper.SetDefault("cache.path", "")
	viper.SetDefault("cache.redis_url", "redis://localhost:6379/0")
	viper.SetDefault("cache.ttl", "0s")

	// 存储默认值
	wd, _ := os.Getwd()
	viper.SetDefault("storage.type", "disk")
	viper.SetDefault("storage.path", filepath.Join(wd, ".av", "archives"))
	viper.SetDefault("storage.redis_url", "")
	viper.SetDefault("storage.s3.endpoint", "")
	viper.SetDefault("storage.s3.region", "us-east-1")
	viper.SetDefault("storage.s3.bucket", "arcvault")
	viper.SetDefault("storage.s3.prefix", "")

	// 目录索引
	viper.SetDefault("catalog.driver", "sqlite")
	viper.SetDefault("catalog.dsn", filepath.Join(wd, ".av", "catalog.db"))
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")

	// 日志
	viper.SetDefault("log.level", "warn")
	viper.SetDefault("log.backend", "slog")
	viper.SetDefault("log.format", "text")
}
