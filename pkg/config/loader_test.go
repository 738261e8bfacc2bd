package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Chdir(t.TempDir())

	require.NoError(t, Load(""))
	assert.Equal(t, "xxhash", viper.GetString("archive.hasher"))
	assert.Equal(t, "single", viper.GetString("loader.method"))
	assert.Equal(t, "disk", viper.GetString("storage.type"))
	assert.False(t, viper.GetBool("archive.keep_duplicates"))
}

func TestLoad_FileAndEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfgFile := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
archive:
  codec: zstd
  compress: ["*.tex", "*.model"]
loader:
  workers: 4
`
	require.NoError(t, os.WriteFile(cfgFile, []byte(yaml), 0644))
	t.Setenv("AV_LOADER_WORKERS", "8")
	t.Setenv("AV_LOG_LEVEL", "debug")

	require.NoError(t, Load(cfgFile))
	assert.Equal(t, cfgFile, Used())
	assert.Equal(t, "zstd", viper.GetString("archive.codec"))
	assert.Equal(t, []string{"*.tex", "*.model"}, viper.GetStringSlice("archive.compress"))
	// 环境变量优先于配置文件
	assert.Equal(t, 8, viper.GetInt("loader.workers"))
	assert.Equal(t, "debug", viper.GetString("log.level"))
}

func TestLoad_BrokenFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfgFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("archive: [unclosed"), 0644))
	assert.Error(t, Load(cfgFile))
}
