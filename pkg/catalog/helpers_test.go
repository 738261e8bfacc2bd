package catalog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"arcvault/pkg/arc"
	"arcvault/pkg/pointer"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestRepo 构建隔离的测试环境
func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	catalogDB := NewWithConn(db)
	require.NoError(t, catalogDB.AutoMigrate())

	return NewRepository(catalogDB)
}

// mustFS 用 路径 -> 内容 构建一个内存文件系统
func mustFS(t *testing.T, name string, files map[string]string) *arc.FileSystem {
	t.Helper()
	fs := arc.New(name)
	for p, content := range files {
		f, err := fs.GetOrCreateFile(p, nil)
		require.NoError(t, err)
		f.SetPointer(pointer.NewMemory([]byte(content)))
	}
	return fs
}

// mustIndex 强制索引归档，失败则终止
func mustIndex(t *testing.T, repo *Repository, arcPath string, fs *arc.FileSystem, msgAndArgs ...any) {
	t.Helper()
	err := repo.IndexArchive(context.Background(), arcPath, fs, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, err, msgAndArgs...)
}
