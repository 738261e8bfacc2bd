package disk

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"arcvault/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskAdapter(t *testing.T) {
	// 1. 创建临时测试目录
	tmpDir := t.TempDir()
	store, err := NewAdapter(tmpDir)
	require.NoError(t, err)

	ctx := context.Background()
	key := "gamedata/model.arc"

	// 2. 测试 Put
	err = store.Put(ctx, key, bytes.NewReader([]byte("hello world")))
	assert.NoError(t, err)

	// 验证文件是否真的存在于物理磁盘
	_, err = os.Stat(filepath.Join(tmpDir, "gamedata", "model.arc"))
	assert.NoError(t, err, "文件应该按 key 的目录结构保存")

	// 3. 测试 Has
	exists, err := store.Has(ctx, key)
	assert.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.Has(ctx, "gamedata/missing.arc")
	assert.NoError(t, err)
	assert.False(t, exists)

	// 目录本身不是归档
	exists, err = store.Has(ctx, "gamedata")
	assert.NoError(t, err)
	assert.False(t, exists)

	// 4. 测试 Get
	reader, err := store.Get(ctx, key)
	require.NoError(t, err)
	defer reader.Close()

	content, err := io.ReadAll(reader)
	assert.NoError(t, err)
	assert.Equal(t, []byte("hello world"), content)

	_, err = store.Get(ctx, "nope.arc")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// 5. 覆盖写入
	require.NoError(t, store.Put(ctx, key, bytes.NewReader([]byte("v2"))))
	reader2, err := store.Get(ctx, key)
	require.NoError(t, err)
	defer reader2.Close()
	content, _ = io.ReadAll(reader2)
	assert.Equal(t, "v2", string(content))
}

func TestDiskAdapter_List(t *testing.T) {
	store, err := NewAdapter(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, key := range []string{"mods/b.arc", "gamedata/z.arc", "gamedata/a.arc"} {
		require.NoError(t, store.Put(ctx, key, bytes.NewReader([]byte(key))))
	}

	tests := []struct {
		name   string
		prefix string
		want   []string
	}{
		{"all", "", []string{"gamedata/a.arc", "gamedata/z.arc", "mods/b.arc"}},
		{"by directory", "gamedata/", []string{"gamedata/a.arc", "gamedata/z.arc"}},
		{"leading slash", "/mods", []string{"mods/b.arc"}},
		{"no match", "voice", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.List(ctx, tt.prefix)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDiskAdapter_InvalidKey(t *testing.T) {
	store, err := NewAdapter(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, key := range []string{"", "../escape.arc", "/"} {
		err := store.Put(ctx, key, bytes.NewReader(nil))
		assert.ErrorIs(t, err, storage.ErrInvalidKey, "key %q", key)
	}
}
