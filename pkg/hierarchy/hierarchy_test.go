package hierarchy

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"arcvault/pkg/arc"
	"arcvault/pkg/pointer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeArc 生成一个包含 files 的 .arc 文件
func writeArc(t *testing.T, path string, files ...string) {
	t.Helper()
	fs := arc.New("root")
	for _, f := range files {
		file, err := fs.GetOrCreateFile(f, nil)
		require.NoError(t, err)
		file.SetPointer(pointer.NewMemory([]byte("data:" + f)))
	}
	require.NoError(t, fs.SaveFile(path))
}

func sampleCache() *Cache {
	c := NewCache()
	mt := time.Date(2024, 5, 1, 12, 30, 0, 123456789, time.UTC)
	c.Add("/game/a.arc", mt, "/model/a.model", "/model/b.model")
	c.Add("/game/b.arc", mt.Add(time.Hour), "/tex/a.tex")
	return c
}

func fixedStat(times map[string]time.Time) StatFunc {
	return func(p string) (time.Time, error) {
		mt, ok := times[p]
		if !ok {
			return time.Time{}, os.ErrNotExist
		}
		return mt, nil
	}
}

func TestCache_Add(t *testing.T) {
	c := sampleCache()
	c.Add("/game/a.arc", time.Now(), "/model/c.model")

	assert.Equal(t, []string{"/game/a.arc", "/game/b.arc"}, c.Paths())
	assert.Equal(t, 4, c.FileCount())
	// 第二次 Add 不覆盖修改时间
	assert.Equal(t, 2024, c.Archives["/game/a.arc"].ModTime.Year())
}

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		file string
	}{
		{"json", "hierarchy.json"},
		{"cbor", "hierarchy.cbor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewFileStore(filepath.Join(t.TempDir(), "nested", tt.file))

			// 1. 不存在时返回 ErrNoCache
			_, err := store.Load(ctx)
			assert.ErrorIs(t, err, ErrNoCache)

			// 2. 写入并读回
			want := sampleCache()
			require.NoError(t, store.Save(ctx, want))

			got, err := store.Load(ctx)
			require.NoError(t, err)
			require.Equal(t, want.Paths(), got.Paths())
			for p, rec := range want.Archives {
				assert.True(t, rec.ModTime.Equal(got.Archives[p].ModTime), "mod time of %s", p)
				assert.Equal(t, rec.Files, got.Archives[p].Files)
			}
		})
	}
}

func TestFileStore_Corrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hierarchy.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := NewFileStore(path).Load(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoCache)
}

func TestValidate(t *testing.T) {
	c := sampleCache()
	current := map[string]time.Time{
		"/game/a.arc": c.Archives["/game/a.arc"].ModTime,
		"/game/b.arc": c.Archives["/game/b.arc"].ModTime,
	}

	t.Run("matches", func(t *testing.T) {
		// 顺序无关
		err := Validate(c, []string{"/game/b.arc", "/game/a.arc"}, fixedStat(current))
		assert.NoError(t, err)
	})

	t.Run("nil cache", func(t *testing.T) {
		assert.ErrorIs(t, Validate(nil, nil, nil), ErrNoCache)
	})

	t.Run("archive set differs", func(t *testing.T) {
		err := Validate(c, []string{"/game/a.arc"}, fixedStat(current))
		assert.ErrorIs(t, err, ErrStale)
	})

	t.Run("modified archive", func(t *testing.T) {
		changed := map[string]time.Time{
			"/game/a.arc": current["/game/a.arc"],
			"/game/b.arc": current["/game/b.arc"].Add(time.Second),
		}
		err := Validate(c, c.Paths(), fixedStat(changed))
		assert.ErrorIs(t, err, ErrStale)
	})

	t.Run("missing archive", func(t *testing.T) {
		err := Validate(c, c.Paths(), fixedStat(map[string]time.Time{"/game/a.arc": current["/game/a.arc"]}))
		assert.ErrorIs(t, err, ErrStale)
	})
}

func TestBuild(t *testing.T) {
	c := sampleCache()
	// 同一路径出现在两个归档中
	c.Add("/game/b.arc", time.Time{}, "/model/a.model")

	fs, err := Build(c, func() *arc.FileSystem { return arc.New("root") })
	require.NoError(t, err)
	assert.Equal(t, 3, fs.FileCount())

	f, err := fs.FindFile("model/a.model", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), f.Pointer().Size())

	_, err = fs.FindDirectory("tex", nil)
	assert.NoError(t, err)
}

func TestCollect_FromLoadedArchives(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.arc")
	b := filepath.Join(dir, "b.arc")
	empty := filepath.Join(dir, "empty.arc")
	writeArc(t, a, "model/a.model", "model/b.model")
	writeArc(t, b, "tex/a.tex")
	writeArc(t, empty)

	fs := arc.New("root")
	for _, p := range []string{a, b, empty} {
		require.NoError(t, fs.LoadArc(p, nil))
	}
	// 不来自归档的文件不进入缓存
	loose, err := fs.GetOrCreateFile("loose.txt", nil)
	require.NoError(t, err)
	loose.SetPointer(pointer.NewMemory([]byte("x")))

	c, err := Collect(fs, []string{a, b, empty}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{a, b, empty}, c.Paths())
	assert.ElementsMatch(t, []string{"/model/a.model", "/model/b.model"}, c.Archives[a].Files)
	assert.Equal(t, []string{"/tex/a.tex"}, c.Archives[b].Files)
	assert.Empty(t, c.Archives[empty].Files)

	// 刚采集的缓存必然有效
	require.NoError(t, Validate(c, []string{a, b, empty}, nil))

	// 用缓存重建出相同的文件集合 (loose.txt 除外)
	rebuilt, err := Build(c, func() *arc.FileSystem { return arc.New("root") })
	require.NoError(t, err)
	assert.Equal(t, fs.FileCount()-1, rebuilt.FileCount())
}

func TestRedisStore_Integration(t *testing.T) {
	// A. 环境检查: 确保 Redis 在运行
	redisAddr := "localhost:6379"
	conn, err := net.DialTimeout("tcp", redisAddr, 1*time.Second)
	if err != nil {
		t.Skipf("Skipping Redis integration test: %v", err)
	}
	conn.Close()

	// B. 初始化 (使用独立的 key 防止与其它数据冲突)
	ctx := context.Background()
	store, err := NewRedisStore(RedisConfig{
		RedisURL: "redis://" + redisAddr + "/0",
		TTL:      time.Minute,
		Key:      "av:test:hierarchy",
	})
	require.NoError(t, err)
	defer store.Close()
	store.client.Del(ctx, store.key)

	// C. 不存在 -> 写入 -> 读回
	_, err = store.Load(ctx)
	assert.True(t, errors.Is(err, ErrNoCache))

	want := sampleCache()
	require.NoError(t, store.Save(ctx, want))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want.Paths(), got.Paths())
	assert.True(t, want.Archives["/game/a.arc"].ModTime.Equal(got.Archives["/game/a.arc"].ModTime))

	ttl, err := store.client.TTL(ctx, store.key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestNewRedisStore_BadURL(t *testing.T) {
	_, err := NewRedisStore(RedisConfig{RedisURL: "not-a-url"})
	assert.Error(t, err)
}
