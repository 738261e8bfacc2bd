package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"arcvault/pkg/arc"
	"arcvault/pkg/hierarchy"
	"arcvault/pkg/pointer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mustArc 在 dir 下写出名为 name 的归档，files 为 路径 -> 内容
func mustArc(t *testing.T, dir, name string, files map[string]string) string {
	t.Helper()
	fs := arc.New("root")
	for p, content := range files {
		f, err := fs.GetOrCreateFile(p, nil)
		require.NoError(t, err)
		f.SetPointer(pointer.NewMemory([]byte(content)))
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, fs.SaveFile(path))
	return path
}

func mustData(t *testing.T, fs *arc.FileSystem, path string) string {
	t.Helper()
	f, err := fs.FindFile(path, nil)
	require.NoError(t, err)
	data, err := f.Data()
	require.NoError(t, err)
	return string(data)
}

func TestFetchArcs(t *testing.T) {
	root := t.TempDir()
	b := mustArc(t, root, "nested/b.arc", map[string]string{"b.txt": "b"})
	a := mustArc(t, root, "a.arc", map[string]string{"a.txt": "a"})
	mustArc(t, root, "Sound_01.arc", map[string]string{"s.ogg": "s"})
	require.NoError(t, os.WriteFile(filepath.Join(root, "readme.txt"), []byte("x"), 0644))

	outside := mustArc(t, t.TempDir(), "direct.arc", map[string]string{"d.txt": "d"})

	got, err := FetchArcs([]string{outside, root}, []string{"sound"}, nil)
	require.NoError(t, err)

	want := []string{a, b, outside}
	// 结果按路径排序
	assert.ElementsMatch(t, want, got)
	assert.IsNonDecreasing(t, got)

	_, err = FetchArcs([]string{filepath.Join(root, "missing")}, nil, nil)
	assert.Error(t, err)
}

func TestExcluded(t *testing.T) {
	tests := []struct {
		path   string
		prefix string
		hit    bool
	}{
		{"/data/bg001.arc", "bg", true},
		{"/data/BG001.arc", "bg", true},
		{"/data/voice_a.arc", "voice", true},
		{"/data/model.arc", "", false},
		// 只看文件名，不看目录
		{"/bg/model.arc", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			prefix, hit := Excluded(tt.path, DefaultExclusions)
			assert.Equal(t, tt.hit, hit)
			assert.Equal(t, tt.prefix, prefix)
		})
	}
}

func TestPartition(t *testing.T) {
	tests := []struct {
		name    string
		sizes   []int64
		workers int
		want    [][]string
	}{
		{
			name:    "smallest bucket gets next",
			sizes:   []int64{100, 10, 10, 10},
			workers: 2,
			want:    [][]string{{"p0"}, {"p1", "p2", "p3"}},
		},
		{
			name:    "ties go to lowest index",
			sizes:   []int64{5, 5, 5},
			workers: 3,
			want:    [][]string{{"p0"}, {"p1"}, {"p2"}},
		},
		{
			name:    "zero workers means one",
			sizes:   []int64{1, 2},
			workers: 0,
			want:    [][]string{{"p0", "p1"}},
		},
		{
			name:    "more workers than archives",
			sizes:   []int64{1},
			workers: 3,
			want:    [][]string{{"p0"}, nil, nil},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paths := make([]string, len(tt.sizes))
			for i := range paths {
				paths[i] = "p" + string(rune('0'+i))
			}
			assert.Equal(t, tt.want, Partition(paths, tt.sizes, tt.workers))
		})
	}
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("MiniTemps")
	require.NoError(t, err)
	assert.Equal(t, MiniTemps, m)

	m, err = ParseMethod("")
	require.NoError(t, err)
	assert.Equal(t, Single, m)

	_, err = ParseMethod("bogus")
	assert.Error(t, err)
}

func TestLoad_Single(t *testing.T) {
	root := t.TempDir()
	a := mustArc(t, root, "a.arc", map[string]string{"shared/x.txt": "from a", "a.txt": "a"})
	b := mustArc(t, root, "b.arc", map[string]string{"other/x.txt": "from b", "b.txt": "b"})
	bad := filepath.Join(root, "broken.arc")
	require.NoError(t, os.WriteFile(bad, []byte("definitely not an arc"), 0644))

	l := New(Options{Sources: [][]string{{root}}, Workers: 2, Method: Single})
	res, err := l.Load(context.Background())
	require.NoError(t, err)

	// 1. 失败的归档被记录，不影响其它归档，也不留下空目录
	require.Contains(t, res.Failed, bad)
	assert.ErrorIs(t, res.Failed[bad], arc.ErrFormat)
	_, err = res.FS.FindDirectory("broken", nil)
	assert.ErrorIs(t, err, arc.ErrNotFound)

	// 2. 每个归档挂载在自己的目录下
	assert.Equal(t, "a", mustData(t, res.FS, "a/a.txt"))
	assert.Equal(t, "b", mustData(t, res.FS, "b/b.txt"))

	// 3. 同名文件只保留完整路径字典序更大的一个，与分桶无关
	assert.Equal(t, "from b", mustData(t, res.FS, "b/other/x.txt"))
	_, err = res.FS.FindFile("a/shared/x.txt", nil)
	assert.ErrorIs(t, err, arc.ErrNotFound)
	assert.Equal(t, 3, res.FS.FileCount())

	// 4. 归档目录记录来源
	dirA, err := res.FS.FindDirectory("a", nil)
	require.NoError(t, err)
	src, ok := ArchiveOf(dirA)
	require.True(t, ok)
	assert.Equal(t, a, src)

	fb, err := res.FS.FindFile("b/b.txt", nil)
	require.NoError(t, err)
	src, ok = ArchiveOf(fb)
	require.True(t, ok)
	assert.Equal(t, b, src)
}

func TestLoad_KeepDuplicates(t *testing.T) {
	root := t.TempDir()
	mustArc(t, root, "a.arc", map[string]string{"shared/x.txt": "from a"})
	mustArc(t, root, "b.arc", map[string]string{"other/x.txt": "from b"})

	res, err := New(Options{Sources: [][]string{{root}}, Workers: 2, KeepDuplicates: true}).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Failed)
	assert.Equal(t, 2, res.FS.FileCount())
	assert.Equal(t, "from a", mustData(t, res.FS, "a/shared/x.txt"))
	assert.Equal(t, "from b", mustData(t, res.FS, "b/other/x.txt"))
}

func TestLoad_MiniTemps(t *testing.T) {
	root := t.TempDir()
	mustArc(t, root, "a.arc", map[string]string{"model/body.model": "a", "tex/a.tex": "ta"})
	mustArc(t, root, "b.arc", map[string]string{"model/body.model": "b", "tex/b.tex": "tb"})

	res, err := New(Options{Sources: [][]string{{root}}, Workers: 1, Method: MiniTemps}).Load(context.Background())
	require.NoError(t, err)

	// 归档内容直接合并到 Root，后加载的归档覆盖相同路径
	assert.Equal(t, 3, res.FS.FileCount())
	assert.Equal(t, "b", mustData(t, res.FS, "model/body.model"))
	assert.Equal(t, "ta", mustData(t, res.FS, "tex/a.tex"))

	texs := FilesWithExtension(res.FS, ".tex")
	require.Len(t, texs, 2)
	assert.Equal(t, "/tex/a.tex", texs[0].Path())
	assert.Len(t, FilesWithExtension(res.FS, "model"), 1)
	assert.Empty(t, FilesWithExtension(res.FS, "ogg"))
}

func TestLoad_SourceGroupsAndExclusions(t *testing.T) {
	base := mustArc(t, t.TempDir(), "base.arc", map[string]string{"base.txt": "1"})
	modDir := t.TempDir()
	mustArc(t, modDir, "mod.arc", map[string]string{"mod.txt": "2"})
	mustArc(t, modDir, "voice_pack.arc", map[string]string{"v.ogg": "3"})

	l := New(Options{
		Sources: [][]string{{base}, {modDir}},
		Workers: 1,
		Exclude: []string{"voice"},
	})
	arcs, err := l.Archives()
	require.NoError(t, err)
	require.Len(t, arcs, 2)
	// 组间顺序保留
	assert.Equal(t, base, arcs[0])

	res, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.FS.FileCount())
}

func TestLoad_HierarchyCache(t *testing.T) {
	root := t.TempDir()
	a := mustArc(t, root, "a.arc", map[string]string{"model/a.model": "a"})
	mustArc(t, root, "b.arc", map[string]string{"tex/b.tex": "b", "tex/c.tex": "c"})
	store := hierarchy.NewFileStore(filepath.Join(t.TempDir(), "hierarchy.json"))
	ctx := context.Background()

	opts := Options{Sources: [][]string{{root}}, Workers: 2, Cache: store, HierarchyOnly: true}

	// 1. 没有缓存：完整加载并写出缓存
	first, err := New(opts).Load(ctx)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	c, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, c.FileCount())
	assert.Equal(t, []string{"/a/model/a.model"}, c.Archives[a].Files)

	// 2. 归档未变化：直接用缓存重建，文件没有内容
	second, err := New(opts).Load(ctx)
	require.NoError(t, err)
	require.True(t, second.FromCache)
	assert.Equal(t, first.FS.FileCount(), second.FS.FileCount())
	f, err := second.FS.FindFile("b/tex/c.tex", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), f.Pointer().Size())

	// 3. 归档被修改：缓存失效，重新完整加载
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(a, future, future))
	third, err := New(opts).Load(ctx)
	require.NoError(t, err)
	assert.False(t, third.FromCache)
	assert.Equal(t, "a", mustData(t, third.FS, "a/model/a.model"))

	// 4. 不要求 HierarchyOnly 时总是完整加载
	opts.HierarchyOnly = false
	fourth, err := New(opts).Load(ctx)
	require.NoError(t, err)
	assert.False(t, fourth.FromCache)
}

func TestLoad_Cancelled(t *testing.T) {
	root := t.TempDir()
	mustArc(t, root, "a.arc", map[string]string{"a.txt": "a"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Options{Sources: [][]string{{root}}, Workers: 1}).Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestArchiveOf_Loose(t *testing.T) {
	fs := arc.New("root")
	f, err := fs.GetOrCreateFile("loose/file.txt", nil)
	require.NoError(t, err)

	_, ok := ArchiveOf(f)
	assert.False(t, ok)
	_, ok = ArchiveOf(nil)
	assert.False(t, ok)
}
