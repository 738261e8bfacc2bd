// Package hierarchy 缓存多归档加载后的目录骨架
// 缓存只记录每个归档包含哪些文件路径，用于在归档未变化时跳过完整解析
package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"time"

	"arcvault/pkg/arc"
)

var (
	ErrNoCache = errors.New("hierarchy cache not found")
	ErrStale   = errors.New("hierarchy cache is stale")
)

// Record 是单个归档的缓存条目
type Record struct {
	ModTime time.Time `json:"mod_time" cbor:"mod_time"` // 归档最后修改时间 (UTC)
	Files   []string  `json:"files" cbor:"files"`       // 归档贡献的文件路径 (相对 Root，"/" 开头)
}

// Cache 以归档路径为键
type Cache struct {
	Archives map[string]Record `json:"archives" cbor:"archives"`
}

func NewCache() *Cache {
	return &Cache{Archives: make(map[string]Record)}
}

// Add 登记一个归档；重复调用只追加文件
func (c *Cache) Add(arcPath string, modTime time.Time, files ...string) {
	rec, ok := c.Archives[arcPath]
	if !ok {
		rec.ModTime = modTime.UTC()
	}
	rec.Files = append(rec.Files, files...)
	c.Archives[arcPath] = rec
}

// Paths 返回排序后的归档路径
func (c *Cache) Paths() []string {
	return slices.Sorted(maps.Keys(c.Archives))
}

// FileCount 返回所有归档的文件总数
func (c *Cache) FileCount() int {
	n := 0
	for _, rec := range c.Archives {
		n += len(rec.Files)
	}
	return n
}

// Store 是缓存的持久化后端
type Store interface {
	// Load 读取缓存；不存在时返回 ErrNoCache
	Load(ctx context.Context) (*Cache, error)
	Save(ctx context.Context, c *Cache) error
}

// StatFunc 返回路径当前的修改时间
type StatFunc func(path string) (time.Time, error)

// ModTime 是基于 os.Stat 的 StatFunc
func ModTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime().UTC(), nil
}

// Validate 检查缓存是否仍然对应 arcPaths
// 归档集合必须完全一致，且每个归档的修改时间都与记录相同
func Validate(c *Cache, arcPaths []string, stat StatFunc) error {
	if c == nil {
		return ErrNoCache
	}
	if stat == nil {
		stat = ModTime
	}

	// 1. 比较排序后的路径集合
	want := slices.Clone(arcPaths)
	slices.Sort(want)
	if !slices.Equal(c.Paths(), want) {
		return fmt.Errorf("%w: archive list does not match (cached %d, found %d)", ErrStale, len(c.Archives), len(want))
	}

	// 2. 逐个比较修改时间
	for _, p := range want {
		mt, err := stat(p)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrStale, p, err)
		}
		if !mt.UTC().Equal(c.Archives[p].ModTime) {
			return fmt.Errorf("%w: %s modified (cached %s, now %s)", ErrStale, p,
				c.Archives[p].ModTime.Format(time.RFC3339), mt.UTC().Format(time.RFC3339))
		}
	}
	return nil
}

// Build 只根据缓存重建目录骨架，所有文件都指向空内容
// 同一路径出现在多个归档中时只创建一次
func Build(c *Cache, newFS func() *arc.FileSystem) (*arc.FileSystem, error) {
	fs := newFS()
	for _, p := range c.Paths() {
		for _, file := range c.Archives[p].Files {
			if _, err := fs.GetOrCreateFile(file, nil); err != nil {
				return nil, fmt.Errorf("rebuild %s from %s: %w", file, p, err)
			}
		}
	}
	return fs, nil
}

// Collect 从已加载的文件系统生成缓存
// 每个文件按其 Pointer 指向的归档归类；arcPaths 中没有贡献文件的归档也会登记
func Collect(fs *arc.FileSystem, arcPaths []string, stat StatFunc) (*Cache, error) {
	if stat == nil {
		stat = ModTime
	}
	c := NewCache()
	add := func(p string) error {
		if _, ok := c.Archives[p]; ok {
			return nil
		}
		mt, err := stat(p)
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}
		c.Add(p, mt)
		return nil
	}

	for _, p := range arcPaths {
		if err := add(p); err != nil {
			return nil, err
		}
	}

	err := fs.Walk(func(f *arc.File) error {
		src, ok := arc.SourceArchive(f)
		if !ok {
			return nil
		}
		if err := add(src); err != nil {
			return err
		}
		c.Add(src, time.Time{}, f.Path())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
