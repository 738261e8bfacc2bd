// Package loader 把多个来源目录中的归档并行加载并汇总成一个文件系统
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"arcvault/pkg/arc"
	"arcvault/pkg/hierarchy"
	"arcvault/pkg/logging"

	"golang.org/x/sync/errgroup"
)

// Method 决定每个归档如何进入 worker 的文件系统
type Method int

const (
	// Single 把每个归档挂载到以归档名 (不含扩展名) 命名的目录下
	Single Method = iota
	// MiniTemps 先加载到临时文件系统，再合并到 worker 的 Root
	MiniTemps
)

func (m Method) String() string {
	switch m {
	case Single:
		return "single"
	case MiniTemps:
		return "minitemps"
	default:
		return fmt.Sprintf("method(%d)", int(m))
	}
}

func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "single":
		return Single, nil
	case "minitemps", "mini-temps":
		return MiniTemps, nil
	default:
		return Single, fmt.Errorf("unknown load method %q", s)
	}
}

type Options struct {
	// Sources 是有序的来源组；组内排序，组间按给定顺序拼接
	Sources [][]string
	// Workers <= 0 时使用 CPU 数
	Workers        int
	Method         Method
	KeepDuplicates bool
	Exclude        []string

	// Cache 不为 nil 时，完整加载后会写入新的目录骨架缓存
	Cache hierarchy.Store
	// HierarchyOnly 为 true 且缓存有效时，直接用缓存重建骨架
	HierarchyOnly bool

	// NewFileSystem 为每个 worker 和临时加载创建文件系统
	NewFileSystem func() *arc.FileSystem
	Logger        logging.Logger
	Stat          hierarchy.StatFunc
}

type Result struct {
	FS       *arc.FileSystem
	Archives []string
	// Failed 记录加载失败的归档，失败不会中断其它归档
	Failed    map[string]error
	FromCache bool
	Elapsed   time.Duration
}

type Loader struct {
	opts Options
	log  logging.Logger
}

func New(opts Options) *Loader {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Stat == nil {
		opts.Stat = hierarchy.ModTime
	}
	if opts.NewFileSystem == nil {
		keep, log := opts.KeepDuplicates, opts.Logger
		opts.NewFileSystem = func() *arc.FileSystem {
			return arc.New("root", arc.WithKeepDuplicates(keep), arc.WithLogger(log))
		}
	}
	return &Loader{opts: opts, log: opts.Logger}
}

// Archives 返回所有来源组中将被加载的归档
func (l *Loader) Archives() ([]string, error) {
	var all []string
	for _, group := range l.opts.Sources {
		arcs, err := FetchArcs(group, l.opts.Exclude, l.log)
		if err != nil {
			return nil, err
		}
		all = append(all, arcs...)
	}
	return all, nil
}

func (l *Loader) Load(ctx context.Context) (*Result, error) {
	start := time.Now()
	l.log.Verbose(1, "load arcs begin", "workers", l.opts.Workers, "method", l.opts.Method)

	// 1. 收集归档
	arcPaths, err := l.Archives()
	if err != nil {
		return nil, err
	}

	// 2. 缓存捷径
	if l.opts.HierarchyOnly && l.opts.Cache != nil {
		if fs, ok := l.fromCache(ctx, arcPaths); ok {
			l.log.Verbose(1, "load arcs end", "from_cache", true)
			return &Result{FS: fs, Archives: arcPaths, Failed: map[string]error{}, FromCache: true, Elapsed: time.Since(start)}, nil
		}
		l.log.Info("building full data", "archives", len(arcPaths))
	}

	// 3. 按大小分桶
	sizes := make([]int64, len(arcPaths))
	for i, p := range arcPaths {
		if info, err := os.Stat(p); err == nil {
			sizes[i] = info.Size()
		}
	}
	buckets := Partition(arcPaths, sizes, l.opts.Workers)

	// 4. 并行构建，每个 worker 独占一个文件系统
	parts := make([]*arc.FileSystem, len(buckets))
	failed := make(map[string]error)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, bucket := range buckets {
		g.Go(func() error {
			l.log.Verbose(2, "worker begin", "worker", i, "archives", len(bucket))
			fs := l.opts.NewFileSystem()
			for _, p := range bucket {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := l.loadOne(fs, p); err != nil {
					l.log.Error("arc load failed", "worker", i, "path", p, "err", err)
					mu.Lock()
					failed[p] = err
					mu.Unlock()
				}
			}
			parts[i] = fs
			l.log.Verbose(2, "worker end", "worker", i, "files", fs.FileCount())
			return nil
		})
	}

	// 5. 屏障：全部 worker 结束后才开始汇总
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// 6. 按 worker 顺序依次合并
	merged := parts[0]
	for _, part := range parts[1:] {
		if err := merged.MergeCopy(part.Root(), nil); err != nil {
			return nil, fmt.Errorf("merge worker results: %w", err)
		}
	}
	l.log.Verbose(1, "merge end", "files", merged.FileCount())

	// 7. 写入新缓存 (失败只记录日志)
	if l.opts.Cache != nil {
		l.writeCache(ctx, merged, arcPaths)
	}

	l.log.Verbose(1, "load arcs end", "failed", len(failed))
	return &Result{FS: merged, Archives: arcPaths, Failed: failed, Elapsed: time.Since(start)}, nil
}

func (l *Loader) loadOne(fs *arc.FileSystem, p string) error {
	l.log.Verbose(4, "loading arc", "path", p)
	switch l.opts.Method {
	case MiniTemps:
		tmp := l.opts.NewFileSystem()
		if err := tmp.LoadArc(p, nil); err != nil {
			return err
		}
		return fs.MergeCopy(tmp.Root(), nil)
	default:
		name := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		_, existed := fs.Root().Directory(name)
		dir, err := fs.GetOrCreateDirectory(name, nil)
		if err != nil {
			return err
		}
		if err := fs.LoadArc(p, dir); err != nil {
			if !existed {
				_ = fs.DeleteDirectory(dir, true)
			}
			return err
		}
		return nil
	}
}

func (l *Loader) fromCache(ctx context.Context, arcPaths []string) (*arc.FileSystem, bool) {
	c, err := l.opts.Cache.Load(ctx)
	if err != nil {
		if errors.Is(err, hierarchy.ErrNoCache) {
			l.log.Info("hierarchy cache not found")
		} else {
			l.log.Warn("hierarchy cache unreadable", "err", err)
		}
		return nil, false
	}
	if err := hierarchy.Validate(c, arcPaths, l.opts.Stat); err != nil {
		l.log.Info("hierarchy cache rejected", "err", err)
		return nil, false
	}
	fs, err := hierarchy.Build(c, l.opts.NewFileSystem)
	if err != nil {
		l.log.Warn("hierarchy cache rebuild failed", "err", err)
		return nil, false
	}
	l.log.Verbose(1, "hierarchy rebuilt from cache", "files", fs.FileCount())
	return fs, true
}

func (l *Loader) writeCache(ctx context.Context, fs *arc.FileSystem, arcPaths []string) {
	c, err := hierarchy.Collect(fs, arcPaths, l.opts.Stat)
	if err != nil {
		l.log.Warn("hierarchy cache not written", "err", err)
		return
	}
	if err := l.opts.Cache.Save(ctx, c); err != nil {
		l.log.Warn("hierarchy cache not written", "err", err)
		return
	}
	l.log.Verbose(1, "hierarchy cache written", "archives", len(c.Archives), "files", c.FileCount())
}

// -----------------------------------------------------------------------------
// 加载后的查询
// -----------------------------------------------------------------------------

// FilesWithExtension 返回名字以 ext 结尾的文件 (ext 可带或不带前导 ".")，按路径排序
func FilesWithExtension(fs *arc.FileSystem, ext string) []*arc.File {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	suffix := "." + ext

	var out []*arc.File
	for _, f := range fs.Files() {
		if strings.HasSuffix(f.Name(), suffix) {
			out = append(out, f)
		}
	}
	slices.SortFunc(out, func(a, b *arc.File) int { return strings.Compare(a.Path(), b.Path()) })
	return out
}

// ArchiveOf 返回条目内容来自的 .arc 路径
// 文件优先看其 Pointer；否则向上找到挂载在 Root 下的归档目录
func ArchiveOf(e arc.Entry) (string, bool) {
	if e == nil {
		return "", false
	}
	var dir *arc.Directory
	switch v := e.(type) {
	case *arc.File:
		if p, ok := arc.SourceArchive(v); ok {
			return p, true
		}
		dir = v.Parent()
	case *arc.Directory:
		dir = v
	}
	for ; dir != nil; dir = dir.Parent() {
		if dir.Depth() == 1 && dir.ArcPath() != "" {
			return dir.ArcPath().String(), true
		}
	}
	return "", false
}
